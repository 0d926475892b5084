// Package service composes the cache, the fetch coordinator and the
// conversion tool into the favicon request pipeline.
package service

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/favicond/favicond/internal/cache"
	"github.com/favicond/favicond/internal/coordinator"
	"github.com/favicond/favicond/internal/favicon"
	"github.com/favicond/favicond/internal/metrics"
)

// Resolver runs one cold resolution; satisfied by coordinator.Coordinator.
type Resolver interface {
	Resolve(ctx context.Context, rootURL, protocol string) coordinator.Resolution
}

// Config controls pipeline behavior.
type Config struct {
	// TTL is the cache freshness window.
	TTL time.Duration
	// DefaultSize is used when the caller gives no size.
	DefaultSize int
	// DefaultImage, if set, is served when resolution yields nothing.
	DefaultImage string
}

// Service answers favicon requests: cache check, coordinated resolution,
// conversion, cache re-check.
type Service struct {
	cache     *cache.Cache
	resolver  Resolver
	converter favicon.Converter
	hasher    favicon.Hasher
	logger    *zap.Logger
	cfg       Config

	// group collapses concurrent cold resolutions for one host, so
	// overlapping requests converge on a single write to the host dir.
	group singleflight.Group
}

// New constructs a Service.
func New(
	c *cache.Cache,
	resolver Resolver,
	converter favicon.Converter,
	hasher favicon.Hasher,
	cfg Config,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultSize <= 0 {
		cfg.DefaultSize = 16
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &Service{
		cache:     c,
		resolver:  resolver,
		converter: converter,
		hasher:    hasher,
		logger:    logger,
		cfg:       cfg,
	}
}

// Get returns the best-fit icon for hostOrURL at the requested size. A fresh
// cache hit answers without network activity; otherwise a cold resolution
// runs to completion and the cache is re-queried. Resolution failures never
// surface as errors: the fallback Result (default image or empty body) is
// the only user-visible failure mode.
func (s *Service) Get(ctx context.Context, hostOrURL string, size int) (favicon.Result, error) {
	host, rootURL, protocol, err := normalizeTarget(hostOrURL)
	if err != nil {
		return s.fallback(), nil
	}
	if size <= 0 {
		size = s.cfg.DefaultSize
	}

	if icon, ok := s.cache.Lookup(host, size, s.cfg.TTL); ok {
		return favicon.Result{Path: icon.Path, ContentType: "image/png"}, nil
	}

	// The shared key is the host: concurrent cold requests for one host
	// ride on a single resolution instead of racing on the directory.
	_, err, _ = s.group.Do(host, func() (any, error) {
		s.resolveCold(ctx, host, rootURL, protocol)
		return nil, nil
	})
	if err != nil {
		s.logger.Error("cold resolution failed", zap.String("host", host), zap.Error(err))
	}

	if icon, ok := s.cache.Lookup(host, size, s.cfg.TTL); ok {
		return favicon.Result{Path: icon.Path, ContentType: "image/png"}, nil
	}
	return s.fallback(), nil
}

func (s *Service) resolveCold(ctx context.Context, host, rootURL, protocol string) {
	res := s.resolver.Resolve(ctx, rootURL, protocol)
	s.logger.Info("resolution complete",
		zap.String("host", host),
		zap.Int("unique_payloads", len(res.Payloads)),
		zap.Int("candidates", res.Arrived),
	)
	if len(res.Payloads) == 0 {
		metrics.ObserveResolution(host, "empty")
		return
	}

	dir, err := s.cache.ResetHostDir(host)
	if err != nil {
		metrics.ObserveResolution(host, "error")
		s.logger.Error("reset host dir failed", zap.String("host", host), zap.Error(err))
		return
	}
	template := filepath.Join(dir, "icon-%d.png")

	// Every invocation counts toward the join exactly once, success or not;
	// a stuck join on a failed conversion is the bug this guards against.
	var wg sync.WaitGroup
	for i, cand := range res.Payloads {
		wg.Add(1)
		go func(index int, cand favicon.Candidate) {
			defer wg.Done()
			if err := s.convertOne(ctx, cand, dir, template); err != nil {
				s.logger.Warn("conversion failed",
					zap.String("host", host),
					zap.Int("index", index),
					zap.Error(err),
				)
			}
		}(i, cand)
	}
	wg.Wait()
	metrics.ObserveResolution(host, "ok")
}

func (s *Service) convertOne(ctx context.Context, cand favicon.Candidate, dir, template string) error {
	input, err := s.cache.WriteScratch(s.hasher.Digest(cand.Payload), cand.Payload)
	if err != nil {
		return fmt.Errorf("stage payload: %w", err)
	}
	return s.converter.Convert(ctx, favicon.ConvertRequest{
		InputPath:       input,
		OutputDir:       dir,
		OutputTemplate:  template,
		BackgroundColor: cand.BackgroundColor,
	})
}

func (s *Service) fallback() favicon.Result {
	if s.cfg.DefaultImage != "" {
		return favicon.Result{Path: s.cfg.DefaultImage, ContentType: "image/png"}
	}
	return favicon.Result{}
}

// normalizeTarget turns a host-or-URL into (host, root URL, protocol),
// defaulting to the http scheme when none is given.
func normalizeTarget(hostOrURL string) (host, rootURL, protocol string, err error) {
	raw := strings.TrimSpace(hostOrURL)
	if raw == "" {
		return "", "", "", fmt.Errorf("empty target")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", "", fmt.Errorf("parse target: %w", err)
	}
	if u.Host == "" {
		return "", "", "", fmt.Errorf("no host in %q", hostOrURL)
	}
	protocol = u.Scheme
	host = strings.ToLower(u.Host)
	return host, protocol + "://" + host, protocol, nil
}
