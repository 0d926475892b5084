// Package cache implements the host-keyed on-disk icon cache.
//
// Layout: one directory per host under the cache root, holding width-tagged
// files written by the conversion tool (icon-<width>.png). The directory's
// modification time is the freshness timestamp; lookup is a directory scan,
// no index record is kept.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/favicond/favicond/internal/favicon"
	"github.com/favicond/favicond/internal/metrics"
)

// Config captures the parameters for the on-disk cache.
type Config struct {
	// Dir is the root directory holding one subdirectory per host.
	Dir string `mapstructure:"dir"`
	// ScratchDir holds raw pre-conversion payloads.
	ScratchDir string `mapstructure:"scratch_dir"`
}

// Cache serves best-fit cached variants and owns the directory layout.
type Cache struct {
	dir     string
	scratch string
	clock   favicon.Clock
	logger  *zap.Logger
}

var iconFileRe = regexp.MustCompile(`^icon-(\d+)\.png$`)

// New creates the cache, ensuring both directories exist and are writable.
func New(cfg Config, clock favicon.Clock, logger *zap.Logger) (*Cache, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = filepath.Join(cfg.Dir, ".scratch")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, dir := range []string{cfg.Dir, cfg.ScratchDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", dir, err)
		}
	}
	return &Cache{
		dir:     cfg.Dir,
		scratch: cfg.ScratchDir,
		clock:   clock,
		logger:  logger,
	}, nil
}

// HostDir returns the directory that caches icons for host.
func (c *Cache) HostDir(host string) string {
	return filepath.Join(c.dir, sanitizeHost(host))
}

// ResetHostDir clears and recreates the host's directory, so a fresh
// resolution overwrites rather than merges with whatever was there. The
// recreate also resets the directory mtime that carries the TTL.
func (c *Cache) ResetHostDir(host string) (string, error) {
	dir := c.HostDir(host)
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("clear host dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create host dir: %w", err)
	}
	return dir, nil
}

// WriteScratch persists a raw payload under its content digest and returns
// the file path handed to the conversion tool.
func (c *Cache) WriteScratch(digest string, payload []byte) (string, error) {
	path := filepath.Join(c.scratch, digest+".img")
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		return "", fmt.Errorf("write scratch payload: %w", err)
	}
	return path, nil
}

// Lookup returns the cached variant whose width best fits requestedSize, or
// a miss. An unreadable directory is a miss; a directory older than maxAge
// is a miss regardless of contents. Width selection: an exact match wins
// immediately, otherwise the smallest absolute width difference, ties
// breaking toward the larger (oversized) variant since downscaling beats
// upscaling.
func (c *Cache) Lookup(host string, requestedSize int, maxAge time.Duration) (favicon.CachedIcon, bool) {
	dir := c.HostDir(host)

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		metrics.ObserveCacheLookup("miss")
		return favicon.CachedIcon{}, false
	}
	if info.ModTime().Before(c.clock.Now().Add(-maxAge)) {
		metrics.ObserveCacheLookup("stale")
		return favicon.CachedIcon{}, false
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		c.logger.Warn("cache dir unreadable", zap.String("host", host), zap.Error(err))
		metrics.ObserveCacheLookup("miss")
		return favicon.CachedIcon{}, false
	}

	best := favicon.CachedIcon{Width: -1}
	for _, entry := range entries {
		m := iconFileRe.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		width, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		icon := favicon.CachedIcon{Width: width, Path: filepath.Join(dir, entry.Name())}
		if width == requestedSize {
			metrics.ObserveCacheLookup("hit")
			return icon, true
		}
		if best.Width < 0 || closerFit(width, best.Width, requestedSize) {
			best = icon
		}
	}

	if best.Width < 0 {
		metrics.ObserveCacheLookup("miss")
		return favicon.CachedIcon{}, false
	}
	metrics.ObserveCacheLookup("hit")
	return best, true
}

// closerFit reports whether width beats current for requestedSize.
func closerFit(width, current, requestedSize int) bool {
	dw := abs(width - requestedSize)
	dc := abs(current - requestedSize)
	if dw != dc {
		return dw < dc
	}
	return width > current
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// sanitizeHost maps a host to a safe single path element.
func sanitizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	var b strings.Builder
	for _, r := range host {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	name := b.String()
	if name == "" || name == "." || name == ".." {
		return "_"
	}
	return name
}
