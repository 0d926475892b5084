// Package convert invokes the external image conversion tool.
package convert

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/favicond/favicond/internal/favicon"
	"github.com/favicond/favicond/internal/metrics"
)

// Config controls the conversion tool invocation.
type Config struct {
	// Command is the conversion binary, ImageMagick's convert by default.
	Command string
	// Sizes are the pixel widths produced per payload.
	Sizes []int
	// Timeout bounds one payload's conversion (all sizes).
	Timeout time.Duration
}

// Exec implements favicon.Converter by shelling out once per output size.
// The tool writes width-tagged files into the host's cache directory; this
// adapter reports only success or failure per payload.
type Exec struct {
	cfg    Config
	logger *zap.Logger
}

// NewExec builds an Exec converter.
func NewExec(cfg Config, logger *zap.Logger) *Exec {
	if cfg.Command == "" {
		cfg.Command = "convert"
	}
	if len(cfg.Sizes) == 0 {
		cfg.Sizes = []int{16, 32, 64}
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exec{cfg: cfg, logger: logger}
}

// Convert rasterizes the payload at req.InputPath into one file per
// configured size, named by substituting the width into req.OutputTemplate.
func (e *Exec) Convert(ctx context.Context, req favicon.ConvertRequest) error {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	for _, size := range e.cfg.Sizes {
		outPath := fmt.Sprintf(req.OutputTemplate, size)
		args := []string{req.InputPath}
		if req.BackgroundColor != "" {
			args = append(args, "-background", req.BackgroundColor, "-flatten")
		}
		args = append(args, "-resize", fmt.Sprintf("%dx%d", size, size), outPath)

		cmd := exec.CommandContext(ctx, e.cfg.Command, args...)
		if out, err := cmd.CombinedOutput(); err != nil {
			metrics.ObserveConversion("error")
			return fmt.Errorf("convert %s to %dpx: %w (output: %s)", req.InputPath, size, err, out)
		}
	}
	metrics.ObserveConversion("ok")
	return nil
}
