// Package camera takes stills with the Pi camera through libcamera-still.
package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

var ErrCapture = errors.New("camera: capture failed")

type Resolution struct {
	Width, Height int
}

var DefaultResolution = Resolution{Width: 1024, Height: 768}

const (
	DefaultBinary = "libcamera-still"
	DefaultWarmup = 2 * time.Second
)

type Config struct {
	Binary     string
	Resolution Resolution
	Warmup     time.Duration // preview time before the shutter
}

type Still struct {
	cfg Config
}

func NewStill(cfg Config) *Still {
	if cfg.Binary == "" {
		cfg.Binary = DefaultBinary
	}
	if cfg.Resolution.Width == 0 || cfg.Resolution.Height == 0 {
		cfg.Resolution = DefaultResolution
	}
	if cfg.Warmup <= 0 {
		cfg.Warmup = DefaultWarmup
	}
	return &Still{cfg: cfg}
}

func (s *Still) args(path string) []string {
	return []string{
		"--nopreview",
		"--timeout", strconv.FormatInt(s.cfg.Warmup.Milliseconds(), 10),
		"--width", strconv.Itoa(s.cfg.Resolution.Width),
		"--height", strconv.Itoa(s.cfg.Resolution.Height),
		"--encoding", "jpg",
		"--output", path,
	}
}

// Capture writes one JPEG to path. Blocks for the warm-up plus exposure.
func (s *Still) Capture(ctx context.Context, path string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.cfg.Binary, s.args(path)...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s: %v: %s", ErrCapture, s.cfg.Binary, err, strings.TrimSpace(stderr.String()))
	}
	st, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCapture, err)
	}
	if st.Size() == 0 {
		return fmt.Errorf("%w: %s is empty", ErrCapture, path)
	}
	return nil
}
