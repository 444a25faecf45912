package camera

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fakeBinary(t *testing.T, script string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "libcamera-still")
	require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\n"+script), 0o755))
	return p
}

func TestArgs(t *testing.T) {
	s := NewStill(Config{})
	require.Equal(t, []string{
		"--nopreview", "--timeout", "2000", "--width", "1024", "--height", "768",
		"--encoding", "jpg", "--output", "/tmp/x.jpg",
	}, s.args("/tmp/x.jpg"))
}

func TestCaptureWritesFile(t *testing.T) {
	bin := fakeBinary(t, `while [ $# -gt 0 ]; do
  if [ "$1" = "--output" ]; then printf 'jpeg' > "$2"; fi
  shift
done
`)
	out := filepath.Join(t.TempDir(), "shot.jpg")
	s := NewStill(Config{Binary: bin, Warmup: time.Millisecond})
	require.NoError(t, s.Capture(context.Background(), out))

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, "jpeg", string(raw))
}

func TestCaptureReportsFailure(t *testing.T) {
	bin := fakeBinary(t, "echo 'no cameras available' >&2\nexit 1\n")
	s := NewStill(Config{Binary: bin})
	err := s.Capture(context.Background(), filepath.Join(t.TempDir(), "shot.jpg"))
	require.ErrorIs(t, err, ErrCapture)
	require.Contains(t, err.Error(), "no cameras available")
}

func TestCaptureWithoutOutputFails(t *testing.T) {
	bin := fakeBinary(t, "exit 0\n")
	s := NewStill(Config{Binary: bin})
	err := s.Capture(context.Background(), filepath.Join(t.TempDir(), "shot.jpg"))
	require.ErrorIs(t, err, ErrCapture)
}
