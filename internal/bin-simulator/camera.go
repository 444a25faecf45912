package bin_simulator

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math/rand"
	"os"
	"sync"
)

// Camera writes a small synthetic JPEG instead of shooting a real still.
type Camera struct {
	mu     sync.Mutex
	width  int
	height int
	rng    *rand.Rand
	shots  int
}

func NewCamera(width, height int, seed int64) *Camera {
	if width <= 0 || height <= 0 {
		width, height = 64, 48
	}
	return &Camera{width: width, height: height, rng: rand.New(rand.NewSource(seed))}
}

func (c *Camera) Capture(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	base := color.RGBA{R: uint8(c.rng.Intn(256)), G: uint8(c.rng.Intn(256)), B: uint8(c.rng.Intn(256)), A: 255}
	c.shots++
	c.mu.Unlock()

	img := image.NewRGBA(image.Rect(0, 0, c.width, c.height))
	for y := 0; y < c.height; y++ {
		for x := 0; x < c.width; x++ {
			// sfumatura orizzontale, giusto per non avere un'immagine piatta
			shade := uint8(x * 255 / c.width)
			img.Set(x, y, color.RGBA{R: base.R ^ shade, G: base.G, B: base.B ^ shade, A: 255})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("sim camera: %w", err)
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 80}); err != nil {
		_ = f.Close()
		return fmt.Errorf("sim camera: %w", err)
	}
	return f.Close()
}

func (c *Camera) Shots() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shots
}
