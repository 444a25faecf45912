package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	sim "github.com/LeonardoBeccarini/smartbin/internal/bin-simulator"
	"github.com/LeonardoBeccarini/smartbin/internal/hardware"
	"github.com/LeonardoBeccarini/smartbin/internal/services/camera"
	"github.com/LeonardoBeccarini/smartbin/internal/services/smartbin"
)

// devices is everything on the bin side of the controller.
type devices struct {
	compartments []smartbin.Compartment
	camera       smartbin.Camera
	presses      func(ctx context.Context) <-chan time.Time
}

func buildDevices(cfg Config, log *slog.Logger) (*devices, error) {
	if cfg.Hardware == "sim" {
		return buildSimulated(cfg, log), nil
	}
	return buildGPIO(cfg, log)
}

func buildSimulated(cfg Config, log *slog.Logger) *devices {
	d := &devices{
		camera: sim.NewCamera(0, 0, time.Now().UnixNano()),
		presses: func(ctx context.Context) <-chan time.Time {
			return sim.Presses(ctx, cfg.SimPressInterval)
		},
	}
	for i, cat := range cfg.Enabled {
		c := sim.NewCompartment(cat.String(), cfg.BinHeightCm, time.Now().UnixNano()+int64(i))
		d.compartments = append(d.compartments, smartbin.Compartment{Category: cat, Gate: c, Sensor: c})
	}
	log.Warn("running with simulated hardware", "press_interval", cfg.SimPressInterval)
	return d
}

func buildGPIO(cfg Config, log *slog.Logger) (*devices, error) {
	if err := hardware.Init(); err != nil {
		return nil, err
	}
	pins, err := smartbin.EnabledPins(cfg.Pins, cfg.Enabled)
	if err != nil {
		return nil, err
	}

	timing := hardware.DefaultGateTiming()
	timing.Dwell = cfg.CommandDwell

	d := &devices{camera: camera.NewStill(camera.Config{})}
	for _, p := range pins {
		trig, err := hardware.Pin(p.TriggerPin)
		if err != nil {
			return nil, err
		}
		echo, err := hardware.Pin(p.EchoPin)
		if err != nil {
			return nil, err
		}
		servo, err := hardware.Pin(p.ServoPin)
		if err != nil {
			return nil, err
		}
		sensor, err := hardware.NewDistanceSensor(trig, echo, cfg.EchoTimeout)
		if err != nil {
			return nil, err
		}
		gate, err := hardware.NewGate(p.Category.String(), servo, timing)
		if err != nil {
			return nil, err
		}
		d.compartments = append(d.compartments, smartbin.Compartment{Category: p.Category, Gate: gate, Sensor: sensor})
		log.Info("compartment wired", "category", p.Category, "trigger", p.TriggerPin, "echo", p.EchoPin, "servo", p.ServoPin)
	}

	bp, err := hardware.Pin(cfg.ButtonPin)
	if err != nil {
		return nil, fmt.Errorf("button: %w", err)
	}
	button, err := hardware.NewButton(bp, hardware.DefaultButtonPoll, cfg.Debounce)
	if err != nil {
		return nil, err
	}
	d.presses = button.Presses
	return d, nil
}
