package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/smartbin/internal/model"
	"github.com/LeonardoBeccarini/smartbin/internal/services/classifier"
)

func requiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("IOT_ENDPOINT", "abc-ats.iot.eu-west-1.amazonaws.com")
	t.Setenv("REKOGNITION_MODEL_ARN", "arn:aws:rekognition:eu-west-1:1:project/bin/version/v1/1")
}

func TestLoadConfigDefaults(t *testing.T) {
	requiredEnv(t)

	cfg, err := loadConfig()
	require.NoError(t, err)
	require.Equal(t, 8883, cfg.IoTPort)
	require.Equal(t, []model.Category{model.CategoryTrash, model.CategoryPaper}, cfg.Enabled)
	require.Equal(t, model.CategoryTrash, cfg.Fallback)
	require.Equal(t, model.DefaultButtonPin, cfg.ButtonPin)
	require.Equal(t, 20.0, cfg.BinHeightCm)
	require.Equal(t, 250*time.Millisecond, cfg.CommandStagger)
	require.Equal(t, 100*time.Millisecond, cfg.EchoTimeout)
	require.Equal(t, "mysmartbin-image-bin", cfg.Bucket)
	require.Equal(t, classifier.EnsureOnce, cfg.EnsureMode)
	require.Equal(t, "gpio", cfg.Hardware)
	require.Equal(t, 9100, cfg.HTTPPort)
	require.Len(t, cfg.Pins, len(model.DefaultPinTable()))
}

func TestLoadConfigOverrides(t *testing.T) {
	requiredEnv(t)
	t.Setenv("ENABLED_BINS", " Paper , trash,")
	t.Setenv("FALLBACK_BIN", "paper")
	t.Setenv("COMMAND_STAGGER", "500")
	t.Setenv("DEPOSIT_WINDOW", "3s")
	t.Setenv("CLASSIFIER_ENSURE_MODE", "never")
	t.Setenv("HARDWARE", "SIM")
	t.Setenv("IOT_PORT", "not-a-number")

	cfg, err := loadConfig()
	require.NoError(t, err)
	require.Equal(t, []model.Category{model.CategoryPaper, model.CategoryTrash}, cfg.Enabled)
	require.Equal(t, model.CategoryPaper, cfg.Fallback)
	require.Equal(t, 500*time.Millisecond, cfg.CommandStagger)
	require.Equal(t, 3*time.Second, cfg.DepositWindow)
	require.Equal(t, classifier.EnsureNever, cfg.EnsureMode)
	require.Equal(t, "sim", cfg.Hardware)
	require.Equal(t, 8883, cfg.IoTPort)
}

func TestLoadConfigRejects(t *testing.T) {
	cases := map[string]map[string]string{
		"missing endpoint":     {"IOT_ENDPOINT": ""},
		"unknown bin":          {"ENABLED_BINS": "trash,compost"},
		"unknown fallback":     {"FALLBACK_BIN": "compost"},
		"fallback not enabled": {"FALLBACK_BIN": "glass"},
		"bad ensure mode":      {"CLASSIFIER_ENSURE_MODE": "sometimes"},
		"bad hardware":         {"HARDWARE": "arduino"},
		"bad confidence":       {"MIN_CONFIDENCE": "150"},
		"missing pins file":    {"COMPARTMENTS_CONFIG_PATH": filepath.Join(t.TempDir(), "nope.json")},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			requiredEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := loadConfig()
			require.Error(t, err)
		})
	}
}

func TestParseCategoriesListsKnownNames(t *testing.T) {
	_, err := parseCategories("trash,compost")
	require.ErrorContains(t, err, `"compost"`)
	require.ErrorContains(t, err, "known: trash, paper, plastic, metal, glass, cardboard")
}

func TestLoadPins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pins.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"category":"trash","trigger_pin":5,"echo_pin":6,"servo_pin":13},
		{"category":"glass","trigger_pin":16,"echo_pin":17,"servo_pin":18}
	]`), 0o644))

	pins, err := loadPins(path)
	require.NoError(t, err)
	require.Len(t, pins, 2)
	require.Equal(t, model.CategoryGlass, pins[1].Category)
	require.True(t, pins[1].Wired())

	require.NoError(t, os.WriteFile(path, []byte(`[{"category":"compost"}]`), 0o644))
	_, err = loadPins(path)
	require.Error(t, err)
}

func TestGetenvDuration(t *testing.T) {
	t.Setenv("X_DUR", "1m")
	require.Equal(t, time.Minute, getenvDuration("X_DUR", time.Second))
	t.Setenv("X_DUR", "42")
	require.Equal(t, 42*time.Millisecond, getenvDuration("X_DUR", time.Second))
	t.Setenv("X_DUR", "soon")
	require.Equal(t, time.Second, getenvDuration("X_DUR", time.Second))
}
