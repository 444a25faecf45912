package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/LeonardoBeccarini/smartbin/internal/model"
	"github.com/LeonardoBeccarini/smartbin/internal/services/classifier"
)

type Config struct {
	LogLevel  string
	LogFormat string

	// broker (AWS IoT Core, mutual TLS)
	IoTEndpoint string
	IoTPort     int
	RootCA      string
	CertFile    string
	KeyFile     string

	IDFile      string
	Enabled     []model.Category
	Fallback    model.Category
	Pins        []model.CompartmentPins
	ButtonPin   int
	BinHeightCm float64

	Debounce       time.Duration
	DepositWindow  time.Duration
	CommandDwell   time.Duration
	CommandStagger time.Duration
	EchoTimeout    time.Duration

	Bucket            string
	ProjectARN        string
	ModelARN          string
	VersionName       string
	MinInferenceUnits int32
	MinConfidence     float64
	EnsureMode        classifier.EnsureMode
	ClassifyTimeout   time.Duration

	Hardware         string // gpio | sim
	SimPressInterval time.Duration

	HTTPPort int
	GRPCPort int

	// journal opzionale: vuoto = disabilitato
	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	WorkDir string
}

func getenv(k, d string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func getenvFloat(k string, d float64) float64 {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return d
}

// accetta "250ms", "2s" oppure un intero in millisecondi
func getenvDuration(k string, d time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return d
}

func parseCategories(raw string) ([]model.Category, error) {
	var out []model.Category
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		c, ok := model.ParseCategory(p)
		if !ok {
			return nil, fmt.Errorf("unknown category %q (known: %s)", p, knownCategories())
		}
		out = append(out, c)
	}
	return out, nil
}

func knownCategories() string {
	all := model.AllCategories()
	names := make([]string, len(all))
	for i, c := range all {
		names[i] = c.String()
	}
	return strings.Join(names, ", ")
}

// loadPins reads an optional pin table override: a JSON array of
// {"category","trigger_pin","echo_pin","servo_pin"}.
func loadPins(path string) ([]model.CompartmentPins, error) {
	if path == "" {
		return model.DefaultPinTable(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pins []model.CompartmentPins
	if err := json.Unmarshal(raw, &pins); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pins, nil
}

func loadConfig() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "text"),

		IoTEndpoint: getenv("IOT_ENDPOINT", ""),
		IoTPort:     getenvInt("IOT_PORT", 8883),
		RootCA:      getenv("IOT_ROOT_CA", "certs/AmazonRootCA1.pem"),
		CertFile:    getenv("IOT_CERT", "certs/device.pem.crt"),
		KeyFile:     getenv("IOT_KEY", "certs/private.pem.key"),

		IDFile:      getenv("BIN_ID_FILE", "bin_id.txt"),
		ButtonPin:   getenvInt("BUTTON_PIN", model.DefaultButtonPin),
		BinHeightCm: getenvFloat("BIN_HEIGHT_CM", 20),

		Debounce:       getenvDuration("DEBOUNCE", 2*time.Second),
		DepositWindow:  getenvDuration("DEPOSIT_WINDOW", 5*time.Second),
		CommandDwell:   getenvDuration("COMMAND_DWELL", time.Second),
		CommandStagger: getenvDuration("COMMAND_STAGGER", 250*time.Millisecond),
		EchoTimeout:    getenvDuration("ECHO_TIMEOUT", 100*time.Millisecond),

		Bucket:            getenv("S3_BUCKET", "mysmartbin-image-bin"),
		ProjectARN:        getenv("REKOGNITION_PROJECT_ARN", ""),
		ModelARN:          getenv("REKOGNITION_MODEL_ARN", ""),
		VersionName:       getenv("REKOGNITION_VERSION_NAME", ""),
		MinInferenceUnits: int32(getenvInt("REKOGNITION_MIN_INFERENCE_UNITS", 1)),
		MinConfidence:     getenvFloat("MIN_CONFIDENCE", 50),
		ClassifyTimeout:   getenvDuration("CLASSIFY_TIMEOUT", 20*time.Second),

		Hardware:         strings.ToLower(getenv("HARDWARE", "gpio")),
		SimPressInterval: getenvDuration("SIM_PRESS_INTERVAL", 30*time.Second),

		HTTPPort: getenvInt("HTTP_PORT", 9100),
		GRPCPort: getenvInt("GRPC_PORT", 0),

		InfluxURL:    getenv("INFLUX_URL", ""),
		InfluxToken:  getenv("INFLUX_TOKEN", ""),
		InfluxOrg:    getenv("INFLUX_ORG", "smartbin"),
		InfluxBucket: getenv("INFLUX_BUCKET", "events"),

		WorkDir: getenv("WORK_DIR", os.TempDir()),
	}

	var err error
	if cfg.Enabled, err = parseCategories(getenv("ENABLED_BINS", "trash,paper")); err != nil {
		return cfg, fmt.Errorf("ENABLED_BINS: %w", err)
	}
	fb, ok := model.ParseCategory(getenv("FALLBACK_BIN", "trash"))
	if !ok {
		return cfg, fmt.Errorf("FALLBACK_BIN: unknown category %q (known: %s)", os.Getenv("FALLBACK_BIN"), knownCategories())
	}
	cfg.Fallback = fb
	if cfg.EnsureMode, err = classifier.ParseEnsureMode(getenv("CLASSIFIER_ENSURE_MODE", "once")); err != nil {
		return cfg, fmt.Errorf("CLASSIFIER_ENSURE_MODE: %w", err)
	}
	if cfg.Pins, err = loadPins(getenv("COMPARTMENTS_CONFIG_PATH", "")); err != nil {
		return cfg, fmt.Errorf("COMPARTMENTS_CONFIG_PATH: %w", err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	var errs []error
	if c.IoTEndpoint == "" {
		errs = append(errs, errors.New("IOT_ENDPOINT is required"))
	}
	if c.ModelARN == "" {
		errs = append(errs, errors.New("REKOGNITION_MODEL_ARN is required"))
	}
	if c.Hardware != "gpio" && c.Hardware != "sim" {
		errs = append(errs, fmt.Errorf("HARDWARE must be gpio or sim, got %q", c.Hardware))
	}
	if len(c.Enabled) == 0 {
		errs = append(errs, errors.New("ENABLED_BINS is empty"))
	}
	found := false
	for _, e := range c.Enabled {
		if e == c.Fallback {
			found = true
		}
	}
	if !found {
		errs = append(errs, fmt.Errorf("FALLBACK_BIN %s is not among ENABLED_BINS", c.Fallback))
	}
	if c.BinHeightCm <= 0 {
		errs = append(errs, errors.New("BIN_HEIGHT_CM must be positive"))
	}
	if c.MinConfidence < 0 || c.MinConfidence > 100 {
		errs = append(errs, errors.New("MIN_CONFIDENCE must be within 0..100"))
	}
	return errors.Join(errs...)
}
