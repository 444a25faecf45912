package telemetry

import (
	"fmt"
	"time"
)

type Config struct {
	Host     string
	Port     int
	ClientID string

	// Mutual TLS. When all three are empty the broker is dialled in clear text.
	RootCA   string
	CertFile string
	KeyFile  string

	ConnectTimeout   time.Duration // bound on each connect attempt
	OperationTimeout time.Duration // bound on each publish/subscribe
	DrainRate        float64       // queued messages per second after reconnect
	KeepAlive        time.Duration

	RetryInitial time.Duration
	RetryMax     time.Duration
}

// WithDefaults fills zero fields with the values used on the device.
func (c Config) WithDefaults() Config {
	if c.Port == 0 {
		c.Port = 8883
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = 5 * time.Second
	}
	if c.DrainRate <= 0 {
		c.DrainRate = 2
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = 30 * time.Second
	}
	if c.RetryInitial <= 0 {
		c.RetryInitial = time.Second
	}
	if c.RetryMax <= 0 {
		c.RetryMax = 32 * time.Second
	}
	return c
}

func (c Config) tlsEnabled() bool {
	return c.RootCA != "" || c.CertFile != "" || c.KeyFile != ""
}

func (c Config) brokerURL() string {
	scheme := "tcp"
	if c.tlsEnabled() {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
}

func (c Config) drainInterval() time.Duration {
	return time.Duration(float64(time.Second) / c.DrainRate)
}
