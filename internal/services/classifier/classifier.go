// Package classifier labels staged images with a Rekognition Custom Labels
// model. The model endpoint has to be started before it can answer, which can
// take minutes on a cold start.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/LeonardoBeccarini/smartbin/internal/model"
)

// ErrClassificationUnavailable wraps every failure of the remote model.
var ErrClassificationUnavailable = errors.New("classifier: classification unavailable")

// RekognitionAPI is the slice of the Rekognition client used here.
type RekognitionAPI interface {
	StartProjectVersion(ctx context.Context, in *rekognition.StartProjectVersionInput, optFns ...func(*rekognition.Options)) (*rekognition.StartProjectVersionOutput, error)
	DescribeProjectVersions(ctx context.Context, in *rekognition.DescribeProjectVersionsInput, optFns ...func(*rekognition.Options)) (*rekognition.DescribeProjectVersionsOutput, error)
	DetectCustomLabels(ctx context.Context, in *rekognition.DetectCustomLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectCustomLabelsOutput, error)
}

// EnsureMode controls when the model endpoint is started.
type EnsureMode string

const (
	// EnsureOnce starts the endpoint on first use and trusts it afterwards,
	// until a detect call fails.
	EnsureOnce EnsureMode = "once"
	// EnsureAlways runs start+poll before every detection.
	EnsureAlways EnsureMode = "always"
	// EnsureNever assumes the endpoint is managed elsewhere.
	EnsureNever EnsureMode = "never"
)

func ParseEnsureMode(s string) (EnsureMode, error) {
	switch m := EnsureMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return EnsureOnce, nil
	case EnsureOnce, EnsureAlways, EnsureNever:
		return m, nil
	default:
		return "", fmt.Errorf("classifier: unknown ensure mode %q", s)
	}
}

type Config struct {
	ProjectARN        string
	ModelARN          string
	VersionName       string
	MinInferenceUnits int32
	MinConfidence     float64 // 0 accetta ogni etichetta, negativo = 50
	Mode              EnsureMode

	CallTimeout  time.Duration // detection (and a warm ensure)
	StartTimeout time.Duration // extra budget when the endpoint must be started
	PollInterval time.Duration

	BreakerFailures uint32
	BreakerOpen     time.Duration
}

func (c Config) withDefaults() Config {
	if c.MinInferenceUnits <= 0 {
		c.MinInferenceUnits = 1
	}
	if c.MinConfidence < 0 {
		c.MinConfidence = 50
	}
	if c.Mode == "" {
		c.Mode = EnsureOnce
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 20 * time.Second
	}
	if c.StartTimeout <= 0 {
		c.StartTimeout = 5 * time.Minute
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = 3
	}
	if c.BreakerOpen <= 0 {
		c.BreakerOpen = time.Minute
	}
	return c
}

type Client struct {
	api RekognitionAPI
	cfg Config
	cb  *gobreaker.CircuitBreaker
	log *slog.Logger

	mu      sync.Mutex
	running bool
}

func New(api RekognitionAPI, cfg Config, log *slog.Logger) *Client {
	cfg = cfg.withDefaults()
	if log == nil {
		log = slog.Default()
	}
	c := &Client{api: api, cfg: cfg, log: log.With("component", "classifier")}
	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "rekognition",
		Timeout: cfg.BreakerOpen,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn("circuit breaker", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// Classify never fails the caller: on any error the result is unknown and the
// error, wrapping ErrClassificationUnavailable, is returned for logging.
func (c *Client) Classify(ctx context.Context, img model.ImageRef) (model.ClassificationResult, error) {
	timeout := c.cfg.CallTimeout
	if c.needsEnsure() {
		timeout += c.cfg.StartTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := c.cb.Execute(func() (interface{}, error) {
		if err := c.ensure(ctx); err != nil {
			return nil, fmt.Errorf("ensure running: %w", err)
		}
		return c.detect(ctx, img)
	})
	if err != nil {
		return model.Unclassified(), fmt.Errorf("%w: %w", ErrClassificationUnavailable, err)
	}
	res := SelectLabel(out.([]Label), c.cfg.MinConfidence)
	c.log.Debug("classified", "key", img.Key, "label", res.Label, "confidence", res.Confidence)
	return res, nil
}

func (c *Client) needsEnsure() bool {
	switch c.cfg.Mode {
	case EnsureNever:
		return false
	case EnsureAlways:
		return true
	default:
		return !c.isRunning()
	}
}

// Running reports whether the endpoint is currently believed to be up.
func (c *Client) Running() bool { return c.isRunning() }

func (c *Client) isRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Client) setRunning(v bool) {
	c.mu.Lock()
	c.running = v
	c.mu.Unlock()
}

func (c *Client) ensure(ctx context.Context) error {
	if !c.needsEnsure() {
		return nil
	}
	start := time.Now()
	if err := c.start(ctx); err != nil {
		return err
	}
	if err := c.waitRunning(ctx); err != nil {
		return err
	}
	c.setRunning(true)
	c.log.Info("model running", "version", c.cfg.VersionName, "took", time.Since(start).Round(time.Millisecond))
	return nil
}

func (c *Client) start(ctx context.Context) error {
	_, err := c.api.StartProjectVersion(ctx, &rekognition.StartProjectVersionInput{
		ProjectVersionArn: aws.String(c.cfg.ModelARN),
		MinInferenceUnits: aws.Int32(c.cfg.MinInferenceUnits),
	})
	var inUse *types.ResourceInUseException
	if errors.As(err, &inUse) {
		// already starting or running
		return nil
	}
	return err
}

func (c *Client) waitRunning(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.PollInterval
	bo.MaxInterval = 6 * c.cfg.PollInterval
	bo.MaxElapsedTime = c.cfg.StartTimeout

	return backoff.Retry(func() error {
		out, err := c.api.DescribeProjectVersions(ctx, &rekognition.DescribeProjectVersionsInput{
			ProjectArn:   aws.String(c.cfg.ProjectARN),
			VersionNames: []string{c.cfg.VersionName},
		})
		if err != nil {
			return err
		}
		if len(out.ProjectVersionDescriptions) == 0 {
			return backoff.Permanent(fmt.Errorf("model version %q not found", c.cfg.VersionName))
		}
		switch st := out.ProjectVersionDescriptions[0].Status; st {
		case types.ProjectVersionStatusRunning:
			return nil
		case types.ProjectVersionStatusFailed, types.ProjectVersionStatusTrainingFailed, types.ProjectVersionStatusDeleting:
			return backoff.Permanent(fmt.Errorf("model version %q is %s", c.cfg.VersionName, st))
		default:
			c.log.Debug("waiting for model", "status", st)
			return fmt.Errorf("model version %q is %s", c.cfg.VersionName, st)
		}
	}, backoff.WithContext(bo, ctx))
}

func (c *Client) detect(ctx context.Context, img model.ImageRef) ([]Label, error) {
	out, err := c.api.DetectCustomLabels(ctx, &rekognition.DetectCustomLabelsInput{
		ProjectVersionArn: aws.String(c.cfg.ModelARN),
		Image: &types.Image{S3Object: &types.S3Object{
			Bucket: aws.String(img.Bucket),
			Name:   aws.String(img.Key),
		}},
		MinConfidence: aws.Float32(float32(c.cfg.MinConfidence)),
	})
	if err != nil {
		// the endpoint may have been stopped behind our back
		c.setRunning(false)
		return nil, fmt.Errorf("detect: %w", err)
	}
	labels := make([]Label, 0, len(out.CustomLabels))
	for _, l := range out.CustomLabels {
		labels = append(labels, Label{Name: aws.ToString(l.Name), Confidence: float64(aws.ToFloat32(l.Confidence))})
	}
	return labels, nil
}
