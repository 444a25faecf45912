package smartbin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/LeonardoBeccarini/smartbin/internal/hardware"
	"github.com/LeonardoBeccarini/smartbin/internal/model"
	"github.com/LeonardoBeccarini/smartbin/internal/services/journal"
	"github.com/LeonardoBeccarini/smartbin/pkg/dedup"
	"github.com/LeonardoBeccarini/smartbin/pkg/telemetry"
)

type Camera interface {
	Capture(ctx context.Context, path string) error
}

type ObjectStore interface {
	Upload(ctx context.Context, localPath, bucket, key string) error
}

type Classifier interface {
	Classify(ctx context.Context, img model.ImageRef) (model.ClassificationResult, error)
}

type Publisher interface {
	Publish(ctx context.Context, topic string, qos byte, payload []byte) error
}

type Config struct {
	BinID     string
	Bucket    string
	WorkDir   string
	BinHeight float64 // cm, lid to floor of a compartment

	Debounce       time.Duration
	DepositWindow  time.Duration
	CommandStagger time.Duration
	CommandQueue   int
}

func (c Config) withDefaults() Config {
	if c.WorkDir == "" {
		c.WorkDir = os.TempDir()
	}
	if c.BinHeight <= 0 {
		c.BinHeight = 20
	}
	if c.Debounce < 0 {
		c.Debounce = 0
	}
	if c.DepositWindow <= 0 {
		c.DepositWindow = 5 * time.Second
	}
	if c.CommandQueue <= 0 {
		c.CommandQueue = 16
	}
	return c
}

type Deps struct {
	Registry   *Registry
	Camera     Camera
	Store      ObjectStore
	Classifier Classifier
	Publisher  Publisher
	Journal    journal.Recorder
	Metrics    *Metrics
	Logger     *slog.Logger
}

// ControlLoop runs the press-triggered deposit cycle and, alongside it, the
// remote command worker.
type ControlLoop struct {
	cfg    Config
	topics telemetry.Topics

	registry   *Registry
	camera     Camera
	store      ObjectStore
	classifier Classifier
	pub        Publisher
	journal    journal.Recorder
	metrics    *Metrics
	log        *slog.Logger

	state    atomic.Int32
	commands chan model.RemoteCommand
	deduper  *dedup.Deduper
	newName  func() string
}

func New(cfg Config, d Deps) (*ControlLoop, error) {
	if cfg.BinID == "" {
		return nil, errors.New("smartbin: bin id is required")
	}
	if d.Registry == nil || d.Camera == nil || d.Store == nil || d.Classifier == nil || d.Publisher == nil {
		return nil, errors.New("smartbin: missing dependency")
	}
	cfg = cfg.withDefaults()
	if d.Journal == nil {
		d.Journal = journal.Noop{}
	}
	if d.Metrics == nil {
		d.Metrics = NewMetrics(prometheus.NewRegistry())
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &ControlLoop{
		cfg:        cfg,
		topics:     telemetry.TopicsFor(cfg.BinID),
		registry:   d.Registry,
		camera:     d.Camera,
		store:      d.Store,
		classifier: d.Classifier,
		pub:        d.Publisher,
		journal:    d.Journal,
		metrics:    d.Metrics,
		log:        d.Logger.With("component", "controller", "bin_id", cfg.BinID),
		commands:   make(chan model.RemoteCommand, cfg.CommandQueue),
		deduper:    dedup.New(time.Minute, 1024),
		newName:    uuid.NewString,
	}, nil
}

func (l *ControlLoop) Topics() telemetry.Topics { return l.topics }

func (l *ControlLoop) State() State { return State(l.state.Load()) }

func (l *ControlLoop) setState(s State) {
	prev := State(l.state.Swap(int32(s)))
	l.metrics.State.Set(float64(s))
	if prev != s {
		l.log.Debug("state", "from", prev, "to", s)
	}
}

// Register announces a freshly created identity on bin/{id}/add.
func (l *ControlLoop) Register(ctx context.Context) error {
	payload, err := json.Marshal(model.RegistrationEvent{BinID: l.cfg.BinID})
	if err != nil {
		return err
	}
	if err := l.pub.Publish(ctx, l.topics.Add, 1, payload); err != nil {
		return fmt.Errorf("publish registration: %w", err)
	}
	l.journal.Record(journal.Event{Type: journal.EventRegistered, BinID: l.cfg.BinID, Timestamp: time.Now().UTC()})
	l.log.Info("registration published", "topic", l.topics.Add)
	return nil
}

// Run handles presses one at a time until ctx ends. The command worker runs
// for the same lifetime.
func (l *ControlLoop) Run(ctx context.Context, presses <-chan time.Time) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.runCommands(ctx)
	}()
	defer wg.Wait()

	l.log.Info("ready", "categories", l.registry.Categories(), "fallback", l.registry.Fallback())
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-presses:
			if !ok {
				presses = nil
				continue
			}
			if err := l.RunCycle(ctx); err != nil {
				l.log.Error("cycle aborted", "err", err)
			}
		}
	}
}

// RunCycle performs one capture → classify → deposit → measure → report
// sequence. Any failing step ends the cycle; the loop is back in Idle on return.
func (l *ControlLoop) RunCycle(ctx context.Context) (err error) {
	start := time.Now()
	category := model.CategoryUnknown
	defer func() {
		l.setState(StateIdle)
		l.metrics.CycleSeconds.Observe(time.Since(start).Seconds())
		if err != nil {
			l.metrics.Cycles.WithLabelValues("error").Inc()
			l.journal.Record(journal.Event{
				Type:      journal.EventCycleError,
				BinID:     l.cfg.BinID,
				Category:  categoryTag(category),
				Severity:  journal.SeverityError,
				Fields:    map[string]interface{}{"error": err.Error()},
				Timestamp: time.Now().UTC(),
			})
			return
		}
		l.metrics.Cycles.WithLabelValues("ok").Inc()
	}()

	l.setState(StateCapturing)
	if err := sleep(ctx, l.cfg.Debounce); err != nil {
		return err
	}
	key := l.newName() + ".jpg"
	path := filepath.Join(l.cfg.WorkDir, key)
	if err := l.camera.Capture(ctx, path); err != nil {
		l.discard(path)
		return fmt.Errorf("capture: %w", err)
	}

	l.setState(StateClassifying)
	result := l.classify(ctx, path, key)
	category = l.registry.Resolve(result)
	comp, err := l.registry.Get(category)
	if err != nil {
		return err
	}
	l.log.Info("classified", "label", result.Label, "confidence", result.Confidence, "compartment", category)

	l.setState(StateActuating)
	if err := comp.Gate.Deposit(ctx, l.cfg.DepositWindow); err != nil {
		return fmt.Errorf("deposit %s: %w", category, err)
	}

	l.setState(StateMeasuring)
	distance, err := comp.Sensor.Measure(ctx)
	if err != nil {
		if errors.Is(err, hardware.ErrSensorTimeout) {
			l.metrics.SensorTimeouts.Inc()
		}
		return fmt.Errorf("measure %s: %w", category, err)
	}
	pct := Fullness(l.cfg.BinHeight, distance)
	l.metrics.Fullness.WithLabelValues(category.String()).Set(pct)

	l.setState(StateReporting)
	payload, err := json.Marshal(model.FullnessEvent{BinID: l.cfg.BinID, TrashType: category, Percentage: pct})
	if err != nil {
		return err
	}
	if err := l.pub.Publish(ctx, l.topics.Fullness, 1, payload); err != nil {
		return fmt.Errorf("publish fullness: %w", err)
	}

	l.journal.Record(journal.Event{
		Type:     journal.EventDeposit,
		BinID:    l.cfg.BinID,
		Category: category.String(),
		Fields: map[string]interface{}{
			"label":       result.Label.String(),
			"confidence":  result.Confidence,
			"distance_cm": distance,
			"percentage":  pct,
		},
		Timestamp: time.Now().UTC(),
	})
	l.log.Info("deposit reported", "compartment", category, "distance_cm", distance, "percentage", pct)
	return nil
}

// classify stages the capture and asks the classifier about it. The local
// file is gone when it returns. Failures degrade to an unknown label.
func (l *ControlLoop) classify(ctx context.Context, path, key string) model.ClassificationResult {
	defer l.discard(path)

	if err := l.store.Upload(ctx, path, l.cfg.Bucket, key); err != nil {
		l.metrics.UploadFailures.Inc()
		l.metrics.Classifications.WithLabelValues(model.CategoryUnknown.String()).Inc()
		l.log.Warn("upload failed, image unavailable", "key", key, "err", err)
		return model.Unclassified()
	}
	res, err := l.classifier.Classify(ctx, model.ImageRef{Bucket: l.cfg.Bucket, Key: key})
	if err != nil {
		l.log.Warn("classification unavailable", "key", key, "err", err)
	}
	l.metrics.Classifications.WithLabelValues(res.Label.String()).Inc()
	return res
}

func (l *ControlLoop) discard(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		l.log.Warn("could not remove capture", "path", path, "err", err)
	}
}

func categoryTag(c model.Category) string {
	if c == model.CategoryUnknown {
		return ""
	}
	return c.String()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
