package smartbin

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/smartbin/internal/model"
	"github.com/LeonardoBeccarini/smartbin/internal/services/journal"
	"github.com/LeonardoBeccarini/smartbin/pkg/telemetry"
)

type fakeGate struct {
	mu      sync.Mutex
	actions []string
	err     error
}

func (g *fakeGate) record(a string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.actions = append(g.actions, a)
	return g.err
}

func (g *fakeGate) Open(context.Context) error  { return g.record("open") }
func (g *fakeGate) Close(context.Context) error { return g.record("close") }
func (g *fakeGate) Deposit(context.Context, time.Duration) error {
	return g.record("deposit")
}

func (g *fakeGate) Actions() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.actions...)
}

func (g *fakeGate) Last() string {
	a := g.Actions()
	if len(a) == 0 {
		return ""
	}
	return a[len(a)-1]
}

type fakeSensor struct {
	distance float64
	err      error
}

func (s *fakeSensor) Measure(context.Context) (float64, error) { return s.distance, s.err }

type fakeCamera struct {
	err  error
	path string
}

func (c *fakeCamera) Capture(_ context.Context, path string) error {
	c.path = path
	if c.err != nil {
		return c.err
	}
	return os.WriteFile(path, []byte{0xff, 0xd8, 0xff}, 0o600)
}

type fakeStore struct {
	err     error
	keys    []string
	present bool
}

func (s *fakeStore) Upload(_ context.Context, localPath, _, key string) error {
	_, statErr := os.Stat(localPath)
	s.present = statErr == nil
	s.keys = append(s.keys, key)
	return s.err
}

type fakeClassifier struct {
	res    model.ClassificationResult
	err    error
	called int
	last   model.ImageRef
}

func (c *fakeClassifier) Classify(_ context.Context, img model.ImageRef) (model.ClassificationResult, error) {
	c.called++
	c.last = img
	if c.err != nil {
		return model.Unclassified(), c.err
	}
	return c.res, nil
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []telemetry.Message
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, topic string, qos byte, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, telemetry.Message{Topic: topic, QoS: qos, Payload: payload})
	return nil
}

func (p *fakePublisher) Sent() []telemetry.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]telemetry.Message(nil), p.msgs...)
}

type fakeMessage struct {
	topic   string
	id      uint16
	qos     byte
	dup     bool
	payload string
}

func (m fakeMessage) Duplicate() bool   { return m.dup }
func (m fakeMessage) Qos() byte         { return m.qos }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return m.id }
func (m fakeMessage) Payload() []byte   { return []byte(m.payload) }
func (m fakeMessage) Ack()              {}

type fakeChannel struct {
	connected bool
	pending   int
}

func (c fakeChannel) IsConnected() bool { return c.connected }
func (c fakeChannel) Pending() int      { return c.pending }

type fakeJournalStatus struct {
	age      time.Duration
	deposits int64
}

func (f fakeJournalStatus) LastErrorAge() time.Duration { return f.age }

func (f fakeJournalStatus) Count(t journal.EventType) int64 {
	if t == journal.EventDeposit {
		return f.deposits
	}
	return 0
}

var errBoom = errors.New("boom")
