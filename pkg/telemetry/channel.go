// Package telemetry keeps the device's MQTT session to the cloud broker alive.
// Outbound messages are queued without limit while the broker is unreachable
// and drained at a fixed rate once the session is back.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

var (
	ErrChannelDisconnected = errors.New("telemetry: channel disconnected")
	ErrAlreadySubscribed   = errors.New("telemetry: topic already has a handler")
	ErrClosed              = errors.New("telemetry: channel closed")
)

// Handler receives every message delivered on a subscribed topic. It runs on
// the transport's goroutine and must not block for long.
type Handler func(topic string, msg mqtt.Message) error

type subscription struct {
	qos     byte
	handler Handler
}

type Channel struct {
	cfg    Config
	log    *slog.Logger
	client mqtt.Client

	mu     sync.Mutex
	subs   map[string]subscription
	cancel context.CancelFunc

	out outbox

	up        chan struct{}
	upOnce    sync.Once
	startOnce sync.Once
	wg        sync.WaitGroup
	closed    atomic.Bool
}

func New(cfg Config, log *slog.Logger) (*Channel, error) {
	cfg = cfg.WithDefaults()
	if cfg.Host == "" {
		return nil, errors.New("telemetry: broker host is required")
	}
	if log == nil {
		log = slog.Default()
	}
	c := &Channel{
		cfg:  cfg,
		log:  log.With("component", "telemetry"),
		subs: make(map[string]subscription),
		up:   make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.brokerURL())
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(cfg.RetryMax)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetWriteTimeout(cfg.OperationTimeout)
	opts.SetKeepAlive(cfg.KeepAlive)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
		c.log.Info("reconnecting", "broker", cfg.brokerURL())
	})
	if cfg.tlsEnabled() {
		tc, err := newTLSConfig(cfg.RootCA, cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tc)
	}
	c.client = mqtt.NewClient(opts)
	return c, nil
}

// Connect starts the session in the background and waits at most
// ConnectTimeout for it to come up. If it does not, ErrChannelDisconnected is
// returned but the channel keeps retrying and queueing until Close.
// ctx only bounds the wait.
func (c *Channel) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.startOnce.Do(func() {
		runCtx, cancel := context.WithCancel(context.Background())
		c.mu.Lock()
		c.cancel = cancel
		c.mu.Unlock()

		c.wg.Add(2)
		go c.connectLoop(runCtx)
		go c.drainLoop(runCtx)
	})

	t := time.NewTimer(c.cfg.ConnectTimeout)
	defer t.Stop()
	select {
	case <-c.up:
		return nil
	case <-t.C:
		return fmt.Errorf("%w: %s not reachable within %s", ErrChannelDisconnected, c.cfg.brokerURL(), c.cfg.ConnectTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// connectLoop owns the first connection only; paho's auto-reconnect takes
// over once a session has been established.
func (c *Channel) connectLoop(ctx context.Context) {
	defer c.wg.Done()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.RetryInitial
	bo.MaxInterval = c.cfg.RetryMax
	bo.MaxElapsedTime = 0

	err := backoff.RetryNotify(func() error {
		tok := c.client.Connect()
		tok.Wait()
		return tok.Error()
	}, backoff.WithContext(bo, ctx), func(err error, next time.Duration) {
		c.log.Warn("broker connect failed", "broker", c.cfg.brokerURL(), "err", err, "retry_in", next)
	})
	if err != nil {
		c.log.Debug("connect loop stopped", "err", err)
		return
	}
	if ctx.Err() != nil {
		// Close raced with a late successful connect
		c.client.Disconnect(0)
	}
}

func (c *Channel) onConnect(mqtt.Client) {
	c.log.Info("connected", "broker", c.cfg.brokerURL(), "pending", c.out.len())
	c.upOnce.Do(func() { close(c.up) })

	// clean session: every (re)connect starts with no subscriptions
	c.mu.Lock()
	subs := maps.Clone(c.subs)
	c.mu.Unlock()
	for topic, s := range subs {
		if err := c.subscribe(topic, s); err != nil {
			c.log.Error("resubscribe failed", "topic", topic, "err", err)
		}
	}
}

func (c *Channel) onConnectionLost(_ mqtt.Client, err error) {
	c.log.Warn("connection lost", "err", err, "pending", c.out.len())
}

// Subscribe registers the single handler for topic. Subscriptions made while
// offline are issued on the next connect.
func (c *Channel) Subscribe(topic string, qos byte, h Handler) error {
	if h == nil {
		return fmt.Errorf("telemetry: nil handler for %s", topic)
	}
	c.mu.Lock()
	if _, ok := c.subs[topic]; ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadySubscribed, topic)
	}
	s := subscription{qos: qos, handler: h}
	c.subs[topic] = s
	c.mu.Unlock()

	if !c.client.IsConnectionOpen() {
		c.log.Debug("subscription deferred until connected", "topic", topic)
		return nil
	}
	return c.subscribe(topic, s)
}

func (c *Channel) subscribe(topic string, s subscription) error {
	tok := c.client.Subscribe(topic, s.qos, func(_ mqtt.Client, msg mqtt.Message) {
		if err := s.handler(topic, msg); err != nil {
			c.log.Warn("handler error", "topic", msg.Topic(), "err", err)
		}
	})
	if !tok.WaitTimeout(c.cfg.OperationTimeout) {
		return fmt.Errorf("telemetry: subscribe %s: timed out after %s", topic, c.cfg.OperationTimeout)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("telemetry: subscribe %s: %w", topic, err)
	}
	c.log.Info("subscribed", "topic", topic, "qos", s.qos)
	return nil
}

// Publish sends payload when the session is up and nothing is queued ahead of
// it; otherwise, or if the send fails, the message joins the outbox. A nil
// error means the message was accepted for at-least-once delivery.
func (c *Channel) Publish(ctx context.Context, topic string, qos byte, payload []byte) error {
	if c.closed.Load() {
		return ErrClosed
	}
	m := Message{Topic: topic, QoS: qos, Payload: payload}
	if !c.client.IsConnectionOpen() || c.out.len() > 0 {
		n := c.out.push(m)
		c.log.Debug("queued", "topic", topic, "pending", n)
		return nil
	}
	if err := c.send(ctx, m); err != nil {
		n := c.out.push(m)
		c.log.Warn("publish failed, queued", "topic", topic, "err", err, "pending", n)
	}
	return nil
}

func (c *Channel) send(ctx context.Context, m Message) error {
	tok := c.client.Publish(m.Topic, m.QoS, false, m.Payload)
	t := time.NewTimer(c.cfg.OperationTimeout)
	defer t.Stop()
	select {
	case <-tok.Done():
		return tok.Error()
	case <-t.C:
		return fmt.Errorf("telemetry: publish %s: timed out after %s", m.Topic, c.cfg.OperationTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Channel) drainLoop(ctx context.Context) {
	defer c.wg.Done()
	t := time.NewTicker(c.cfg.drainInterval())
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		if !c.client.IsConnectionOpen() {
			continue
		}
		m, ok := c.out.peek()
		if !ok {
			continue
		}
		if err := c.send(ctx, m); err != nil {
			c.log.Warn("drain publish failed", "topic", m.Topic, "err", err)
			continue
		}
		c.out.pop()
		c.log.Debug("drained", "topic", m.Topic, "pending", c.out.len())
	}
}

func (c *Channel) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// Pending is the number of messages waiting in the outbox.
func (c *Channel) Pending() int {
	return c.out.len()
}

// Close stops the background loops and disconnects. Queued messages are lost.
func (c *Channel) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.client.Disconnect(250)
	c.wg.Wait()
	if n := c.out.len(); n > 0 {
		c.log.Warn("closed with undelivered messages", "pending", n)
	}
}
