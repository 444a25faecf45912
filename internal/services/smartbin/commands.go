package smartbin

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/LeonardoBeccarini/smartbin/internal/model"
	"github.com/LeonardoBeccarini/smartbin/internal/services/journal"
)

// HandleAction is the handler for bin/{id}/action. It only parses and
// enqueues; the gates are driven by the command worker.
func (l *ControlLoop) HandleAction(topic string, msg mqtt.Message) error {
	if l.deduper.Redelivered(msg) {
		l.metrics.Commands.WithLabelValues("duplicate").Inc()
		l.log.Debug("dropping redelivered command", "topic", topic, "message_id", msg.MessageID())
		return nil
	}
	cmd, ok := model.ParseRemoteCommand(msg.Payload())
	if !ok {
		l.metrics.Commands.WithLabelValues("ignored").Inc()
		l.log.Debug("ignoring unrecognised action", "topic", topic, "payload", string(msg.Payload()))
		return nil
	}
	return l.Submit(cmd)
}

// Submit queues cmd for the command worker without blocking.
func (l *ControlLoop) Submit(cmd model.RemoteCommand) error {
	select {
	case l.commands <- cmd:
		return nil
	default:
		l.metrics.Commands.WithLabelValues("dropped").Inc()
		return fmt.Errorf("%w: %s", ErrCommandDropped, cmd.Action)
	}
}

func (l *ControlLoop) runCommands(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-l.commands:
			l.Execute(ctx, cmd)
		}
	}
}

// Execute drives every enabled gate to the commanded position, one gate at a
// time with CommandStagger between them.
func (l *ControlLoop) Execute(ctx context.Context, cmd model.RemoteCommand) {
	start := time.Now()
	failed := 0
	for i, cat := range l.registry.Categories() {
		if i > 0 {
			if err := sleep(ctx, l.cfg.CommandStagger); err != nil {
				l.log.Warn("command interrupted", "action", cmd.Action, "err", err)
				return
			}
		}
		comp, err := l.registry.Get(cat)
		if err != nil {
			failed++
			continue
		}
		switch cmd.Action {
		case model.ActionOpen:
			err = comp.Gate.Open(ctx)
		case model.ActionClose:
			err = comp.Gate.Close(ctx)
		}
		if err != nil {
			failed++
			l.log.Warn("gate command failed", "action", cmd.Action, "compartment", cat, "err", err)
		}
	}

	l.metrics.Commands.WithLabelValues(string(cmd.Action)).Inc()
	sev := journal.SeverityInfo
	if failed > 0 {
		sev = journal.SeverityWarn
	}
	l.journal.Record(journal.Event{
		Type:      journal.EventCommand,
		BinID:     l.cfg.BinID,
		Severity:  sev,
		Fields:    map[string]interface{}{"action": string(cmd.Action), "failed": int64(failed)},
		Timestamp: time.Now().UTC(),
	})
	l.log.Info("command executed", "action", cmd.Action, "failed", failed, "took", time.Since(start).Round(time.Millisecond))
}
