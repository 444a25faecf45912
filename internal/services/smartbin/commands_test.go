package smartbin

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/smartbin/internal/hardware"
	"github.com/LeonardoBeccarini/smartbin/internal/model"
	"github.com/LeonardoBeccarini/smartbin/internal/services/journal"
)

func TestExecuteDrivesEveryGateOnce(t *testing.T) {
	h := newHarness(t, model.Unclassified())

	h.loop.Execute(context.Background(), model.RemoteCommand{Action: model.ActionOpen})
	for cat, g := range h.gates {
		require.Equal(t, []string{"open"}, g.Actions(), cat.String())
	}

	// idempotente: un secondo open ripete il movimento senza errori
	h.loop.Execute(context.Background(), model.RemoteCommand{Action: model.ActionOpen})
	h.loop.Execute(context.Background(), model.RemoteCommand{Action: model.ActionClose})
	for _, g := range h.gates {
		require.Equal(t, []string{"open", "open", "close"}, g.Actions())
	}

	require.Equal(t, 2.0, testutil.ToFloat64(h.metrics.Commands.WithLabelValues("open")))
	require.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Commands.WithLabelValues("close")))
	require.Len(t, h.journal.events, 3)
	require.Equal(t, journal.EventCommand, h.journal.events[0].Type)
}

func TestExecuteContinuesPastFailingGate(t *testing.T) {
	h := newHarness(t, model.Unclassified())
	h.gates[model.CategoryTrash].err = hardware.ErrActuator

	h.loop.Execute(context.Background(), model.RemoteCommand{Action: model.ActionClose})

	require.Equal(t, []string{"close"}, h.gates[model.CategoryPaper].Actions())
	require.Equal(t, journal.SeverityWarn, h.journal.events[0].Severity)
	require.Equal(t, int64(1), h.journal.events[0].Fields["failed"])
}

func TestExecuteStaggersGates(t *testing.T) {
	h := newHarness(t, model.Unclassified())
	h.loop.cfg.CommandStagger = 30 * time.Millisecond

	start := time.Now()
	h.loop.Execute(context.Background(), model.RemoteCommand{Action: model.ActionOpen})
	require.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.loop.Execute(ctx, model.RemoteCommand{Action: model.ActionClose})
	// solo il primo cancello prima dell'attesa interrotta
	require.Equal(t, "close", h.gates[model.CategoryTrash].Last())
	require.Equal(t, "open", h.gates[model.CategoryPaper].Last())
}

func TestHandleAction(t *testing.T) {
	h := newHarness(t, model.Unclassified())
	topic := h.loop.Topics().Action

	require.NoError(t, h.loop.HandleAction(topic, fakeMessage{topic: topic, payload: "close"}))
	require.Len(t, h.loop.commands, 1)
	require.Equal(t, model.ActionClose, (<-h.loop.commands).Action)

	for _, p := range []string{"OPEN", "toggle", "", `{"action":"open"}`, " close\n"} {
		require.NoError(t, h.loop.HandleAction(topic, fakeMessage{topic: topic, payload: p}))
	}
	require.Empty(t, h.loop.commands)
	require.Equal(t, 5.0, testutil.ToFloat64(h.metrics.Commands.WithLabelValues("ignored")))
}

func TestHandleActionDropsRedelivery(t *testing.T) {
	h := newHarness(t, model.Unclassified())
	topic := h.loop.Topics().Action

	first := fakeMessage{topic: topic, id: 7, qos: 1, payload: "open"}
	require.NoError(t, h.loop.HandleAction(topic, first))

	again := first
	again.dup = true
	require.NoError(t, h.loop.HandleAction(topic, again))
	require.Len(t, h.loop.commands, 1)
	require.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Commands.WithLabelValues("duplicate")))

	// stesso payload, nuovo id: è un comando nuovo
	require.NoError(t, h.loop.HandleAction(topic, fakeMessage{topic: topic, id: 8, qos: 1, payload: "open"}))
	require.Len(t, h.loop.commands, 2)
}

func TestSubmitQueueFull(t *testing.T) {
	h := newHarness(t, model.Unclassified())
	for i := 0; i < cap(h.loop.commands); i++ {
		require.NoError(t, h.loop.Submit(model.RemoteCommand{Action: model.ActionOpen}))
	}
	err := h.loop.Submit(model.RemoteCommand{Action: model.ActionClose})
	require.ErrorIs(t, err, ErrCommandDropped)
	require.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Commands.WithLabelValues("dropped")))
}

func TestCommandsApplyInArrivalOrder(t *testing.T) {
	h := newHarness(t, model.Unclassified())
	require.NoError(t, h.loop.Submit(model.RemoteCommand{Action: model.ActionOpen}))
	require.NoError(t, h.loop.Submit(model.RemoteCommand{Action: model.ActionClose}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.loop.runCommands(ctx)

	require.Eventually(t, func() bool {
		for _, g := range h.gates {
			if len(g.Actions()) != 2 {
				return false
			}
		}
		return true
	}, time.Second, 5*time.Millisecond)
	for _, g := range h.gates {
		require.Equal(t, []string{"open", "close"}, g.Actions())
	}
}
