package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type message struct {
	topic string
	id    uint16
	qos   byte
	dup   bool
}

func (m message) Duplicate() bool   { return m.dup }
func (m message) Qos() byte         { return m.qos }
func (m message) Retained() bool    { return false }
func (m message) Topic() string     { return m.topic }
func (m message) MessageID() uint16 { return m.id }
func (m message) Payload() []byte   { return []byte("open") }
func (m message) Ack()              {}

func TestRedeliveredAfterExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	d := New(time.Second, 10)
	d.now = func() time.Time { return now }
	first := message{topic: "bin/x/action", id: 3, qos: 1}
	retry := message{topic: "bin/x/action", id: 3, qos: 1, dup: true}

	require.False(t, d.Redelivered(first))
	now = now.Add(2 * time.Second)
	require.False(t, d.Redelivered(retry), "the first delivery has expired")
}

func TestCapacityEvictsOldest(t *testing.T) {
	now := time.Unix(1000, 0)
	d := New(time.Hour, 2)
	d.now = func() time.Time { return now }
	msg := func(id uint16, dup bool) message {
		return message{topic: "bin/x/action", id: id, qos: 1, dup: dup}
	}

	require.False(t, d.Redelivered(msg(1, false)))
	now = now.Add(time.Second)
	require.False(t, d.Redelivered(msg(2, false)))
	now = now.Add(time.Second)
	require.False(t, d.Redelivered(msg(3, false)))

	require.Len(t, d.seen, 2)
	require.False(t, d.Redelivered(msg(1, true)), "1 was evicted")
	require.True(t, d.Redelivered(msg(3, true)))
}

func TestRedelivered(t *testing.T) {
	d := New(time.Minute, 10)
	first := message{topic: "bin/x/action", id: 7, qos: 1}
	retry := message{topic: "bin/x/action", id: 7, qos: 1, dup: true}

	require.False(t, d.Redelivered(first))
	require.True(t, d.Redelivered(retry))

	// a fresh publish that reuses the id is not a redelivery
	require.False(t, d.Redelivered(first))

	// a dup flag on an id never seen is processed
	require.False(t, d.Redelivered(message{topic: "bin/x/action", id: 8, qos: 1, dup: true}))

	// qos 0 is never filtered
	require.False(t, d.Redelivered(message{topic: "bin/x/action", qos: 0, dup: true}))
}
