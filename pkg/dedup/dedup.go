// Package dedup filters broker redeliveries of QoS1 messages.
package dedup

import (
	"strconv"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Deduper remembers keys for ttl, holding at most max of them.
type Deduper struct {
	mu   sync.Mutex
	ttl  time.Duration
	max  int
	seen map[string]time.Time
	now  func() time.Time
}

func New(ttl time.Duration, max int) *Deduper {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if max <= 0 {
		max = 1024
	}
	return &Deduper{ttl: ttl, max: max, seen: make(map[string]time.Time, max), now: time.Now}
}

// Redelivered reports whether msg is a broker retry of a message already
// handled. First deliveries are recorded and never reported, so the same
// payload published twice by an operator is processed twice.
func (d *Deduper) Redelivered(msg mqtt.Message) bool {
	if msg.Qos() == 0 || msg.MessageID() == 0 {
		return false
	}
	key := msg.Topic() + "#" + strconv.Itoa(int(msg.MessageID()))

	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	if msg.Duplicate() {
		if exp, ok := d.seen[key]; ok && now.Before(exp) {
			return true
		}
	}
	d.remember(key, now)
	return false
}

// caller holds d.mu
func (d *Deduper) remember(id string, now time.Time) {
	d.seen[id] = now.Add(d.ttl)
	if len(d.seen) <= d.max {
		return
	}
	var oldestKey string
	var oldest time.Time
	for k, exp := range d.seen {
		if now.After(exp) {
			delete(d.seen, k)
			continue
		}
		if oldestKey == "" || exp.Before(oldest) {
			oldestKey, oldest = k, exp
		}
	}
	if len(d.seen) > d.max && oldestKey != "" {
		delete(d.seen, oldestKey)
	}
}
