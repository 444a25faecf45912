package telemetry

import "sync"

// Message is one outbound publish.
type Message struct {
	Topic   string
	QoS     byte
	Payload []byte
}

// outbox is an unbounded FIFO of messages waiting for a connection.
type outbox struct {
	mu    sync.Mutex
	queue []Message
}

func (o *outbox) push(m Message) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.queue = append(o.queue, m)
	return len(o.queue)
}

func (o *outbox) peek() (Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.queue) == 0 {
		return Message{}, false
	}
	return o.queue[0], true
}

func (o *outbox) pop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.queue) == 0 {
		return
	}
	o.queue[0] = Message{}
	o.queue = o.queue[1:]
}

func (o *outbox) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}
