package inproc

import (
	"errors"
	"sync"

	"agentsim/internal/domain"
)

var (
	ErrAgentNotRegistered = errors.New("agent is not registered in bus")
	ErrAgentQueueFull     = errors.New("agent queue is full")
)

// Bus is an in-process broadcast channel between peer agents. Peers register
// under their agent ID and drain their channel between coordination rounds.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]chan domain.Message
	buffer int
}

func New(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{
		subs:   make(map[string]chan domain.Message),
		buffer: buffer,
	}
}

func (b *Bus) Register(agentID string) <-chan domain.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subs[agentID]; ok {
		return ch
	}
	ch := make(chan domain.Message, b.buffer)
	b.subs[agentID] = ch
	return ch
}

func (b *Bus) Unregister(agentID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subs[agentID]
	if !ok {
		return
	}
	delete(b.subs, agentID)
	close(ch)
}

// Broadcast delivers msg to every registered peer except the sender and
// returns the number of deliveries. The sender itself must be registered.
func (b *Bus) Broadcast(msg domain.Message) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if _, ok := b.subs[msg.SenderID]; !ok {
		return 0, ErrAgentNotRegistered
	}

	delivered := 0
	for agentID, ch := range b.subs {
		if agentID == msg.SenderID {
			continue
		}
		select {
		case ch <- msg:
			delivered++
		default:
			return delivered, ErrAgentQueueFull
		}
	}
	return delivered, nil
}

// Drain returns every message currently queued for agentID without blocking.
func (b *Bus) Drain(agentID string) []domain.Message {
	b.mu.RLock()
	ch, ok := b.subs[agentID]
	b.mu.RUnlock()
	if !ok {
		return nil
	}

	var msgs []domain.Message
	for {
		select {
		case msg := <-ch:
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}
