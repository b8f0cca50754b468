package channel

import (
	"context"
	"sync"
)

// Sent is one message recorded by MockTransport.
type Sent struct {
	ChannelID uint64
	Text      string
}

// MockTransport is a Transport test double that records every message.
type MockTransport struct {
	// SendFunc, if set, is called instead of recording.
	SendFunc func(ctx context.Context, channelID uint64, text string) error

	// MaxLength, if positive, is reported through Limiter.
	MaxLength int

	mu   sync.Mutex
	sent []Sent
}

// Compile-time interface guards.
var (
	_ Transport = (*MockTransport)(nil)
	_ Limiter   = (*MockTransport)(nil)
)

// Send implements Transport.
func (m *MockTransport) Send(ctx context.Context, channelID uint64, text string) error {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, channelID, text)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, Sent{ChannelID: channelID, Text: text})
	return nil
}

// MaxMessageLength implements Limiter.
func (m *MockTransport) MaxMessageLength() int {
	if m.MaxLength > 0 {
		return m.MaxLength
	}
	return 1 << 20
}

// Sent returns a copy of every recorded message.
func (m *MockTransport) Sent() []Sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Sent(nil), m.sent...)
}
