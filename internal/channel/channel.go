// Package channel defines how replies reach a chat platform and how long
// replies are split to fit platform limits.
package channel

import "context"

// Namespace is the module namespace of chat platforms, as in
// "channel.discord".
const Namespace = "channel"

// Transport delivers text to a chat channel. Implementations must be safe
// for concurrent use; the scheduler and the turn runner send from many
// goroutines.
type Transport interface {
	Send(ctx context.Context, channelID uint64, text string) error
}

// Limiter is implemented by transports with a maximum message size.
type Limiter interface {
	MaxMessageLength() int
}

// SendChunked splits text with cfg and sends each part in order, stopping at
// the first failure.
func SendChunked(ctx context.Context, t Transport, channelID uint64, text string, cfg ChunkConfig) error {
	if l, ok := t.(Limiter); ok && (cfg.MaxLength <= 0 || l.MaxMessageLength() < cfg.MaxLength) {
		cfg.MaxLength = l.MaxMessageLength()
	}
	parts := SplitText(text, cfg)
	if len(parts) == 0 {
		return ErrEmptyMessage
	}
	for _, part := range parts {
		if err := t.Send(ctx, channelID, part); err != nil {
			return err
		}
	}
	return nil
}
