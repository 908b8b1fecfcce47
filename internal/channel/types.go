// Package channel abstracts outbound delivery of replies to messaging
// platforms. Adapters register by channel type; the bot pushes intermediate
// replies through whichever adapter the turn arrived on.
package channel

import (
	"context"
	"strings"

	"github.com/relaybot/relaybot/internal/reply"
)

// Type identifies a messaging platform (e.g. "telegram", "wx").
type Type string

// String returns the channel type as a plain string.
func (t Type) String() string {
	return string(t)
}

// Sender delivers a reply to a target on one platform. Delivery is
// fire-and-forget from the bot's point of view: a failure is logged by the
// caller, never fatal to the turn.
type Sender interface {
	Type() Type
	Send(ctx context.Context, target string, r reply.Reply) error
}

func normalizeType(raw string) Type {
	return Type(strings.TrimSpace(strings.ToLower(raw)))
}
