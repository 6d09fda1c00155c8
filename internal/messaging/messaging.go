// Package messaging delivers bot replies to contacts over an outbound
// messaging API. Provider adapters live in sub-packages.
package messaging

import (
	"context"
	"strings"
)

// Message is one outbound reply.
type Message struct {
	// To is the destination address, e.g. "whatsapp:+15551234567".
	To string

	// Body is the reply text. May be empty when MediaURL is set.
	Body string

	// MediaURL is an optional publicly reachable URL of an attachment.
	MediaURL string
}

// Sender delivers outbound messages. Implementations must be safe for
// concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ChannelWhatsApp is the address prefix of the WhatsApp channel.
const ChannelWhatsApp = "whatsapp"

// NormalizeAddress ensures addr carries the "<channel>:" prefix. Spaces are
// removed and an existing prefix is lowercased. An empty channel returns the
// trimmed address unchanged.
func NormalizeAddress(channel, addr string) string {
	addr = strings.ReplaceAll(strings.TrimSpace(addr), " ", "")
	if channel == "" || addr == "" {
		return addr
	}
	if i := strings.IndexByte(addr, ':'); i > 0 {
		return strings.ToLower(addr[:i]) + addr[i:]
	}
	return channel + ":" + addr
}
