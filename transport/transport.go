// Package transport defines what the network transports share: the handler
// that turns one inbound MCP message into its reply.
package transport

import "context"

// MessageHandler processes one raw message and returns the raw reply. A nil
// reply means nothing is sent back (notifications).
type MessageHandler func(ctx context.Context, message []byte) ([]byte, error)
