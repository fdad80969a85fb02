// Package transport bridges the pipeline driver to household messaging
// surfaces (Discord, Telegram, Slack) so a request can arrive from wherever
// the household already talks, not just the A2A/voice front ends. Each
// adapter is a thin channel.Channel implementation in the style of the
// teacher's cortex-gateway channel package: buffered inbound queue, a
// Start/Stop lifecycle, and a text-only SendMessage for replies.
package transport

import "context"

// Message is one inbound message from a household messaging surface.
type Message struct {
	ID       string
	Channel  string
	UserID   string
	Content  string
	Metadata map[string]string
}

// Channel is the capability set a messaging bridge exposes to the Router.
type Channel interface {
	Name() string
	IsEnabled() bool
	Start(ctx context.Context) error
	Stop() error
	Incoming() <-chan *Message
	SendMessage(userID, content string) error
}

// Driver is the subset of orchestrator.Driver the Router needs. A narrow
// interface here keeps this package free of an orchestrator import.
type Driver interface {
	Process(ctx context.Context, userID, personaID, input string) (Result, error)
}

// Result carries just the reply text the Router forwards back to a channel.
type Result struct {
	Text string
}
