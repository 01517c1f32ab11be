package mail

import "context"

// Message is a single outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
	HTML    bool
}

// Sender delivers one message. Implementations must be safe for concurrent
// use; batch chunking and retry policy live with the caller.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
