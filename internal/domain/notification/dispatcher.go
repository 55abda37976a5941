package notification

import "context"

// Dispatcher delivers a message to an address. A returned error means the
// message was not accepted for delivery.
type Dispatcher interface {
	Send(ctx context.Context, to, subject, body string) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, to, subject, body string) error

func (f DispatcherFunc) Send(ctx context.Context, to, subject, body string) error {
	return f(ctx, to, subject, body)
}
