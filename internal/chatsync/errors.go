package chatsync

import "errors"

var (
	// ErrBootstrapFailed wraps any failure to acquire a backend session id.
	// The caller decides whether to surface it or retry manually.
	ErrBootstrapFailed = errors.New("session bootstrap failed")

	// ErrChannelNotOpen is returned when a send is attempted outside the
	// Open state. Messages are never buffered while the channel is down.
	ErrChannelNotOpen = errors.New("channel is not open")

	// ErrAwaitingReply rejects a second send while a reply is still pending.
	ErrAwaitingReply = errors.New("a reply is still pending")

	// ErrMalformedPayload marks an inbound frame that failed to decode. The
	// reconciler stays in its awaiting state when this happens.
	ErrMalformedPayload = errors.New("malformed server payload")

	// ErrClosed is returned by orchestrator operations after teardown.
	ErrClosed = errors.New("orchestrator is closed")

	// ErrNotInitialized is returned by sends and selects attempted before a
	// successful Initialize.
	ErrNotInitialized = errors.New("orchestrator is not initialized")

	// ErrAlreadyInitialized guards against a second Initialize on the same
	// orchestrator instance.
	ErrAlreadyInitialized = errors.New("orchestrator already initialized")
)
