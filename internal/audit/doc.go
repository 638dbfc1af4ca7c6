// Package audit implements async event dispatching for security-relevant operations.
//
// # Components
//
//   - [Sink] interface for event consumers (channel, JSON writer, logrus, no-op).
//   - [Dispatcher] buffered async relay with drop-if-full or block-if-full semantics.
//   - [Event] structured audit record with timestamp, type, user, role, booking, IP.
//
// The Engine decides which events to emit. This package only buffers and
// delivers them.
package audit
