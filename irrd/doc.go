// Package irrd provides a client implementation of the IRRd query protocol
// with pipelined query execution over a single persistent connection.
//
// The primary lifecycle is:
//   - construct a Client with NewClient
//   - Connect to a server address
//   - create a Pipeline and Submit queries, or use the Conn convenience
//     helpers for one-shot queries
//   - consume each Response in submission order
//   - Close when finished
//
// Responses arrive in the exact order queries were submitted; the pipeline
// enforces this ordering and resolves each Response handle against the next
// frame the server sends. Data responses are consumed as lazy record
// sequences and may be abandoned at any point — the pipeline drains unread
// body bytes itself before resolving younger handles.
//
// Registry-level outcomes (key not found, key not unique, server error
// text) are reported as response statuses, not connection faults. Transport
// failures and malformed framing are terminal: they fail every outstanding
// handle and every later Submit.
//
// A Pipeline serializes its own state but is designed for use from one
// goroutine; response resolution blocks while frame bytes are awaited from
// the server.
package irrd
