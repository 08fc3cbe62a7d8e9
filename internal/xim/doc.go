// Package xim manages client-side sessions with an X Input Method server.
//
// A Session sits between the raw X event stream and the application. Key
// events are offered to the input-method protocol engine first; the engine
// either consumes them for composition or hands them back. Composition
// results arrive asynchronously through two application callbacks:
//
//   - commit string: the server produced text for a window
//   - forward event: the server examined a key and declined to consume it
//
// The session owns a single logical input context (IC). The IC is created
// lazily by a two-step handshake the first time a key event arrives:
//
//	NoContext --key event--> Opening --server ack--> Created
//
// While the handshake is in flight, ProcessEvent reports false and the
// caller handles keys locally. Once the context is Created, key events for
// the tracked window are forwarded to the server and the caller must wait
// for the commit/forward callbacks instead of processing them itself. Focus
// moves between windows retarget the existing context in place; the session
// never holds more than one IC.
//
// The XIM wire protocol itself lives behind the Engine interface, and
// compound-text conversion behind the Codec interface. Package ximtest
// provides a scripted Engine for tests and loopback demos.
package xim
