// Package ws implements the WebSocket server side of blinksock: the upgrade
// handshake, a two-phase frame codec, the per-connection echo loop, and the
// registry of active connections.
//
// This is deliberately not a general-purpose WebSocket library. It serves
// exactly one route and one message semantic: every received text or binary
// frame is sent back unchanged, and each successful echo fires the feedback
// actuator once. Control frames follow normal WebSocket semantics (ping is
// answered with pong, close completes the closing handshake).
//
// The receive path keeps the two-step contract of the underlying design:
// ReadHeader probes the declared payload length without committing to a read,
// ReadPayload then reads exactly that many bytes into a zero-initialized
// buffer. The two steps are intentionally not collapsed into one call, since
// collapsing would force an unbounded pre-allocation before the length is
// known.
//
// Usage:
//
//	registry := ws.NewRegistry()
//	endpoint := ws.NewEndpoint(ws.DefaultEndpointConfig(), registry, actuator)
//	mux.Handle("/ws", endpoint)
package ws
