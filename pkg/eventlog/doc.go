// Package eventlog records connection lifecycle and message events for
// inspection via the control API.
//
// Every accepted connection, received message, and disconnect produces an
// Entry. Entries are held in a bounded in-memory store with FIFO eviction,
// so a long-running device never grows its history without limit. The
// store is queried newest-first, optionally filtered by kind or
// connection ID.
package eventlog
