// Package tntcore is a client for a Tarantool-style database server
// speaking the IPROTO binary protocol. A single Client multiplexes many
// concurrent callers over one TCP connection: each call allocates a sync
// tag, a sender worker drains serialized requests onto the wire, and a
// receiver worker demultiplexes responses back to their caller by that
// tag.
//
// The protocol bookkeeping itself (internal/protocol) is sans-I/O and
// tested with literal byte sequences; this package wires it to a real
// net.Conn with two goroutines and ordinary Go concurrency primitives.
package tntcore
