// Package pir drives a private information retrieval engine on behalf of a
// client and a server.
//
// The client turns a secret index into a Query, the server turns a Query
// into a Reply, and the client decodes the Reply into the element. Moving
// Queries and Replies between the two is left to the caller.
//
// Client and Server each own one engine handle and are not safe for
// concurrent use. Callers that share one across goroutines must serialize
// all calls on it themselves. Query and Reply values are immutable and may
// be shared freely.
package pir

import (
	"log"
)

const (
	DefaultAlpha uint64 = 8
	DefaultDepth uint64 = 2
)

// One database row.
type Row []byte

// DBParams describes the database shape a handle operates on. Alpha and
// Depth are forwarded to the engine without interpretation.
type DBParams struct {
	ElementSize uint64
	NumElements uint64
	Alpha       uint64
	Depth       uint64
}

func (p DBParams) TotalLen() uint64 {
	return p.ElementSize * p.NumElements
}

func (p DBParams) validate() {
	if p.ElementSize == 0 || p.NumElements == 0 || p.Alpha == 0 || p.Depth == 0 {
		log.Panicf("pir: invalid database params %+v", p)
	}
	if p.TotalLen()/p.NumElements != p.ElementSize {
		log.Panicf("pir: database size overflows: %d elements of %d bytes", p.NumElements, p.ElementSize)
	}
}

// Query is a PIR query from a client to a server.
type Query struct {
	Payload    []byte
	ShardCount uint64
}

// Reply is a server's answer to a Query.
type Reply struct {
	Payload    []byte
	ShardCount uint64
}
