// Package engine defines the boundary between the PIR orchestration layer
// and the engine that performs the actual scheme.
//
// An engine hands out opaque handles and engine-allocated result buffers.
// Whoever receives a Buffer owns it and must pass it to BufferFree exactly
// once. Handles are not safe for concurrent use: the engine may advance
// internal state (hints, counters, the pending query) on every call.
package engine

import (
	"errors"
)

var (
	ErrAlloc          = errors.New("engine: allocation failed")
	ErrHandleFreed    = errors.New("engine: handle used after teardown")
	ErrForeignHandle  = errors.New("engine: handle not issued by this engine")
	ErrShardCount     = errors.New("engine: unexpected shard count")
	ErrNoPendingQuery = errors.New("engine: reply without a pending query")
)

// Handle is an opaque engine context. Only the engine that issued it may
// interpret it.
type Handle interface{}

// Buffer is a result region allocated inside the engine.
type Buffer interface {
	// Len is the length reported by the engine. It is authoritative.
	Len() uint64
	// Bytes is a view into engine memory, valid until BufferFree.
	Bytes() []byte
}

type ClientEngine interface {
	ClientSetup(totalLen, num, alpha, depth uint64) (Handle, error)
	ClientUpdateParams(h Handle, totalLen, num, alpha, depth uint64) error
	ClientGenerateQuery(h Handle, index uint64) (q Buffer, shards uint64, err error)
	ClientProcessReply(h Handle, reply []byte, shards uint64) (Buffer, error)
	ClientFree(h Handle)
	BufferFree(b Buffer)
}

type ServerEngine interface {
	// ServerSetup ingests collection; the engine must not retain it.
	ServerSetup(totalLen uint64, collection []byte, num, alpha, depth uint64) (Handle, error)
	ServerProcessQuery(h Handle, query []byte, shards uint64) (r Buffer, replyShards uint64, err error)
	ServerFree(h Handle)
	BufferFree(b Buffer)
}

type Engine interface {
	ClientEngine
	ServerEngine
}
