// Package nonprivate is an engine that sends the index in the clear. It
// offers no privacy and exists to exercise the orchestration layer: every
// buffer it returns comes from an engine.Heap, so tests can check that each
// one is released exactly once.
//
// Replies are split into Reed-Solomon shards, which gives the reply a shard
// count other than one and lets the client detect a damaged reply.
package nonprivate

import (
	"bytes"
	"encoding/binary"
	"log"

	"github.com/klauspost/reedsolomon"
	"github.com/pkg/errors"

	"github.com/dimakogan/hpir/engine"
)

const (
	DefaultDataShards   = 4
	DefaultParityShards = 2
)

type Engine struct {
	Heap    *engine.Heap
	Handles engine.HandleSet

	dataShards   int
	parityShards int
	rs           reedsolomon.Encoder
}

type Option func(*Engine)

// WithShards sets how many data and parity shards a reply is split into.
func WithShards(data, parity int) Option {
	return func(e *Engine) {
		e.dataShards = data
		e.parityShards = parity
	}
}

func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		Heap:         engine.NewHeap(),
		dataShards:   DefaultDataShards,
		parityShards: DefaultParityShards,
	}
	for _, opt := range opts {
		opt(e)
	}
	var err error
	if e.rs, err = reedsolomon.New(e.dataShards, e.parityShards); err != nil {
		return nil, errors.Wrap(err, "nonprivate: could not create RS encoder")
	}
	return e, nil
}

type nonPrivateClient struct {
	engine.Shape
}

type nonPrivateServer struct {
	engine.Shape
	flatDb []byte
}

func (e *Engine) ClientSetup(totalLen, num, alpha, depth uint64) (engine.Handle, error) {
	shape, err := engine.NewShape(totalLen, num, alpha, depth)
	if err != nil {
		return nil, err
	}
	return e.Handles.Add(&nonPrivateClient{shape}), nil
}

func (e *Engine) client(h engine.Handle) (*nonPrivateClient, error) {
	state, err := e.Handles.Get(h)
	if err != nil {
		return nil, err
	}
	c, ok := state.(*nonPrivateClient)
	if !ok {
		return nil, engine.ErrForeignHandle
	}
	return c, nil
}

func (e *Engine) ClientUpdateParams(h engine.Handle, totalLen, num, alpha, depth uint64) error {
	c, err := e.client(h)
	if err != nil {
		return err
	}
	shape, err := engine.NewShape(totalLen, num, alpha, depth)
	if err != nil {
		return err
	}
	c.Shape = shape
	return nil
}

func (e *Engine) ClientGenerateQuery(h engine.Handle, index uint64) (engine.Buffer, uint64, error) {
	c, err := e.client(h)
	if err != nil {
		return nil, 0, err
	}
	if index >= c.Num {
		return nil, 0, errors.Errorf("nonprivate: index %d out of range [0:%d)", index, c.Num)
	}
	q := make([]byte, 8)
	binary.LittleEndian.PutUint64(q, index)
	return e.Heap.Alloc(q), 1, nil
}

func (e *Engine) ClientProcessReply(h engine.Handle, reply []byte, shards uint64) (engine.Buffer, error) {
	c, err := e.client(h)
	if err != nil {
		return nil, err
	}
	total := e.dataShards + e.parityShards
	if shards != uint64(total) {
		return nil, errors.Wrapf(engine.ErrShardCount, "nonprivate: have %d, want %d", shards, total)
	}
	if len(reply) == 0 || len(reply)%total != 0 {
		return nil, errors.Errorf("nonprivate: reply length %d does not split into %d shards", len(reply), total)
	}

	shardLen := len(reply) / total
	parts := make([][]byte, total)
	for i := range parts {
		parts[i] = reply[i*shardLen : (i+1)*shardLen]
	}
	ok, err := e.rs.Verify(parts)
	if err != nil {
		return nil, errors.Wrap(err, "nonprivate: verify reply")
	}
	if !ok {
		return nil, errors.New("nonprivate: reply parity mismatch")
	}

	var out bytes.Buffer
	if err := e.rs.Join(&out, parts, int(c.ElementSize())); err != nil {
		return nil, errors.Wrap(err, "nonprivate: join reply")
	}
	return e.Heap.Alloc(out.Bytes()), nil
}

func (e *Engine) ClientFree(h engine.Handle) {
	if _, err := e.client(h); err != nil {
		log.Panicf("nonprivate: ClientFree: %v", err)
	}
	e.Handles.Release(h)
}

func (e *Engine) ServerSetup(totalLen uint64, collection []byte, num, alpha, depth uint64) (engine.Handle, error) {
	shape, err := engine.NewShape(totalLen, num, alpha, depth)
	if err != nil {
		return nil, err
	}
	if uint64(len(collection)) < totalLen {
		return nil, errors.Errorf("nonprivate: collection holds %d bytes, need %d", len(collection), totalLen)
	}
	s := &nonPrivateServer{Shape: shape, flatDb: append([]byte(nil), collection[:totalLen]...)}
	return e.Handles.Add(s), nil
}

func (e *Engine) server(h engine.Handle) (*nonPrivateServer, error) {
	state, err := e.Handles.Get(h)
	if err != nil {
		return nil, err
	}
	s, ok := state.(*nonPrivateServer)
	if !ok {
		return nil, engine.ErrForeignHandle
	}
	return s, nil
}

func (e *Engine) ServerProcessQuery(h engine.Handle, query []byte, shards uint64) (engine.Buffer, uint64, error) {
	s, err := e.server(h)
	if err != nil {
		return nil, 0, err
	}
	if shards != 1 {
		return nil, 0, errors.Wrapf(engine.ErrShardCount, "nonprivate: have %d, want 1", shards)
	}
	if len(query) != 8 {
		return nil, 0, errors.Errorf("nonprivate: malformed query of %d bytes", len(query))
	}
	idx := binary.LittleEndian.Uint64(query)
	if idx >= s.Num {
		return nil, 0, errors.Errorf("nonprivate: index %d out of range [0:%d)", idx, s.Num)
	}

	rowLen := s.ElementSize()
	row := append([]byte(nil), s.flatDb[idx*rowLen:(idx+1)*rowLen]...)
	parts, err := e.rs.Split(row)
	if err != nil {
		return nil, 0, errors.Wrap(err, "nonprivate: split row")
	}
	if err := e.rs.Encode(parts); err != nil {
		return nil, 0, errors.Wrap(err, "nonprivate: encode row")
	}
	return e.Heap.Alloc(bytes.Join(parts, nil)), uint64(len(parts)), nil
}

func (e *Engine) ServerFree(h engine.Handle) {
	if _, err := e.server(h); err != nil {
		log.Panicf("nonprivate: ServerFree: %v", err)
	}
	e.Handles.Release(h)
}

func (e *Engine) BufferFree(b engine.Buffer) {
	e.Heap.Free(b)
}
