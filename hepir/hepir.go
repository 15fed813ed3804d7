// Package hepir is a single-server PIR engine built on the BGV homomorphic
// encryption scheme.
//
// The database is packed one byte per plaintext slot, as many whole
// elements per plaintext shard as fit. A query is one ciphertext per shard:
// the shard holding the target element encrypts a mask of ones over that
// element's slots, every other shard encrypts zeros. The server multiplies
// each query ciphertext with its plaintext shard and sums the products, so
// the reply is a single ciphertext in which only the target element
// survives. The server sees only ciphertexts and learns nothing about the
// index.
//
// Alpha and depth are validated and recorded but do not change the layout.
package hepir

import (
	"bytes"
	"log"

	"github.com/pkg/errors"
	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/bgv"

	"github.com/dimakogan/hpir/engine"
)

// DefaultParametersLiteral supports one ciphertext-plaintext product at
// roughly 128-bit security with 8192 slots.
func DefaultParametersLiteral() bgv.ParametersLiteral {
	return bgv.ParametersLiteral{
		LogN:             13,
		LogQ:             []int{60},
		LogP:             []int{54},
		PlaintextModulus: 65537,
	}
}

type Engine struct {
	Heap    *engine.Heap
	Handles engine.HandleSet

	params bgv.Parameters
	// marshaled size of one fresh ciphertext at the top level
	ctSize int
}

type config struct {
	literal bgv.ParametersLiteral
}

type Option func(*config)

// WithParameters overrides the BGV parameters. Client and server must use
// the same ones. The plaintext modulus must exceed 255.
func WithParameters(lit bgv.ParametersLiteral) Option {
	return func(c *config) {
		c.literal = lit
	}
}

func New(opts ...Option) (*Engine, error) {
	cfg := config{literal: DefaultParametersLiteral()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.literal.PlaintextModulus <= 255 {
		return nil, errors.Errorf("hepir: plaintext modulus %d cannot hold a byte", cfg.literal.PlaintextModulus)
	}
	params, err := bgv.NewParametersFromLiteral(cfg.literal)
	if err != nil {
		return nil, errors.Wrap(err, "hepir: bad BGV parameters")
	}
	ctSize := rlwe.NewCiphertext(params, 1, params.MaxLevel()).BinarySize()
	return &Engine{Heap: engine.NewHeap(), params: params, ctSize: ctSize}, nil
}

func (e *Engine) Parameters() bgv.Parameters {
	return e.params
}

// layout places elements into plaintext shards without straddling a shard
// boundary.
type layout struct {
	engine.Shape
	slots     uint64
	perShard  uint64
	numShards uint64
}

func newLayout(s engine.Shape, slots int) (layout, error) {
	es := s.ElementSize()
	if es > uint64(slots) {
		return layout{}, errors.Errorf("hepir: element of %d bytes exceeds %d slots", es, slots)
	}
	perShard := uint64(slots) / es
	return layout{
		Shape:     s,
		slots:     uint64(slots),
		perShard:  perShard,
		numShards: (s.Num + perShard - 1) / perShard,
	}, nil
}

// locate returns the shard holding element i and the slot it starts at.
func (l layout) locate(i uint64) (shard, slot uint64) {
	return i / l.perShard, (i % l.perShard) * l.ElementSize()
}

type heClient struct {
	layout
	sk *rlwe.SecretKey
	pk *rlwe.PublicKey

	pending bool
	slot    uint64
}

type heServer struct {
	layout
	shards []*rlwe.Plaintext
}

func (e *Engine) ClientSetup(totalLen, num, alpha, depth uint64) (engine.Handle, error) {
	shape, err := engine.NewShape(totalLen, num, alpha, depth)
	if err != nil {
		return nil, err
	}
	l, err := newLayout(shape, e.params.MaxSlots())
	if err != nil {
		return nil, err
	}
	sk, pk := bgv.NewKeyGenerator(e.params).GenKeyPairNew()
	return e.Handles.Add(&heClient{layout: l, sk: sk, pk: pk}), nil
}

func (e *Engine) client(h engine.Handle) (*heClient, error) {
	state, err := e.Handles.Get(h)
	if err != nil {
		return nil, err
	}
	c, ok := state.(*heClient)
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
	l, err := newLayout(shape, e.params.MaxSlots())
	if err != nil {
		return err
	}
	c.layout = l
	c.pending = false
	return nil
}

func (e *Engine) ClientGenerateQuery(h engine.Handle, index uint64) (engine.Buffer, uint64, error) {
	c, err := e.client(h)
	if err != nil {
		return nil, 0, err
	}
	if index >= c.Num {
		return nil, 0, errors.Errorf("hepir: index %d out of range [0:%d)", index, c.Num)
	}

	encoder := bgv.NewEncoder(e.params)
	encryptor := bgv.NewEncryptor(e.params, c.pk)
	target, slot := c.locate(index)

	var q bytes.Buffer
	q.Grow(int(c.numShards) * e.ctSize)
	for s := uint64(0); s < c.numShards; s++ {
		mask := make([]uint64, c.slots)
		if s == target {
			for k := uint64(0); k < c.ElementSize(); k++ {
				mask[slot+k] = 1
			}
		}
		pt := bgv.NewPlaintext(e.params, e.params.MaxLevel())
		if err := encoder.Encode(mask, pt); err != nil {
			return nil, 0, errors.Wrap(err, "hepir: encode query mask")
		}
		ct, err := encryptor.EncryptNew(pt)
		if err != nil {
			return nil, 0, errors.Wrap(err, "hepir: encrypt query mask")
		}
		raw, err := ct.MarshalBinary()
		if err != nil {
			return nil, 0, errors.Wrap(err, "hepir: marshal query")
		}
		if len(raw) != e.ctSize {
			return nil, 0, errors.Errorf("hepir: query ciphertext of %d bytes, want %d", len(raw), e.ctSize)
		}
		q.Write(raw)
	}

	c.pending = true
	c.slot = slot
	return e.Heap.Alloc(q.Bytes()), c.numShards, nil
}

func (e *Engine) ClientProcessReply(h engine.Handle, reply []byte, shards uint64) (engine.Buffer, error) {
	c, err := e.client(h)
	if err != nil {
		return nil, err
	}
	if !c.pending {
		return nil, engine.ErrNoPendingQuery
	}
	if shards != 1 {
		return nil, errors.Wrapf(engine.ErrShardCount, "hepir: have %d, want 1", shards)
	}

	// lattigo does not survive a short buffer, so the length is checked first.
	if len(reply) != e.ctSize {
		return nil, errors.Errorf("hepir: reply of %d bytes, want %d", len(reply), e.ctSize)
	}
	ct := rlwe.NewCiphertext(e.params, 1, e.params.MaxLevel())
	if err := ct.UnmarshalBinary(reply); err != nil {
		return nil, errors.Wrap(err, "hepir: malformed reply")
	}
	pt := bgv.NewDecryptor(e.params, c.sk).DecryptNew(ct)
	slots := make([]uint64, c.slots)
	if err := bgv.NewEncoder(e.params).Decode(pt, slots); err != nil {
		return nil, errors.Wrap(err, "hepir: decode reply")
	}

	out := make([]byte, c.ElementSize())
	for k := range out {
		v := slots[c.slot+uint64(k)]
		if v > 0xff {
			return nil, errors.Errorf("hepir: slot %d decrypted to %d, not a byte", c.slot+uint64(k), v)
		}
		out[k] = byte(v)
	}
	return e.Heap.Alloc(out), nil
}

func (e *Engine) ClientFree(h engine.Handle) {
	if _, err := e.client(h); err != nil {
		log.Panicf("hepir: ClientFree: %v", err)
	}
	e.Handles.Release(h)
}

func (e *Engine) ServerSetup(totalLen uint64, collection []byte, num, alpha, depth uint64) (engine.Handle, error) {
	shape, err := engine.NewShape(totalLen, num, alpha, depth)
	if err != nil {
		return nil, err
	}
	if uint64(len(collection)) < totalLen {
		return nil, errors.Errorf("hepir: collection holds %d bytes, need %d", len(collection), totalLen)
	}
	l, err := newLayout(shape, e.params.MaxSlots())
	if err != nil {
		return nil, err
	}

	encoder := bgv.NewEncoder(e.params)
	es := l.ElementSize()
	s := &heServer{layout: l, shards: make([]*rlwe.Plaintext, l.numShards)}
	for i := range s.shards {
		first := uint64(i) * l.perShard
		last := min(first+l.perShard, l.Num)
		vals := make([]uint64, l.slots)
		for k, b := range collection[first*es : last*es] {
			vals[k] = uint64(b)
		}
		pt := bgv.NewPlaintext(e.params, e.params.MaxLevel())
		if err := encoder.Encode(vals, pt); err != nil {
			return nil, errors.Wrapf(err, "hepir: encode shard %d", i)
		}
		s.shards[i] = pt
	}
	return e.Handles.Add(s), nil
}

func (e *Engine) server(h engine.Handle) (*heServer, error) {
	state, err := e.Handles.Get(h)
	if err != nil {
		return nil, err
	}
	s, ok := state.(*heServer)
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
	if shards != s.numShards {
		return nil, 0, errors.Wrapf(engine.ErrShardCount, "hepir: have %d, want %d", shards, s.numShards)
	}
	if uint64(len(query)) != shards*uint64(e.ctSize) {
		return nil, 0, errors.Errorf("hepir: query of %d bytes, want %d ciphertexts of %d", len(query), shards, e.ctSize)
	}

	ctLen := uint64(e.ctSize)
	eval := bgv.NewEvaluator(e.params, nil)
	var acc *rlwe.Ciphertext
	for i, pt := range s.shards {
		ct := rlwe.NewCiphertext(e.params, 1, e.params.MaxLevel())
		if err := ct.UnmarshalBinary(query[uint64(i)*ctLen : uint64(i+1)*ctLen]); err != nil {
			return nil, 0, errors.Wrapf(err, "hepir: malformed query shard %d", i)
		}
		prod, err := eval.MulNew(ct, pt)
		if err != nil {
			return nil, 0, errors.Wrapf(err, "hepir: multiply shard %d", i)
		}
		if acc == nil {
			acc = prod
			continue
		}
		if err := eval.Add(acc, prod, acc); err != nil {
			return nil, 0, errors.Wrapf(err, "hepir: accumulate shard %d", i)
		}
	}

	raw, err := acc.MarshalBinary()
	if err != nil {
		return nil, 0, errors.Wrap(err, "hepir: marshal reply")
	}
	return e.Heap.Alloc(raw), 1, nil
}

func (e *Engine) ServerFree(h engine.Handle) {
	if _, err := e.server(h); err != nil {
		log.Panicf("hepir: ServerFree: %v", err)
	}
	e.Handles.Release(h)
}

func (e *Engine) BufferFree(b engine.Buffer) {
	e.Heap.Free(b)
}
