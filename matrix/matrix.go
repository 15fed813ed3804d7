// Package matrix is an engine for the square-root XOR scheme: the database
// is viewed as a height x width matrix of rows, the client sends two random
// bit vectors over the matrix rows that differ only at the target row, and
// XORing the two answers leaves the matrix row holding the target.
//
// The scheme is private only when the two vectors go to two non-colluding
// servers. This engine hands both to a single server handle, so it is not
// private; it is useful for tests and for benchmarking the orchestration
// layer with a reply that is larger than one element.
package matrix

import (
	"log"
	"math"
	"math/rand"
	"sync"

	"github.com/lukechampine/fastxor"
	"github.com/pkg/errors"

	"github.com/dimakogan/hpir/engine"
)

const numShares = 2

type Engine struct {
	Heap    *engine.Heap
	Handles engine.HandleSet

	seed []byte

	mu      sync.Mutex
	clients uint64
}

type Option func(*Engine)

// WithSeed makes client randomness deterministic, derived from key.
func WithSeed(key []byte) Option {
	return func(e *Engine) {
		e.seed = append([]byte(nil), key...)
	}
}

func New(opts ...Option) *Engine {
	e := &Engine{Heap: engine.NewHeap()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type layout struct {
	engine.Shape
	width  int
	height int
}

func newLayout(s engine.Shape) layout {
	width, height := getHeightWidth(int(s.Num), int(s.ElementSize()))
	return layout{Shape: s, width: width, height: height}
}

func (l layout) rowLen() int {
	return int(l.ElementSize())
}

func (l layout) vectorLen() int {
	return (l.height + 7) / 8
}

func (l layout) answerLen() int {
	return l.width * l.rowLen()
}

func getHeightWidth(nRows int, rowLen int) (int, int) {
	// h^2 = n * rowlen
	width := int(math.Ceil(math.Sqrt(float64(nRows*rowLen)) / float64(rowLen)))
	height := (nRows-1)/width + 1

	return width, height
}

type matrixClient struct {
	layout
	randSource *rand.Rand

	pending bool
	colNum  int
}

type matrixServer struct {
	layout
	flatDb []byte
}

func (e *Engine) newRandSource() *rand.Rand {
	if e.seed == nil {
		return rand.New(cryptoSource{})
	}
	e.mu.Lock()
	n := e.clients
	e.clients++
	e.mu.Unlock()
	return derivedSource(e.seed, n)
}

func (e *Engine) ClientSetup(totalLen, num, alpha, depth uint64) (engine.Handle, error) {
	shape, err := engine.NewShape(totalLen, num, alpha, depth)
	if err != nil {
		return nil, err
	}
	return e.Handles.Add(&matrixClient{layout: newLayout(shape), randSource: e.newRandSource()}), nil
}

func (e *Engine) client(h engine.Handle) (*matrixClient, error) {
	state, err := e.Handles.Get(h)
	if err != nil {
		return nil, err
	}
	c, ok := state.(*matrixClient)
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
	c.layout = newLayout(shape)
	c.pending = false
	return nil
}

func (e *Engine) ClientGenerateQuery(h engine.Handle, index uint64) (engine.Buffer, uint64, error) {
	c, err := e.client(h)
	if err != nil {
		return nil, 0, err
	}
	if index >= c.Num {
		return nil, 0, errors.Errorf("matrix: index %d out of range [0:%d)", index, c.Num)
	}

	rowNum := int(index) / c.width
	vecLen := c.vectorLen()
	q := make([]byte, numShares*vecLen)
	qL, qR := q[:vecLen], q[vecLen:]
	for i := 0; i < c.height; i++ {
		bit := byte(1) << (i % 8)
		if c.randSource.Uint64()&1 == 0 {
			qL[i/8] |= bit
		}
		if (qL[i/8]&bit != 0) != (i == rowNum) {
			qR[i/8] |= bit
		}
	}

	c.pending = true
	c.colNum = int(index) % c.width
	return e.Heap.Alloc(q), numShares, nil
}

func (e *Engine) ClientProcessReply(h engine.Handle, reply []byte, shards uint64) (engine.Buffer, error) {
	c, err := e.client(h)
	if err != nil {
		return nil, err
	}
	if !c.pending {
		return nil, engine.ErrNoPendingQuery
	}
	if shards != numShares {
		return nil, errors.Wrapf(engine.ErrShardCount, "matrix: have %d, want %d", shards, numShares)
	}
	ansLen := c.answerLen()
	if len(reply) != numShares*ansLen {
		return nil, errors.Errorf("matrix: reply has %d bytes, want %d", len(reply), numShares*ansLen)
	}

	out := make([]byte, ansLen)
	fastxor.Bytes(out, reply[:ansLen], reply[ansLen:])
	rowLen := c.rowLen()
	return e.Heap.Alloc(out[rowLen*c.colNum : rowLen*(c.colNum+1)]), nil
}

func (e *Engine) ClientFree(h engine.Handle) {
	if _, err := e.client(h); err != nil {
		log.Panicf("matrix: ClientFree: %v", err)
	}
	e.Handles.Release(h)
}

func (e *Engine) ServerSetup(totalLen uint64, collection []byte, num, alpha, depth uint64) (engine.Handle, error) {
	shape, err := engine.NewShape(totalLen, num, alpha, depth)
	if err != nil {
		return nil, err
	}
	if uint64(len(collection)) < totalLen {
		return nil, errors.Errorf("matrix: collection holds %d bytes, need %d", len(collection), totalLen)
	}
	s := &matrixServer{layout: newLayout(shape), flatDb: append([]byte(nil), collection[:totalLen]...)}
	return e.Handles.Add(s), nil
}

func (e *Engine) server(h engine.Handle) (*matrixServer, error) {
	state, err := e.Handles.Get(h)
	if err != nil {
		return nil, err
	}
	s, ok := state.(*matrixServer)
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
	if shards != numShares {
		return nil, 0, errors.Wrapf(engine.ErrShardCount, "matrix: have %d, want %d", shards, numShares)
	}
	vecLen := s.vectorLen()
	if len(query) != numShares*vecLen {
		return nil, 0, errors.Errorf("matrix: query has %d bytes, want %d", len(query), numShares*vecLen)
	}

	ansLen := s.answerLen()
	out := make([]byte, numShares*ansLen)
	for i := 0; i < numShares; i++ {
		s.matBitVecProduct(query[i*vecLen:(i+1)*vecLen], out[i*ansLen:(i+1)*ansLen])
	}
	return e.Heap.Alloc(out), numShares, nil
}

// matBitVecProduct XORs together the matrix rows selected by bitVector.
func (s *matrixServer) matBitVecProduct(bitVector []byte, out []byte) {
	tableWidth := s.answerLen()
	for j := 0; j < s.height; j++ {
		if bitVector[j/8]&(1<<(j%8)) == 0 {
			continue
		}
		start := tableWidth * j
		length := tableWidth
		if start+length >= len(s.flatDb) {
			length = len(s.flatDb) - start
		}
		fastxor.Bytes(out[:length], out[:length], s.flatDb[start:start+length])
	}
}

func (e *Engine) ServerFree(h engine.Handle) {
	if _, err := e.server(h); err != nil {
		log.Panicf("matrix: ServerFree: %v", err)
	}
	e.Handles.Release(h)
}

func (e *Engine) BufferFree(b engine.Buffer) {
	e.Heap.Free(b)
}
