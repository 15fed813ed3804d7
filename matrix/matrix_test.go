package matrix

import (
	"bytes"
	"errors"
	"testing"

	"gotest.tools/assert"

	"github.com/dimakogan/hpir/engine"
	"github.com/dimakogan/hpir/pir"
)

func TestGetHeightWidth(t *testing.T) {
	width, height := getHeightWidth(10000, 4)
	assert.Equal(t, width, 50)
	assert.Equal(t, height, 200)

	width, height = getHeightWidth(1, 100)
	assert.Equal(t, width, 1)
	assert.Equal(t, height, 1)
}

func TestMatrix(t *testing.T) {
	db := pir.MakeDB(10000, 4)
	server, err := pir.NewServerFromRaw(New(), db.FlatDb, 10000, 4, pir.DefaultAlpha, pir.DefaultDepth)
	assert.NilError(t, err)
	defer server.Close()

	eng := New(WithSeed([]byte("matrix test seed")))
	client, err := pir.NewClient(eng, 4, 10000)
	assert.NilError(t, err)
	defer client.Close()

	val, err := pir.NewPIRReader(client, server).Read(0x7)
	assert.NilError(t, err)
	assert.DeepEqual(t, val, db.Row(7))
}

func TestQueryShares(t *testing.T) {
	eng := New(WithSeed([]byte("seed")))
	h, err := eng.ClientSetup(4*10000, 10000, 8, 2)
	assert.NilError(t, err)
	defer eng.ClientFree(h)
	state, err := eng.Handles.Get(h)
	assert.NilError(t, err)
	c := state.(*matrixClient)

	q, shards, err := eng.ClientGenerateQuery(h, 5*50+3)
	assert.NilError(t, err)
	defer eng.BufferFree(q)
	assert.Equal(t, shards, uint64(2))

	vecLen := c.vectorLen()
	assert.Equal(t, q.Len(), uint64(2*vecLen))
	qL, qR := q.Bytes()[:vecLen], q.Bytes()[vecLen:]
	for i := 0; i < c.height; i++ {
		bit := byte(1) << (i % 8)
		differ := (qL[i/8] & bit) != (qR[i/8] & bit)
		assert.Equal(t, differ, i == 5, "row %d", i)
	}
	assert.Equal(t, c.colNum, 3)
}

func TestSeededClientsRepeat(t *testing.T) {
	query := func() []byte {
		eng := New(WithSeed([]byte("seed")))
		h, err := eng.ClientSetup(4*100, 100, 8, 2)
		assert.NilError(t, err)
		defer eng.ClientFree(h)
		q, _, err := eng.ClientGenerateQuery(h, 42)
		assert.NilError(t, err)
		defer eng.BufferFree(q)
		return append([]byte(nil), q.Bytes()...)
	}
	assert.Assert(t, bytes.Equal(query(), query()))
}

func TestReplyWithoutQuery(t *testing.T) {
	eng := New()
	h, err := eng.ClientSetup(40, 10, 8, 2)
	assert.NilError(t, err)
	defer eng.ClientFree(h)

	_, err = eng.ClientProcessReply(h, make([]byte, 8), 2)
	assert.Assert(t, errors.Is(err, engine.ErrNoPendingQuery))
	assert.Equal(t, eng.Heap.Allocs(), 0)
}
