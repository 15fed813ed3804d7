package driver

import (
	"bytes"
	"fmt"

	"github.com/ugorji/go/codec"

	"github.com/dimakogan/hpir/pir"
)

type TestConfig struct {
	NumRows int
	RowLen  int

	Alpha uint64
	Depth uint64

	PresetRows []RowIndexVal

	// Seed used to generate random data in database. Not used for cryptographic operations.
	DataRandSeed int64

	MeasureBandwidth bool
}

func (c TestConfig) String() string {
	return fmt.Sprintf("n=%d,r=%d,a=%d,d=%d", c.NumRows, c.RowLen, c.alpha(), c.depth())
}

func (c TestConfig) alpha() uint64 {
	if c.Alpha == 0 {
		return pir.DefaultAlpha
	}
	return c.Alpha
}

func (c TestConfig) depth() uint64 {
	if c.Depth == 0 {
		return pir.DefaultDepth
	}
	return c.Depth
}

func CodecHandle() codec.Handle {
	h := codec.BincHandle{}
	h.StructToArray = true
	h.OptimumSize = true
	return &h
}

// SerializedSizeOf is the number of bytes e occupies on the wire in binc
// encoding.
func SerializedSizeOf(e interface{}) (int, error) {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, CodecHandle())
	if err := enc.Encode(e); err != nil {
		return 0, err
	}
	return buf.Len(), nil
}
