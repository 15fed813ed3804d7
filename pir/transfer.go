package pir

import (
	"log"

	"github.com/dimakogan/hpir/engine"
)

// transfer moves an engine result into Go memory. The engine buffer is
// released exactly once on every path out of this function, and never
// escapes it. The engine's reported length bounds the copy.
func transfer(free func(engine.Buffer), buf engine.Buffer, err error) ([]byte, error) {
	if buf != nil {
		defer free(buf)
	}
	if err != nil {
		return nil, err
	}
	if buf == nil {
		log.Panicf("pir: engine returned neither a buffer nor an error")
	}

	n := buf.Len()
	view := buf.Bytes()
	if uint64(len(view)) < n {
		log.Panicf("pir: engine buffer holds %d bytes, reported %d", len(view), n)
	}
	out := make([]byte, n)
	copy(out, view[:n])
	return out, nil
}
