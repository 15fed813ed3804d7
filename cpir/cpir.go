//go:build cgo && cpir

package cpir

/*
#cgo LDFLAGS: -lpirengine -lstdc++
#include <stdint.h>
#include "pirengine.h"
*/
import "C"
import (
	"log"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/dimakogan/hpir/engine"
)

type Engine struct {
	Handles engine.HandleSet
}

func New() *Engine {
	return &Engine{}
}

type cHandle struct {
	ptr    unsafe.Pointer
	server bool
}

// cBuffer is a region allocated by the C++ engine.
type cBuffer struct {
	ptr *C.uint8_t
	n   C.uint64_t
}

func (b *cBuffer) Len() uint64 {
	return uint64(b.n)
}

func (b *cBuffer) Bytes() []byte {
	if b.ptr == nil {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(b.ptr)), int(b.n))
}

func bytesPtr(p []byte) *C.uint8_t {
	if len(p) == 0 {
		return nil
	}
	return (*C.uint8_t)(unsafe.Pointer(&p[0]))
}

func (e *Engine) handle(h engine.Handle, server bool) (*cHandle, error) {
	state, err := e.Handles.Get(h)
	if err != nil {
		return nil, err
	}
	ch, ok := state.(*cHandle)
	if !ok || ch.server != server {
		return nil, engine.ErrForeignHandle
	}
	return ch, nil
}

func (e *Engine) ClientSetup(totalLen, num, alpha, depth uint64) (engine.Handle, error) {
	ptr := C.cpp_client_setup(C.uint64_t(totalLen), C.uint64_t(num), C.uint64_t(alpha), C.uint64_t(depth))
	if ptr == nil {
		return nil, errors.Wrap(engine.ErrAlloc, "cpir: cpp_client_setup")
	}
	return e.Handles.Add(&cHandle{ptr: ptr}), nil
}

func (e *Engine) ClientUpdateParams(h engine.Handle, totalLen, num, alpha, depth uint64) error {
	ch, err := e.handle(h, false)
	if err != nil {
		return err
	}
	C.cpp_client_update_db_params(ch.ptr, C.uint64_t(totalLen), C.uint64_t(num), C.uint64_t(alpha), C.uint64_t(depth))
	return nil
}

func (e *Engine) ClientGenerateQuery(h engine.Handle, index uint64) (engine.Buffer, uint64, error) {
	ch, err := e.handle(h, false)
	if err != nil {
		return nil, 0, err
	}
	var qLen, qNum C.uint64_t
	ptr := C.cpp_client_generate_query(ch.ptr, C.uint64_t(index), &qLen, &qNum)
	if ptr == nil {
		return nil, 0, errors.Wrap(engine.ErrAlloc, "cpir: cpp_client_generate_query")
	}
	return &cBuffer{ptr: ptr, n: qLen}, uint64(qNum), nil
}

func (e *Engine) ClientProcessReply(h engine.Handle, reply []byte, shards uint64) (engine.Buffer, error) {
	ch, err := e.handle(h, false)
	if err != nil {
		return nil, err
	}
	var eLen C.uint64_t
	ptr := C.cpp_client_process_reply(ch.ptr, bytesPtr(reply), C.uint64_t(len(reply)), C.uint64_t(shards), &eLen)
	if ptr == nil {
		return nil, errors.Wrap(engine.ErrAlloc, "cpir: cpp_client_process_reply")
	}
	return &cBuffer{ptr: ptr, n: eLen}, nil
}

func (e *Engine) ClientFree(h engine.Handle) {
	ch, err := e.handle(h, false)
	if err != nil {
		log.Panicf("cpir: ClientFree: %v", err)
	}
	e.Handles.Release(h)
	C.cpp_client_free(ch.ptr)
}

func (e *Engine) ServerSetup(totalLen uint64, collection []byte, num, alpha, depth uint64) (engine.Handle, error) {
	if uint64(len(collection)) < totalLen {
		return nil, errors.Errorf("cpir: collection holds %d bytes, need %d", len(collection), totalLen)
	}
	// The engine copies the collection before returning.
	ptr := C.cpp_server_setup(C.uint64_t(totalLen), bytesPtr(collection), C.uint64_t(num), C.uint64_t(alpha), C.uint64_t(depth))
	if ptr == nil {
		return nil, errors.Wrap(engine.ErrAlloc, "cpir: cpp_server_setup")
	}
	return e.Handles.Add(&cHandle{ptr: ptr, server: true}), nil
}

func (e *Engine) ServerProcessQuery(h engine.Handle, query []byte, shards uint64) (engine.Buffer, uint64, error) {
	ch, err := e.handle(h, true)
	if err != nil {
		return nil, 0, err
	}
	var rLen, rNum C.uint64_t
	ptr := C.cpp_server_process_query(ch.ptr, bytesPtr(query), C.uint64_t(len(query)), C.uint64_t(shards), &rLen, &rNum)
	if ptr == nil {
		return nil, 0, errors.Wrap(engine.ErrAlloc, "cpir: cpp_server_process_query")
	}
	return &cBuffer{ptr: ptr, n: rLen}, uint64(rNum), nil
}

func (e *Engine) ServerFree(h engine.Handle) {
	ch, err := e.handle(h, true)
	if err != nil {
		log.Panicf("cpir: ServerFree: %v", err)
	}
	e.Handles.Release(h)
	C.cpp_server_free(ch.ptr)
}

func (e *Engine) BufferFree(b engine.Buffer) {
	cb := b.(*cBuffer)
	if cb.ptr == nil {
		panic("cpir: buffer released twice")
	}
	C.cpp_buffer_free(cb.ptr)
	cb.ptr = nil
}
