// Package cpir binds the external C++ PIR engine through cgo.
//
// The binding is compiled only with the cpir build tag, and needs
// libpirengine and its C++ runtime at link time:
//
//	go build -tags cpir ./...
//
// Engine is an engine.Engine. Result buffers are views over C memory and
// are released with cpp_buffer_free; handles wrap the engine's opaque
// context pointers.
package cpir
