package pir

import (
	"log"

	"github.com/pkg/errors"

	"github.com/dimakogan/hpir/engine"
)

// Server owns a server-side engine handle bound to the database it was
// created with. It keeps no reference to the caller's collection.
type Server struct {
	eng    engine.ServerEngine
	handle engine.Handle
	params DBParams
	closed bool
}

// NewServer ingests a collection of fixed-size values with the default
// alpha and depth.
func NewServer[T any](eng engine.ServerEngine, collection []T) (*Server, error) {
	return NewServerWithParams(eng, collection, DefaultAlpha, DefaultDepth)
}

func NewServerWithParams[T any](eng engine.ServerEngine, collection []T, alpha, depth uint64) (*Server, error) {
	return newServer(eng, StaticDBFromValues(collection), alpha, depth)
}

// NewServerFromRows ingests equal-length byte rows.
func NewServerFromRows(eng engine.ServerEngine, rows []Row, alpha, depth uint64) (*Server, error) {
	return newServer(eng, StaticDBFromRows(rows), alpha, depth)
}

// NewServerFromRaw ingests count elements of elementSize bytes from the
// front of data.
func NewServerFromRaw(eng engine.ServerEngine, data []byte, count, elementSize, alpha, depth uint64) (*Server, error) {
	params := DBParams{ElementSize: elementSize, NumElements: count, Alpha: alpha, Depth: depth}
	params.validate()
	if uint64(len(data)) < params.TotalLen() {
		log.Panicf("pir: raw collection holds %d bytes, need %d", len(data), params.TotalLen())
	}
	return setupServer(eng, data[:params.TotalLen()], params)
}

func newServer(eng engine.ServerEngine, db *StaticDB, alpha, depth uint64) (*Server, error) {
	params := db.Params(alpha, depth)
	params.validate()
	return setupServer(eng, db.FlatDb, params)
}

func setupServer(eng engine.ServerEngine, data []byte, params DBParams) (*Server, error) {
	h, err := eng.ServerSetup(params.TotalLen(), data, params.NumElements, params.Alpha, params.Depth)
	if err != nil {
		return nil, errors.Wrap(err, "pir: server setup")
	}
	if h == nil {
		return nil, errors.Wrap(engine.ErrAlloc, "pir: server setup")
	}
	return &Server{eng: eng, handle: h, params: params}, nil
}

// Reply answers query against the server's database.
func (s *Server) Reply(query Query) (Reply, error) {
	if s.closed {
		log.Panicf("pir: Reply on closed server")
	}

	buf, shards, err := s.eng.ServerProcessQuery(s.handle, query.Payload, query.ShardCount)
	payload, err := transfer(s.eng.BufferFree, buf, err)
	if err != nil {
		return Reply{}, errors.Wrap(err, "pir: reply")
	}
	return Reply{Payload: payload, ShardCount: shards}, nil
}

func (s *Server) Params() DBParams {
	return s.params
}

// Close releases the engine handle. Closing again is a no-op.
func (s *Server) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.eng.ServerFree(s.handle)
	s.handle = nil
}
