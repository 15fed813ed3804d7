package pir

import (
	"bytes"
	"encoding/binary"
	"log"

	"github.com/pkg/errors"

	"github.com/dimakogan/hpir/engine"
)

// Client owns a client-side engine handle and remembers the database shape
// it believes the server holds.
type Client struct {
	eng    engine.ClientEngine
	handle engine.Handle
	params DBParams
	closed bool
}

// NewClient sets up a client for count elements of elementSize bytes with
// the default alpha and depth.
func NewClient(eng engine.ClientEngine, elementSize, count uint64) (*Client, error) {
	return NewClientWithParams(eng, elementSize, count, DefaultAlpha, DefaultDepth)
}

func NewClientWithParams(eng engine.ClientEngine, elementSize, count, alpha, depth uint64) (*Client, error) {
	params := DBParams{ElementSize: elementSize, NumElements: count, Alpha: alpha, Depth: depth}
	params.validate()

	h, err := eng.ClientSetup(params.TotalLen(), count, alpha, depth)
	if err != nil {
		return nil, errors.Wrap(err, "pir: client setup")
	}
	if h == nil {
		return nil, errors.Wrap(engine.ErrAlloc, "pir: client setup")
	}
	return &Client{eng: eng, handle: h, params: params}, nil
}

// UpdateParams moves the existing handle to a new database shape. Queries
// and replies produced under the old shape must not be decoded afterwards.
func (c *Client) UpdateParams(elementSize, count, alpha, depth uint64) error {
	c.mustBeOpen("UpdateParams")
	params := DBParams{ElementSize: elementSize, NumElements: count, Alpha: alpha, Depth: depth}
	params.validate()

	if err := c.eng.ClientUpdateParams(c.handle, params.TotalLen(), count, alpha, depth); err != nil {
		return errors.Wrap(err, "pir: client update params")
	}
	c.params = params
	return nil
}

// Query encodes a request for element index, which must lie in
// [0, NumElements).
func (c *Client) Query(index uint64) (Query, error) {
	c.mustBeOpen("Query")
	if index >= c.params.NumElements {
		log.Panicf("pir: query index %d out of range [0:%d)", index, c.params.NumElements)
	}

	buf, shards, err := c.eng.ClientGenerateQuery(c.handle, index)
	payload, err := transfer(c.eng.BufferFree, buf, err)
	if err != nil {
		return Query{}, errors.Wrapf(err, "pir: query %d", index)
	}
	return Query{Payload: payload, ShardCount: shards}, nil
}

// DecodeReplyBytes decodes reply into the raw element bytes, whatever their
// length.
func (c *Client) DecodeReplyBytes(reply Reply) ([]byte, error) {
	c.mustBeOpen("DecodeReplyBytes")
	buf, err := c.eng.ClientProcessReply(c.handle, reply.Payload, reply.ShardCount)
	val, err := transfer(c.eng.BufferFree, buf, err)
	if err != nil {
		return nil, errors.Wrap(err, "pir: decode reply")
	}
	return val, nil
}

// DecodeReply decodes reply into a fixed-size value of type T, read
// little-endian. The decoded length must match binary.Size of T exactly;
// asking for the wrong type is a programming error.
func DecodeReply[T any](c *Client, reply Reply) (T, error) {
	var v T
	size := binary.Size(v)
	if size < 0 {
		log.Panicf("pir: %T is not a fixed-size value", v)
	}

	data, err := c.DecodeReplyBytes(reply)
	if err != nil {
		return v, err
	}
	if len(data) != size {
		log.Panicf("pir: decoded %d bytes, but %T takes %d", len(data), v, size)
	}
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &v); err != nil {
		log.Panicf("pir: reading %T: %v", v, err)
	}
	return v, nil
}

func (c *Client) Params() DBParams {
	return c.params
}

func (c *Client) NumElements() uint64 {
	return c.params.NumElements
}

// Close releases the engine handle. Closing again is a no-op; any other
// call after Close panics.
func (c *Client) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.eng.ClientFree(c.handle)
	c.handle = nil
}

func (c *Client) mustBeOpen(op string) {
	if c.closed {
		log.Panicf("pir: %s on closed client", op)
	}
}
