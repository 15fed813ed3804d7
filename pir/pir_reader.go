package pir

import (
	"github.com/pkg/errors"
)

// Responder answers queries. *Server is one; a network stub in front of a
// remote Server is another.
type Responder interface {
	Reply(q Query) (Reply, error)
}

type PIRReader interface {
	Read(i uint64) (Row, error)
}

type pirReader struct {
	client *Client
	server Responder
}

func NewPIRReader(client *Client, server Responder) PIRReader {
	return &pirReader{client: client, server: server}
}

func (r *pirReader) Read(i uint64) (Row, error) {
	query, err := r.client.Query(i)
	if err != nil {
		return nil, err
	}
	reply, err := r.server.Reply(query)
	if err != nil {
		return nil, errors.Wrapf(err, "pir: server failed on query %d", i)
	}
	return r.client.DecodeReplyBytes(reply)
}
