package pir

import (
	"bytes"
	"encoding/binary"
	"log"
)

// StaticDB is a flat, row-major database of equal-length rows.
type StaticDB struct {
	NumRows int
	RowLen  int
	FlatDb  []byte
}

func (db *StaticDB) Slice(start, end int) []byte {
	return db.FlatDb[start*db.RowLen : end*db.RowLen]
}

func (db *StaticDB) Row(i int) Row {
	if i >= db.NumRows {
		return nil
	}
	return Row(db.Slice(i, i+1))
}

func StaticDBFromRows(data []Row) *StaticDB {
	if len(data) < 1 {
		return &StaticDB{0, 0, nil}
	}

	rowLen := len(data[0])
	flatDb := make([]byte, rowLen*len(data))

	for i, v := range data {
		if len(v) != rowLen {
			log.Panicf("pir: row %d has length %d, expected %d", i, len(v), rowLen)
		}
		copy(flatDb[i*rowLen:], v[:])
	}
	return &StaticDB{len(data), rowLen, flatDb}
}

// StaticDBFromValues lays out fixed-size values little-endian, one row per
// value.
func StaticDBFromValues[T any](values []T) *StaticDB {
	if len(values) < 1 {
		return &StaticDB{0, 0, nil}
	}
	rowLen := binary.Size(values[0])
	if rowLen <= 0 {
		log.Panicf("pir: %T is not a fixed-size value", values[0])
	}

	var buf bytes.Buffer
	buf.Grow(rowLen * len(values))
	if err := binary.Write(&buf, binary.LittleEndian, values); err != nil {
		log.Panicf("pir: encoding %T collection: %v", values, err)
	}
	return &StaticDB{len(values), rowLen, buf.Bytes()}
}

func (db *StaticDB) Params(alpha, depth uint64) DBParams {
	return DBParams{
		ElementSize: uint64(db.RowLen),
		NumElements: uint64(db.NumRows),
		Alpha:       alpha,
		Depth:       depth,
	}
}
