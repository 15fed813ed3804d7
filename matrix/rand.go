package matrix

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	mrand "math/rand"

	"github.com/pkg/errors"
	"golang.org/x/crypto/hkdf"
)

// cryptoSource is a math/rand source drawing from crypto/rand. It cannot be
// seeded.
type cryptoSource struct{}

func (s cryptoSource) Int63() int64 {
	return int64(s.Uint64() & 0x7fffffffffffffff)
}

func (cryptoSource) Uint64() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(errors.Wrap(err, "matrix: crypto/rand failed"))
	}
	return binary.LittleEndian.Uint64(buf[:])
}

func (cryptoSource) Seed(int64) {
	panic("matrix: cryptoSource cannot be seeded")
}

// derivedSource returns a deterministic source for the n-th client handle,
// expanded from key with HKDF-SHA256.
func derivedSource(key []byte, n uint64) *mrand.Rand {
	kdf := hkdf.New(sha256.New, key, nil, []byte(fmt.Sprintf("matrix client %d", n)))
	var seed [8]byte
	if _, err := io.ReadFull(kdf, seed[:]); err != nil {
		panic(err)
	}
	return mrand.New(mrand.NewSource(int64(binary.LittleEndian.Uint64(seed[:]))))
}
