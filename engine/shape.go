package engine

import (
	"github.com/pkg/errors"
)

// Shape is the database geometry as seen through the boundary calls.
type Shape struct {
	TotalLen uint64
	Num      uint64
	Alpha    uint64
	Depth    uint64
}

// NewShape validates the arguments of a setup or update-params call.
func NewShape(totalLen, num, alpha, depth uint64) (Shape, error) {
	if num == 0 || totalLen == 0 {
		return Shape{}, errors.Errorf("engine: empty database (len=%d, num=%d)", totalLen, num)
	}
	if totalLen%num != 0 {
		return Shape{}, errors.Errorf("engine: database length %d is not a multiple of %d elements", totalLen, num)
	}
	if alpha == 0 || depth == 0 {
		return Shape{}, errors.Errorf("engine: alpha and depth must be positive (alpha=%d, depth=%d)", alpha, depth)
	}
	return Shape{TotalLen: totalLen, Num: num, Alpha: alpha, Depth: depth}, nil
}

func (s Shape) ElementSize() uint64 {
	return s.TotalLen / s.Num
}
