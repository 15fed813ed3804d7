package driver

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/dimakogan/hpir/engine"
	"github.com/dimakogan/hpir/hepir"
	"github.com/dimakogan/hpir/matrix"
	"github.com/dimakogan/hpir/nonprivate"
)

type EngineType int

const (
	NonPrivate EngineType = iota
	Matrix
	HE
)

var engineTypeNames = []string{"NonPrivate", "Matrix", "HE"}

func (t EngineType) String() string {
	if t < 0 || int(t) >= len(engineTypeNames) {
		return fmt.Sprintf("EngineType(%d)", t)
	}
	return engineTypeNames[t]
}

func EngineTypeValues() []EngineType {
	vals := make([]EngineType, len(engineTypeNames))
	for i := range vals {
		vals[i] = EngineType(i)
	}
	return vals
}

func EngineTypeString(s string) (EngineType, error) {
	for i, name := range engineTypeNames {
		if name == s {
			return EngineType(i), nil
		}
	}
	return 0, fmt.Errorf("%s does not belong to EngineType values", s)
}

func EngineTypeStrings() []string {
	return append([]string(nil), engineTypeNames...)
}

// NewEngine builds an engine of the given type with its default options.
func NewEngine(t EngineType) (engine.Engine, error) {
	switch t {
	case NonPrivate:
		eng, err := nonprivate.New()
		if err != nil {
			return nil, err
		}
		return eng, nil
	case Matrix:
		return matrix.New(), nil
	case HE:
		eng, err := hepir.New()
		if err != nil {
			return nil, err
		}
		return eng, nil
	}
	return nil, errors.Errorf("driver: unknown engine type %v", t)
}
