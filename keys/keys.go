package keys

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/danthegoodman1/joinplanner/types"
	"github.com/danthegoodman1/joinplanner/utils"
)

type (
	// Kind discriminates the variants of Spec.
	Kind uint8

	// Spec describes how the key is taken out of a record: by tuple positions,
	// by named field paths, or by an extractor function. It is a closed union,
	// build it with Positions, Fields or Selector.
	Spec struct {
		kind      Kind
		positions []int
		paths     []string
		extractor *Extractor
	}

	// KeyType is the ordered sequence of field types a Spec resolves to.
	KeyType []types.FieldType

	// ResolutionError matches ErrKeyResolution and unwraps to the cause, e.g.
	// types.ErrPositionOutOfRange.
	ResolutionError struct {
		Spec       Spec
		RecordType *types.RecordType
		Err        error
	}
)

const (
	KindInvalid Kind = iota
	KindPositional
	KindNamed
	KindExtractor
)

var (
	ErrKeyResolution   = utils.PermError("key resolution error")
	ErrKeyTypeMismatch = utils.PermError("join key types are not compatible")

	ErrEmptyKey        = errors.New("key specification is empty")
	ErrExtractorDomain = errors.New("extractor does not accept the input record type")
	ErrInvalidSpec     = errors.New("invalid key specification")
)

func Positions(idx ...int) Spec {
	return Spec{kind: KindPositional, positions: append([]int(nil), idx...)}
}

func Fields(paths ...string) Spec {
	return Spec{kind: KindNamed, paths: append([]string(nil), paths...)}
}

func Selector(e *Extractor) Spec {
	return Spec{kind: KindExtractor, extractor: e}
}

func (s Spec) Kind() Kind {
	return s.kind
}

func (s Spec) Positions() []int {
	return s.positions
}

func (s Spec) Paths() []string {
	return s.paths
}

func (s Spec) Extractor() *Extractor {
	return s.extractor
}

func (s Spec) IsZero() bool {
	return s.kind == KindInvalid
}

func (s Spec) String() string {
	switch s.kind {
	case KindPositional:
		parts := make([]string, len(s.positions))
		for i, p := range s.positions {
			parts[i] = strconv.Itoa(p)
		}
		return "positions(" + strings.Join(parts, ",") + ")"
	case KindNamed:
		return "fields(" + strings.Join(s.paths, ",") + ")"
	case KindExtractor:
		if s.extractor == nil {
			return "selector(<nil>)"
		}
		return "selector(" + s.extractor.Name + ")"
	default:
		return "invalid"
	}
}

// Resolve produces the key type of spec against the record type rt. Field
// order follows the order in which the key was specified.
func Resolve(spec Spec, rt *types.RecordType) (KeyType, error) {
	var (
		kt  KeyType
		err error
	)
	switch spec.kind {
	case KindPositional:
		kt, err = resolvePositions(spec.positions, rt)
	case KindNamed:
		kt, err = resolvePaths(spec.paths, rt)
	case KindExtractor:
		kt, err = resolveExtractor(spec.extractor, rt)
	default:
		err = ErrInvalidSpec
	}
	if err != nil {
		return nil, &ResolutionError{Spec: spec, RecordType: rt, Err: err}
	}
	return kt, nil
}

func resolvePositions(positions []int, rt *types.RecordType) (KeyType, error) {
	if len(positions) == 0 {
		return nil, ErrEmptyKey
	}
	kt := make(KeyType, 0, len(positions))
	for _, pos := range positions {
		ft, err := rt.At(pos)
		if err != nil {
			return nil, err
		}
		kt = append(kt, ft)
	}
	return kt, nil
}

func resolvePaths(paths []string, rt *types.RecordType) (KeyType, error) {
	if len(paths) == 0 {
		return nil, ErrEmptyKey
	}
	if rt == nil {
		return nil, types.ErrFieldNotFound
	}
	kt := make(KeyType, 0, len(paths))
	for _, path := range paths {
		ft, err := rt.Lookup(path)
		if err != nil {
			return nil, err
		}
		kt = append(kt, ft)
	}
	return kt, nil
}

func resolveExtractor(e *Extractor, rt *types.RecordType) (KeyType, error) {
	if e == nil {
		return nil, ErrEmptyKey
	}
	if !e.Accepts(rt) {
		return nil, fmt.Errorf("%w: %s expects %s", ErrExtractorDomain, e.Name, e.InputType)
	}
	return KeyType{e.ReturnType}, nil
}

// CheckCompatible succeeds iff both key types have the same length and the
// same field type at every position.
func CheckCompatible(left, right KeyType) error {
	if len(left) != len(right) {
		return fmt.Errorf("%w: %s has %d fields, %s has %d", ErrKeyTypeMismatch, left, len(left), right, len(right))
	}
	for i := range left {
		if !left[i].Equal(right[i]) {
			return fmt.Errorf("%w: position %d is %s vs %s", ErrKeyTypeMismatch, i, left[i], right[i])
		}
	}
	return nil
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s: %s on %s: %s", ErrKeyResolution, e.Spec, e.RecordType, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

func (e *ResolutionError) Is(target error) bool {
	return target == ErrKeyResolution
}

func (e *ResolutionError) IsPermanent() bool {
	return true
}

func (kt KeyType) Equal(o KeyType) bool {
	return CheckCompatible(kt, o) == nil
}

func (kt KeyType) String() string {
	parts := make([]string, len(kt))
	for i, ft := range kt {
		parts[i] = ft.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
