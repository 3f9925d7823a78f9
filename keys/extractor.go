package keys

import (
	"errors"
	"fmt"
	"sync"

	"github.com/danthegoodman1/joinplanner/types"
)

type (
	// ExtractFunc pulls the key value out of a record value.
	ExtractFunc func(record any) (any, error)

	// Extractor is a key selector function with a declared signature. A nil
	// InputType accepts any record type.
	Extractor struct {
		Name       string
		InputType  *types.RecordType
		ReturnType types.FieldType
		Func       ExtractFunc
	}
)

var (
	ErrExtractorNotFound = errors.New("extractor not found")
	ErrExtractorExists   = errors.New("extractor already registered")

	extractorsMu sync.RWMutex
	extractors   = make(map[string]*Extractor)
)

func NewExtractor(name string, in *types.RecordType, ret types.FieldType, f ExtractFunc) *Extractor {
	return &Extractor{Name: name, InputType: in, ReturnType: ret, Func: f}
}

func (e *Extractor) Accepts(rt *types.RecordType) bool {
	if e.InputType == nil {
		return rt != nil
	}
	return e.InputType.Equal(rt)
}

// Extract runs the function and checks the result against ReturnType.
func (e *Extractor) Extract(record any) (any, error) {
	if e.Func == nil {
		return nil, fmt.Errorf("extractor %s has no function", e.Name)
	}
	v, err := e.Func(record)
	if err != nil {
		return nil, fmt.Errorf("error in extractor %s: %w", e.Name, err)
	}
	if err = types.CheckValue(e.ReturnType, v); err != nil {
		return nil, fmt.Errorf("extractor %s returned a bad value: %w", e.Name, err)
	}
	return v, nil
}

// RegisterExtractor makes an extractor addressable by name from decoded programs.
func RegisterExtractor(e *Extractor) error {
	extractorsMu.Lock()
	defer extractorsMu.Unlock()
	if _, exists := extractors[e.Name]; exists {
		return fmt.Errorf("%w: %s", ErrExtractorExists, e.Name)
	}
	extractors[e.Name] = e
	return nil
}

func GetExtractor(name string) (*Extractor, error) {
	extractorsMu.RLock()
	defer extractorsMu.RUnlock()
	e, ok := extractors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExtractorNotFound, name)
	}
	return e, nil
}
