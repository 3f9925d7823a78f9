package partitioner

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/danthegoodman1/joinplanner/types"
)

type (
	// PartitionFunc maps a key value and a partition count to a partition index.
	PartitionFunc func(key any, numPartitions int) (int, error)

	// Partitioner is a user partition function together with the single field
	// type it is defined over. Channels share it by pointer, never copy it.
	Partitioner struct {
		Name        string
		OperandType types.FieldType
		Func        PartitionFunc
	}
)

var (
	functionsMu sync.RWMutex
	Functions   = make(map[string]*Partitioner)

	ErrFuncNotFound = errors.New("partition function not found")
	ErrFuncExists   = errors.New("partition function already registered")

	ErrMissingFunc           = errors.New("partitioner has no function")
	ErrInvalidPartitionCount = errors.New("partition count must be positive")
	ErrPartitionOutOfRange   = errors.New("partition function returned an index out of range")
)

func New(name string, operand types.FieldType, f PartitionFunc) *Partitioner {
	return &Partitioner{Name: name, OperandType: operand, Func: f}
}

// Partition runs the function for one key and checks the returned index.
func (p *Partitioner) Partition(key any, numPartitions int) (int, error) {
	if p.Func == nil {
		return 0, fmt.Errorf("%w: %s", ErrMissingFunc, p.Name)
	}
	if numPartitions <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidPartitionCount, numPartitions)
	}
	if err := types.CheckValue(p.OperandType, key); err != nil {
		return 0, fmt.Errorf("partitioner %s: %w", p.Name, err)
	}
	idx, err := p.Func(key, numPartitions)
	if err != nil {
		return 0, fmt.Errorf("error processing partition function %s: %w", p.Name, err)
	}
	if idx < 0 || idx >= numPartitions {
		return 0, fmt.Errorf("%w: %s returned %d of %d", ErrPartitionOutOfRange, p.Name, idx, numPartitions)
	}
	return idx, nil
}

func (p *Partitioner) String() string {
	return fmt.Sprintf("%s(%s)", p.Name, p.OperandType)
}

func Register(p *Partitioner) error {
	functionsMu.Lock()
	defer functionsMu.Unlock()
	if _, exists := Functions[p.Name]; exists {
		return fmt.Errorf("%w: %s", ErrFuncExists, p.Name)
	}
	Functions[p.Name] = p
	return nil
}

func Get(name string) (*Partitioner, error) {
	functionsMu.RLock()
	defer functionsMu.RUnlock()
	p, ok := Functions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFuncNotFound, name)
	}
	return p, nil
}

// List returns the registered partitioners sorted by name.
func List() []*Partitioner {
	functionsMu.RLock()
	defer functionsMu.RUnlock()
	list := make([]*Partitioner, 0, len(Functions))
	for _, p := range Functions {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	return list
}
