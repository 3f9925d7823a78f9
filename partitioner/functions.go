package partitioner

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/danthegoodman1/joinplanner/types"
)

var (
	ErrInvalidKeyType = errors.New("invalid key type")

	registerOnce sync.Once
)

// RegisterFunctions installs the builtin partition functions. Calling it more
// than once is a no-op.
func RegisterFunctions() {
	registerOnce.Do(func() {
		for _, p := range builtins() {
			functionsMu.Lock()
			Functions[p.Name] = p
			functionsMu.Unlock()
		}
	})
}

func builtins() []*Partitioner {
	return []*Partitioner{
		New("modInt32", types.Int32, func(key any, n int) (int, error) {
			k, ok := key.(int32)
			if !ok {
				return 0, ErrInvalidKeyType
			}
			return mod(int64(k), n), nil
		}),
		New("modInt64", types.Int64, func(key any, n int) (int, error) {
			k, ok := key.(int64)
			if !ok {
				return 0, ErrInvalidKeyType
			}
			return mod(k, n), nil
		}),
		New("hashString", types.String, func(key any, n int) (int, error) {
			k, ok := key.(string)
			if !ok {
				return 0, ErrInvalidKeyType
			}
			return hashBytes([]byte(k), n), nil
		}),
		New("hashBytes", types.Bytes, func(key any, n int) (int, error) {
			k, ok := key.([]byte)
			if !ok {
				return 0, ErrInvalidKeyType
			}
			return hashBytes(k, n), nil
		}),
		New("toDay", types.String, func(key any, n int) (int, error) {
			t, err := parseTime(key)
			if err != nil {
				return 0, fmt.Errorf("error in parseTime: %w", err)
			}
			return mod(int64(t.Day()), n), nil
		}),
		New("toMonth", types.String, func(key any, n int) (int, error) {
			t, err := parseTime(key)
			if err != nil {
				return 0, fmt.Errorf("error in parseTime: %w", err)
			}
			return mod(int64(t.Month()), n), nil
		}),
		New("toYear", types.String, func(key any, n int) (int, error) {
			t, err := parseTime(key)
			if err != nil {
				return 0, fmt.Errorf("error in parseTime: %w", err)
			}
			return mod(int64(t.Year()), n), nil
		}),
	}
}

func mod(k int64, n int) int {
	m := k % int64(n)
	if m < 0 {
		m += int64(n)
	}
	return int(m)
}

func hashBytes(b []byte, n int) int {
	h := fnv.New32a()
	_, _ = h.Write(b)
	return int(h.Sum32() % uint32(n))
}

// parseTime accepts datetimes like YYYY-MM-DDTHH:mm:ss.sssZ
func parseTime(key any) (time.Time, error) {
	s, ok := key.(string)
	if !ok {
		return time.Time{}, ErrInvalidKeyType
	}
	t, err := time.Parse("2006-01-02T15:04:05.000Z", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("error in time.Parse for string: %w", err)
	}
	return t, nil
}
