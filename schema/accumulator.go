package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/danthegoodman1/joinplanner/types"
	"github.com/danthegoodman1/joinplanner/utils"
)

type (
	// Accumulator infers a record type from sample rows. Columns keep the order
	// in which they were first seen, keys of a single row are visited sorted.
	Accumulator struct {
		name    string
		columns []*column
		index   map[string]*column
	}

	column struct {
		name   string
		kind   types.Kind
		nested *Accumulator
	}

	ParquetJSONSchema struct {
		Tag    string               `json:",omitempty"`
		Fields []*ParquetJSONSchema `json:",omitempty"`
	}
)

var (
	ErrConflictingTypes = utils.PermError("column seen with conflicting types")
	ErrUnsupportedValue = utils.PermError("unsupported value")
	ErrNoColumns        = utils.PermError("no columns inferred")
	ErrBadSampleRow     = utils.PermError("sample row is not a JSON object")
)

func NewAccumulator(name string) *Accumulator {
	return &Accumulator{
		name:  name,
		index: map[string]*column{},
	}
}

// InferRecordType accumulates JSON object rows into a record type named name.
// Integral numbers become int64, other numbers float64.
func InferRecordType(name string, rows []json.RawMessage) (*types.RecordType, error) {
	a := NewAccumulator(name)
	for i, raw := range rows {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var row map[string]any
		if err := dec.Decode(&row); err != nil || row == nil {
			return nil, fmt.Errorf("%w: row %d", ErrBadSampleRow, i)
		}
		if err := a.WriteRow(row); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	return a.RecordType()
}

func (a *Accumulator) WriteRow(row map[string]any) error {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		val := row[key]
		if val == nil {
			continue
		}
		kind, err := kindOf(val)
		if err != nil {
			return fmt.Errorf("column %s: %w", key, err)
		}

		col, exists := a.index[key]
		if !exists {
			col = &column{name: key, kind: kind}
			a.index[key] = col
			a.columns = append(a.columns, col)
		} else if col.kind != kind {
			widened, ok := widen(col.kind, kind)
			if !ok {
				return fmt.Errorf("%w: %s is %s and %s", ErrConflictingTypes, key, col.kind, kind)
			}
			col.kind = widened
		}

		if kind == types.KindRecord {
			if col.nested == nil {
				col.nested = NewAccumulator(key)
			}
			if err = col.nested.WriteRow(val.(map[string]any)); err != nil {
				return fmt.Errorf("column %s: %w", key, err)
			}
		}
	}
	return nil
}

func kindOf(val any) (types.Kind, error) {
	switch v := val.(type) {
	case bool:
		return types.KindBool, nil
	case int32:
		return types.KindInt32, nil
	case int, int64:
		return types.KindInt64, nil
	case float32:
		return types.KindFloat32, nil
	case float64:
		return types.KindFloat64, nil
	case json.Number:
		if _, err := v.Int64(); err == nil {
			return types.KindInt64, nil
		}
		return types.KindFloat64, nil
	case string:
		return types.KindString, nil
	case []byte:
		return types.KindBytes, nil
	case map[string]any:
		return types.KindRecord, nil
	default:
		return types.KindInvalid, fmt.Errorf("%w: %T", ErrUnsupportedValue, val)
	}
}

// widen only merges numbers, JSON cannot tell an integral float apart from an int.
func widen(a, b types.Kind) (types.Kind, bool) {
	numeric := map[types.Kind]int{
		types.KindInt32:   0,
		types.KindInt64:   1,
		types.KindFloat32: 2,
		types.KindFloat64: 3,
	}
	ra, okA := numeric[a]
	rb, okB := numeric[b]
	if !okA || !okB {
		return types.KindInvalid, false
	}
	if ra > rb {
		return a, true
	}
	return b, true
}

func (a *Accumulator) ColumnNames() []string {
	cols := make([]string, len(a.columns))
	for i, col := range a.columns {
		cols[i] = col.name
	}
	return cols
}

// RecordType returns the inferred named record type.
func (a *Accumulator) RecordType() (*types.RecordType, error) {
	if len(a.columns) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoColumns, a.name)
	}
	fields := make([]types.Field, len(a.columns))
	for i, col := range a.columns {
		if col.kind != types.KindRecord {
			fields[i] = types.F(col.name, types.FieldType{Kind: col.kind})
			continue
		}
		nested, err := col.nested.RecordType()
		if err != nil {
			return nil, err
		}
		fields[i] = types.F(col.name, types.RecordOf(nested))
	}
	return types.Struct(a.name, fields...), nil
}

// GetSchemaString returns the parquet-go JSON schema for the accumulated columns.
func (a *Accumulator) GetSchemaString() (string, error) {
	pjs := ParquetJSONSchema{
		Tag:    "name=parquet_go_root, repetitiontype=REQUIRED",
		Fields: a.parquetFields(),
	}
	b, err := json.Marshal(pjs)
	if err != nil {
		return "", fmt.Errorf("error in json.Marshal: %w", err)
	}
	return string(b), nil
}

func (a *Accumulator) parquetFields() []*ParquetJSONSchema {
	var fields []*ParquetJSONSchema
	for _, col := range a.columns {
		var tagArr []string
		switch col.kind {
		case types.KindBool:
			tagArr = append(tagArr, "type=BOOLEAN")
		case types.KindInt32:
			tagArr = append(tagArr, "type=INT32")
		case types.KindInt64:
			tagArr = append(tagArr, "type=INT64")
		case types.KindFloat32:
			tagArr = append(tagArr, "type=FLOAT")
		case types.KindFloat64:
			tagArr = append(tagArr, "type=DOUBLE")
		case types.KindString:
			tagArr = append(tagArr, "type=BYTE_ARRAY", "convertedtype=UTF8", "encoding=PLAIN")
		case types.KindBytes:
			tagArr = append(tagArr, "type=BYTE_ARRAY")
		}
		tagArr = append(tagArr, "name="+col.name, "repetitiontype=OPTIONAL")

		f := &ParquetJSONSchema{Tag: strings.Join(tagArr, ", ")}
		if col.kind == types.KindRecord {
			f.Fields = col.nested.parquetFields()
		}
		fields = append(fields, f)
	}
	return fields
}
