package schema

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danthegoodman1/joinplanner/types"
	"github.com/danthegoodman1/joinplanner/utils"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"
)

func TestAccumulatorRecordType(t *testing.T) {
	a := NewAccumulator("Event")
	rows := []map[string]any{
		{"user": int64(1), "name": "dan"},
		{"amount": 1.2, "user": int64(2)},
		{"meta": map[string]any{"ip": "127.0.0.1"}, "name": nil},
		{"amount": int64(3), "meta": map[string]any{"port": int32(80)}},
	}
	for _, row := range rows {
		if err := a.WriteRow(row); err != nil {
			t.Fatal(err)
		}
	}

	rt, err := a.RecordType()
	if err != nil {
		t.Fatal(err)
	}
	expected := types.Struct("Event",
		types.F("name", types.String),
		types.F("user", types.Int64),
		types.F("amount", types.Float64),
		types.F("meta", types.RecordOf(types.Struct("meta", types.F("ip", types.String), types.F("port", types.Int32)))),
	)
	if !rt.Equal(expected) {
		t.Fatalf("expected %s, got %s", expected, rt)
	}
	if strings.Join(a.ColumnNames(), ",") != "name,user,amount,meta" {
		t.Fatalf("unexpected columns %v", a.ColumnNames())
	}

	ft, err := rt.Lookup("meta.port")
	if err != nil || !ft.Equal(types.Int32) {
		t.Fatalf("nested lookup failed %s %v", ft, err)
	}
}

func TestAccumulatorJSONNumbers(t *testing.T) {
	dec := json.NewDecoder(strings.NewReader(`{"a": 1, "b": 1.5}`))
	dec.UseNumber()
	var row map[string]any
	if err := dec.Decode(&row); err != nil {
		t.Fatal(err)
	}
	a := NewAccumulator("Row")
	if err := a.WriteRow(row); err != nil {
		t.Fatal(err)
	}
	rt, err := a.RecordType()
	if err != nil {
		t.Fatal(err)
	}
	if !rt.Equal(types.Struct("Row", types.F("a", types.Int64), types.F("b", types.Float64))) {
		t.Fatalf("unexpected record type %s", rt)
	}
}

func TestAccumulatorErrors(t *testing.T) {
	a := NewAccumulator("Row")
	if _, err := a.RecordType(); !errors.Is(err, ErrNoColumns) {
		t.Fatalf("expected no columns, got %v", err)
	}
	if err := a.WriteRow(map[string]any{"a": "x"}); err != nil {
		t.Fatal(err)
	}
	if err := a.WriteRow(map[string]any{"a": int64(1)}); !errors.Is(err, ErrConflictingTypes) {
		t.Fatalf("expected conflicting types, got %v", err)
	}
	if err := a.WriteRow(map[string]any{"b": []any{"x"}}); !errors.Is(err, ErrUnsupportedValue) {
		t.Fatalf("expected unsupported value, got %v", err)
	}
}

func TestGetSchemaString(t *testing.T) {
	a := NewAccumulator("Row")
	if err := a.WriteRow(map[string]any{"colA": "hey", "colB": 1.2, "colC": true}); err != nil {
		t.Fatal(err)
	}
	schemaString, err := a.GetSchemaString()
	if err != nil {
		t.Fatal(err)
	}
	if schemaString != `{"Tag":"name=parquet_go_root, repetitiontype=REQUIRED","Fields":[{"Tag":"type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN, name=colA, repetitiontype=OPTIONAL"},{"Tag":"type=DOUBLE, name=colB, repetitiontype=OPTIONAL"},{"Tag":"type=BOOLEAN, name=colC, repetitiontype=OPTIONAL"}]}` {
		t.Log(schemaString)
		t.Fatal("got incorrect schema string")
	}
}

func TestParquetFullCycle(t *testing.T) {
	rows := []map[string]any{
		{"Active": true, "Id": int64(1), "Name": "dan", "Score": 1.5},
		{"Active": false, "Id": int64(2), "Name": "ice", "Score": 2.5},
	}
	a := NewAccumulator("users")
	for _, row := range rows {
		if err := a.WriteRow(row); err != nil {
			t.Fatal(err)
		}
	}
	parquetSchema, err := a.GetSchemaString()
	if err != nil {
		t.Fatal(err)
	}

	fileName := filepath.Join(t.TempDir(), "users.parquet")
	f, err := os.Create(fileName)
	if err != nil {
		t.Fatal(err)
	}
	pw, err := writer.NewJSONWriterFromWriter(parquetSchema, f, 1)
	if err != nil {
		t.Fatal(err)
	}
	for _, row := range rows {
		b, err := json.Marshal(row)
		if err != nil {
			t.Fatal(err)
		}
		if err = pw.Write(string(b)); err != nil {
			t.Fatal(err)
		}
	}
	if err = pw.WriteStop(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	rt, err := ReadParquetRecordType(context.Background(), fileName)
	if err != nil {
		t.Fatal(err)
	}
	expected, err := a.RecordType()
	if err != nil {
		t.Fatal(err)
	}
	if !rt.Equal(expected) {
		t.Fatalf("expected %s, got %s", expected, rt)
	}
	if rt.Name != "users" {
		t.Fatalf("record type should be named after the file, got %s", rt.Name)
	}
}

func TestReadParquetLocationErrors(t *testing.T) {
	ctx := context.Background()
	_, err := ReadParquetRecordType(ctx, filepath.Join(t.TempDir(), "nope.parquet"))
	if !errors.Is(err, ErrBadLocation) || !utils.IsPermanent(err) {
		t.Fatalf("expected a permanent bad location for a missing file, got %v", err)
	}
	if _, err = ReadParquetRecordType(ctx, "gs://bucket/users.parquet"); !errors.Is(err, ErrBadLocation) {
		t.Fatalf("expected bad location for an unknown scheme, got %v", err)
	}
	if _, err = ReadParquetRecordType(ctx, "s3://bucket"); !errors.Is(err, ErrBadLocation) {
		t.Fatalf("expected bad location for a missing key, got %v", err)
	}
}

func TestReadParquetStorageErrorIsNotPermanent(t *testing.T) {
	unreachable := errors.New("connection reset by peer")
	RegisterOpener("schematest", func(ctx context.Context, location string) (source.ParquetFile, error) {
		return nil, unreachable
	})
	_, err := ReadParquetRecordType(context.Background(), "schematest://bucket/users.parquet")
	if !errors.Is(err, unreachable) {
		t.Fatalf("expected the opener error, got %v", err)
	}
	if utils.IsPermanent(err) {
		t.Fatal("storage errors must not be permanent")
	}
}

func TestInferRecordType(t *testing.T) {
	rows := []json.RawMessage{
		json.RawMessage(`{"id": 1, "name": "dan"}`),
		json.RawMessage(`{"id": 2, "score": 1.5, "geo": {"country": "us"}}`),
	}
	rt, err := InferRecordType("users", rows)
	if err != nil {
		t.Fatal(err)
	}
	expected := types.Struct("users",
		types.F("id", types.Int64),
		types.F("name", types.String),
		types.F("geo", types.RecordOf(types.Struct("geo", types.F("country", types.String)))),
		types.F("score", types.Float64),
	)
	if !rt.Equal(expected) {
		t.Fatalf("expected %s, got %s", expected, rt)
	}

	if _, err = InferRecordType("users", []json.RawMessage{json.RawMessage(`[1, 2]`)}); !errors.Is(err, ErrBadSampleRow) {
		t.Fatalf("expected bad sample row, got %v", err)
	}
	if _, err = InferRecordType("users", nil); !errors.Is(err, ErrNoColumns) || !utils.IsPermanent(err) {
		t.Fatalf("expected permanent no columns, got %v", err)
	}
}
