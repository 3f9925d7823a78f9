package schema

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/danthegoodman1/joinplanner/gologger"
	"github.com/danthegoodman1/joinplanner/types"
	"github.com/danthegoodman1/joinplanner/utils"
	s3_pq "github.com/xitongsys/parquet-go-source/s3"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/source"
)

// Opener opens the parquet file at a scheme://... location.
type Opener func(ctx context.Context, location string) (source.ParquetFile, error)

var (
	ErrUnsupportedColumn = utils.PermError("unsupported parquet column")
	ErrEmptySchema       = utils.PermError("parquet file has no columns")
	ErrBadLocation       = utils.PermError("bad parquet location")
	ErrNotParquet        = utils.PermError("not a parquet file")

	openersMu sync.RWMutex
	openers   = map[string]Opener{
		"s3": openS3,
	}
)

// RegisterOpener makes locations with the given scheme readable, replacing
// any opener already registered for it.
func RegisterOpener(scheme string, o Opener) {
	openersMu.Lock()
	defer openersMu.Unlock()
	openers[scheme] = o
}

// ReadParquetRecordType opens a local path or a scheme://... location and
// turns the parquet footer schema into a named record type. Errors caused by
// the location or the file itself are permanent, failures to reach the
// storage are not.
func ReadParquetRecordType(ctx context.Context, location string) (*types.RecordType, error) {
	logger := gologger.ComponentCtx(ctx, "schema")

	s := time.Now()
	fr, remote, err := openParquet(ctx, location)
	if err != nil {
		return nil, err
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, nil, 1)
	if err != nil && !remote {
		return nil, fmt.Errorf("%w: %s: %s", ErrNotParquet, location, err)
	}
	if err != nil {
		return nil, fmt.Errorf("error creating parquet reader for %s: %w", location, err)
	}
	defer pr.ReadStop()

	name := strings.TrimSuffix(path.Base(location), path.Ext(location))
	names := make([]string, len(pr.Footer.Schema))
	for i, el := range pr.Footer.Schema {
		names[i] = el.Name
		if i < len(pr.SchemaHandler.Infos) && pr.SchemaHandler.Infos[i].ExName != "" {
			names[i] = pr.SchemaHandler.Infos[i].ExName
		}
	}
	rt, err := recordTypeFromFooter(name, pr.Footer.Schema, names)
	if err != nil {
		return nil, fmt.Errorf("error reading schema of %s: %w", location, err)
	}

	logger.Debug().Str("location", location).Str("recordType", rt.String()).Int64("rows", pr.GetNumRows()).Str("duration", time.Since(s).String()).Msg("read parquet record type")
	return rt, nil
}

func openParquet(ctx context.Context, location string) (fr source.ParquetFile, remote bool, err error) {
	scheme, _, found := strings.Cut(location, "://")
	if !found {
		fr, err = local.NewLocalFileReader(location)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, fmt.Errorf("%w: %s does not exist", ErrBadLocation, location)
		}
		if err != nil {
			return nil, false, fmt.Errorf("error opening %s: %w", location, err)
		}
		return fr, false, nil
	}

	openersMu.RLock()
	open, ok := openers[scheme]
	openersMu.RUnlock()
	if !ok {
		return nil, true, fmt.Errorf("%w: unknown scheme %q", ErrBadLocation, scheme)
	}
	fr, err = open(ctx, location)
	if err != nil {
		return nil, true, err
	}
	return fr, true, nil
}

func openS3(ctx context.Context, location string) (source.ParquetFile, error) {
	bucket, key, _ := strings.Cut(strings.TrimPrefix(location, "s3://"), "/")
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("%w: %s needs a bucket and a key", ErrBadLocation, location)
	}
	conf := &aws.Config{
		Region:      aws.String(utils.AWS_DEFAULT_REGION),
		Credentials: credentials.NewEnvCredentials(),
	}
	if utils.S3_ENDPOINT != "" {
		conf.Endpoint = aws.String(utils.S3_ENDPOINT)
		conf.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(conf)
	if err != nil {
		return nil, fmt.Errorf("error making new aws session: %w", err)
	}
	fr, err := s3_pq.NewS3FileReaderWithClient(ctx, s3.New(sess), bucket, key)
	if err != nil {
		return nil, fmt.Errorf("error creating new s3 file reader: %w", err)
	}
	return fr, nil
}

// recordTypeFromFooter walks the flattened depth first schema list, the first
// element is the root group.
func recordTypeFromFooter(name string, elements []*parquet.SchemaElement, names []string) (*types.RecordType, error) {
	if len(elements) < 2 {
		return nil, ErrEmptySchema
	}
	fields, _, err := walkGroup(elements, names, 0)
	if err != nil {
		return nil, err
	}
	return types.Struct(name, fields...), nil
}

func walkGroup(elements []*parquet.SchemaElement, names []string, idx int) ([]types.Field, int, error) {
	children := int(elements[idx].GetNumChildren())
	next := idx + 1
	fields := make([]types.Field, 0, children)
	for c := 0; c < children; c++ {
		if next >= len(elements) {
			return nil, next, fmt.Errorf("%w: truncated schema", ErrUnsupportedColumn)
		}
		el := elements[next]
		if el.IsSetRepetitionType() && el.GetRepetitionType() == parquet.FieldRepetitionType_REPEATED {
			return nil, next, fmt.Errorf("%w: %s is repeated", ErrUnsupportedColumn, names[next])
		}

		if el.GetNumChildren() > 0 {
			if el.IsSetConvertedType() {
				return nil, next, fmt.Errorf("%w: %s is %s", ErrUnsupportedColumn, names[next], el.GetConvertedType())
			}
			nested, after, err := walkGroup(elements, names, next)
			if err != nil {
				return nil, after, err
			}
			fields = append(fields, types.F(names[next], types.RecordOf(types.Struct(names[next], nested...))))
			next = after
			continue
		}

		ft, err := scalarType(el)
		if err != nil {
			return nil, next, fmt.Errorf("column %s: %w", names[next], err)
		}
		fields = append(fields, types.F(names[next], ft))
		next++
	}
	return fields, next, nil
}

func scalarType(el *parquet.SchemaElement) (types.FieldType, error) {
	if !el.IsSetType() {
		return types.FieldType{}, fmt.Errorf("%w: no physical type", ErrUnsupportedColumn)
	}
	switch el.GetType() {
	case parquet.Type_BOOLEAN:
		return types.Bool, nil
	case parquet.Type_INT32:
		return types.Int32, nil
	case parquet.Type_INT64:
		return types.Int64, nil
	case parquet.Type_FLOAT:
		return types.Float32, nil
	case parquet.Type_DOUBLE:
		return types.Float64, nil
	case parquet.Type_BYTE_ARRAY:
		if el.IsSetConvertedType() && el.GetConvertedType() == parquet.ConvertedType_UTF8 {
			return types.String, nil
		}
		return types.Bytes, nil
	default:
		return types.FieldType{}, fmt.Errorf("%w: physical type %s", ErrUnsupportedColumn, el.GetType())
	}
}
