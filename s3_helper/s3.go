package s3_helper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/danthegoodman1/joinplanner/gologger"
	"github.com/danthegoodman1/joinplanner/utils"
)

var ErrNoSuchKey = errors.New("no such key")

// Bucket stores whole objects in one S3 bucket.
type Bucket struct {
	Name string
	sess *session.Session
}

func NewBucket(name string) (*Bucket, error) {
	s3Config := &aws.Config{
		Region:      aws.String(utils.AWS_DEFAULT_REGION),
		Credentials: credentials.NewEnvCredentials(),
	}
	if utils.S3_ENDPOINT != "" {
		s3Config.Endpoint = aws.String(utils.S3_ENDPOINT)
		s3Config.S3ForcePathStyle = aws.Bool(true)
	}

	s3Session, err := session.NewSession(s3Config)
	if err != nil {
		return nil, fmt.Errorf("error making new session: %w", err)
	}
	return &Bucket{Name: name, sess: s3Session}, nil
}

func (b *Bucket) WriteBytes(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := b.WriteBytesToS3(ctx, key, bytes.NewReader(data), aws.String(contentType))
	return err
}

func (b *Bucket) WriteBytesToS3(ctx context.Context, key string, byteStream io.Reader, contentType *string) (*s3manager.UploadOutput, error) {
	logger := gologger.ComponentCtx(ctx, "s3_helper")

	uploader := s3manager.NewUploader(b.sess)
	input := &s3manager.UploadInput{
		Bucket:      aws.String(b.Name),
		Key:         aws.String(key),
		Body:        byteStream,
		ContentType: contentType,
	}

	s := time.Now()
	output, err := uploader.UploadWithContext(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("error uploading to s3: %w", err)
	}

	d := time.Since(s)
	logger.Debug().Str("key", key).Int64("durationNS", d.Nanoseconds()).Str("durationHuman", d.String()).Msg("uploaded file to s3")
	return output, nil
}

func (b *Bucket) ReadBytes(ctx context.Context, key string) ([]byte, error) {
	logger := gologger.ComponentCtx(ctx, "s3_helper")

	downloader := s3manager.NewDownloader(b.sess)
	buf := &aws.WriteAtBuffer{}

	s := time.Now()
	_, err := downloader.DownloadWithContext(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(b.Name),
		Key:    aws.String(key),
	})
	var aerr awserr.Error
	if errors.As(err, &aerr) && aerr.Code() == s3.ErrCodeNoSuchKey {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchKey, key)
	}
	if err != nil {
		return nil, fmt.Errorf("error downloading from s3: %w", err)
	}

	d := time.Since(s)
	logger.Debug().Str("key", key).Int64("durationNS", d.Nanoseconds()).Str("durationHuman", d.String()).Msg("downloaded file from s3")
	return buf.Bytes(), nil
}
