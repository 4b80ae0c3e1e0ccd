package worker

import (
	"bytes"
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/pkg/errors"

	"github.com/buildit-dev/buildit/common/logger"
)

// LogSink stores a finished build log and returns the URL it can be read at.
// An empty URL means the log was saved but has no public address.
type LogSink interface {
	Store(ctx context.Context, fileName string, content []byte) (string, error)
}

// LocalLogSink writes logs to a directory on the worker host. It is the
// fallback when no remote sink is configured or the remote sink fails, so a
// failed upload never loses the transcript.
type LocalLogSink struct {
	dir string
}

func NewLocalLogSink(dir string) *LocalLogSink {
	return &LocalLogSink{dir: dir}
}

func (s *LocalLogSink) Store(ctx context.Context, fileName string, content []byte) (string, error) {
	err := os.MkdirAll(s.dir, 0755)
	if err != nil {
		return "", errors.Wrapf(err, "error creating log directory %q", s.dir)
	}
	err = os.WriteFile(filepath.Join(s.dir, fileName), content, 0644)
	if err != nil {
		return "", errors.Wrapf(err, "error writing log file %q", fileName)
	}
	return "", nil
}

type S3LogSinkConfig struct {
	Bucket string
	// KeyPrefix is prepended to every object key, e.g. "logs".
	KeyPrefix string
	// PublicBaseURL is where the bucket's objects are served from, e.g.
	// "https://buildit.example.com/logs".
	PublicBaseURL string
}

// S3LogSink uploads finished build logs to an S3 bucket fronted by the
// coordinator's public log host.
type S3LogSink struct {
	config   S3LogSinkConfig
	uploader *s3manager.Uploader
	log      logger.Log
}

func NewS3LogSink(sess *session.Session, config S3LogSinkConfig, logFactory logger.LogFactory) *S3LogSink {
	return &S3LogSink{
		config:   config,
		uploader: s3manager.NewUploader(sess),
		log:      logFactory("S3LogSink"),
	}
}

func (s *S3LogSink) Store(ctx context.Context, fileName string, content []byte) (string, error) {
	key := path.Join(s.config.KeyPrefix, fileName)
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.config.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		return "", errors.Wrapf(err, "error uploading log %q to s3://%s/%s", fileName, s.config.Bucket, key)
	}
	url := strings.TrimRight(s.config.PublicBaseURL, "/") + "/" + fileName
	s.log.Infof("Uploaded build log to %s", url)
	return url, nil
}
