// Package archive uploads finished export files to S3-compatible storage.
package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/ruslano69/partarch/pkg/export"
	"github.com/ruslano69/partarch/pkg/processors"
)

// Config - секция archive конфигурации
type Config struct {
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"` // MinIO и другие S3-совместимые хранилища

	// Статические ключи; пустые - стандартная цепочка AWS (env, профиль, роль)
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`

	PathStyle bool `yaml:"path_style"`

	// Compress - сжимать объекты zstd, ключ получает суффикс .zst
	Compress         bool `yaml:"compress"`
	CompressionLevel int  `yaml:"compression_level"`
}

// Enabled reports whether uploading is configured.
func (c Config) Enabled() bool { return c.Bucket != "" }

// uploadAPI - часть manager.Uploader, нужная S3Uploader
type uploadAPI interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Uploader реализует export.Uploader. Локальные файлы не удаляются.
type S3Uploader struct {
	api    uploadAPI
	cfg    Config
	logger zerolog.Logger
}

var _ export.Uploader = (*S3Uploader)(nil)

// NewS3Uploader creates an uploader using the default AWS configuration
// chain, overridden by the region, endpoint and static keys from cfg.
func NewS3Uploader(ctx context.Context, cfg Config, logger zerolog.Logger) (*S3Uploader, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("archive bucket is not configured")
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	return newS3Uploader(manager.NewUploader(client), cfg, logger), nil
}

func newS3Uploader(api uploadAPI, cfg Config, logger zerolog.Logger) *S3Uploader {
	if cfg.CompressionLevel <= 0 {
		cfg.CompressionLevel = processors.DefaultCompressionLevel
	}
	return &S3Uploader{api: api, cfg: cfg, logger: logger}
}

// ObjectKey returns <prefix>/<partition key>/<file name>[.zst].
func (u *S3Uploader) ObjectKey(p export.Partition, file string) string {
	key := path.Join(u.cfg.Prefix, p.Key, filepath.Base(file))
	if u.cfg.Compress {
		key += ".zst"
	}
	return key
}

// Upload streams file to the bucket, compressing it on the fly when
// configured, and returns the s3:// location of the object.
func (u *S3Uploader) Upload(ctx context.Context, p export.Partition, file string) (string, error) {
	f, err := os.Open(file)
	if err != nil {
		return "", err
	}
	defer f.Close()

	key := u.ObjectKey(p, file)
	input := &s3.PutObjectInput{
		Bucket:      aws.String(u.cfg.Bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("text/csv; charset=utf-8"),
		Metadata:    map[string]string{"partition": p.ID},
	}

	var compressed chan error
	if u.cfg.Compress {
		pr, pw := io.Pipe()
		compressed = make(chan error, 1)
		go func() {
			stats, err := processors.CompressStream(pw, f, u.cfg.CompressionLevel)
			pw.CloseWithError(err)
			if err == nil {
				u.logger.Debug().
					Str("key", key).
					Int64("original", stats.OriginalSize).
					Int64("compressed", stats.CompressedSize).
					Msg("object compressed")
			}
			compressed <- err
		}()
		defer pr.Close()

		input.Body = pr
		input.ContentType = aws.String("application/zstd")
	}

	if _, err := u.api.Upload(ctx, input); err != nil {
		return "", fmt.Errorf("upload s3://%s/%s: %w", u.cfg.Bucket, key, err)
	}
	if compressed != nil {
		if err := <-compressed; err != nil {
			return "", fmt.Errorf("compress %s: %w", file, err)
		}
	}

	location := fmt.Sprintf("s3://%s/%s", u.cfg.Bucket, key)
	u.logger.Debug().Str("file", file).Str("object", location).Msg("uploaded")
	return location, nil
}
