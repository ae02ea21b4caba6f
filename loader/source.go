package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	apperrors "github.com/yashrajoria/catalog-seeder/errors"
	pkgaws "github.com/yashrajoria/catalog-seeder/pkg/aws"
)

// Source resolves a named seed resource to its raw bytes.
type Source interface {
	// Open returns the full content of name.ext, or a ResourceNotFound error.
	Open(ctx context.Context, name, ext string) ([]byte, error)
}

func fileName(name, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		return name
	}
	return name + "." + ext
}

// FSSource reads seed files from a file system, e.g. os.DirFS or an embed.FS.
type FSSource struct {
	FS  fs.FS
	Dir string
}

func NewFSSource(fsys fs.FS, dir string) *FSSource {
	return &FSSource{FS: fsys, Dir: dir}
}

func (s *FSSource) Open(ctx context.Context, name, ext string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := fileName(name, ext)
	if s.Dir != "" && s.Dir != "." {
		p = path.Join(s.Dir, p)
	}

	data, err := fs.ReadFile(s.FS, p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.Wrapf(apperrors.ErrResourceNotFound, err, "seed resource %s not found", p)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	return data, nil
}

// S3Source reads seed files from a bucket under an optional key prefix.
type S3Source struct {
	Client pkgaws.S3GetObjectAPI
	Bucket string
	Prefix string
}

func NewS3Source(client pkgaws.S3GetObjectAPI, bucket, prefix string) *S3Source {
	return &S3Source{Client: client, Bucket: bucket, Prefix: prefix}
}

func (s *S3Source) Open(ctx context.Context, name, ext string) ([]byte, error) {
	key := fileName(name, ext)
	if s.Prefix != "" {
		key = strings.TrimSuffix(s.Prefix, "/") + "/" + key
	}

	data, err := pkgaws.GetObjectBytes(ctx, s.Client, s.Bucket, key)
	if err != nil {
		if isS3NotFound(err) {
			return nil, apperrors.Wrapf(apperrors.ErrResourceNotFound, err, "seed resource s3://%s/%s not found", s.Bucket, key)
		}
		return nil, fmt.Errorf("get s3://%s/%s: %w", s.Bucket, key, err)
	}
	return data, nil
}

func isS3NotFound(err error) bool {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return true
		}
	}
	return false
}
