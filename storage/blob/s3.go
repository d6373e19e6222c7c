// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package blob

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/gorse-io/nextitem/config"
	"github.com/juju/errors"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const contentType = "application/octet-stream"

// S3 stores blobs as objects of a bucket through the MinIO client.
type S3 struct {
	client *minio.Client
	bucket string
	prefix string
}

func NewS3(cfg config.S3Config) (*S3, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &S3{client: client, bucket: cfg.Bucket, prefix: strings.Trim(cfg.Prefix, "/")}, nil
}

func (s *S3) key(name string) string {
	return path.Join(s.prefix, name)
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

// Open checks the object exists before returning the lazy reader.
func (s *S3) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	object, err := s.client.GetObject(ctx, s.bucket, s.key(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Trace(err)
	}
	if _, err = object.Stat(); err != nil {
		_ = object.Close()
		if isNoSuchKey(err) {
			return nil, errors.NotFoundf("blob %s", name)
		}
		return nil, errors.Trace(err)
	}
	return object, nil
}

// Create uploads the blob in multipart chunks since its size is unknown.
func (s *S3) Create(ctx context.Context, name string) (*Writer, error) {
	key := s.key(name)
	return newWriter(ctx, func(ctx context.Context, r io.Reader) error {
		_, err := s.client.PutObject(ctx, s.bucket, key, r, -1, minio.PutObjectOptions{ContentType: contentType})
		return errors.Annotatef(err, "upload %s to bucket %s", key, s.bucket)
	}), nil
}

func (s *S3) List(ctx context.Context) ([]Info, error) {
	var blobs []Info
	prefix := s.prefix
	if prefix != "" {
		prefix += "/"
	}
	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if object.Err != nil {
			return nil, errors.Trace(object.Err)
		}
		blobs = append(blobs, Info{
			Name:     strings.TrimPrefix(object.Key, prefix),
			Size:     object.Size,
			Modified: object.LastModified,
		})
	}
	return blobs, nil
}

// Remove deletes an object. S3 deletes missing keys silently, so the object is
// looked up first.
func (s *S3) Remove(ctx context.Context, name string) error {
	key := s.key(name)
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return errors.NotFoundf("blob %s", name)
		}
		return errors.Trace(err)
	}
	return errors.Trace(s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}))
}
