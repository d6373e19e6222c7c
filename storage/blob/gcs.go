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
	"os"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/gorse-io/nextitem/config"
	"github.com/juju/errors"
	"golang.org/x/oauth2"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCS stores blobs as objects of a Google Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCS creates a GCS client. Credentials come from a static access token, a
// credentials file or the environment, in this order. GCS_EMULATOR_ENDPOINT
// redirects requests to an emulator.
func NewGCS(cfg config.GCSConfig) (*GCS, error) {
	var opts []option.ClientOption
	if emulator := os.Getenv("GCS_EMULATOR_ENDPOINT"); emulator != "" {
		opts = append(opts, option.WithEndpoint(emulator), option.WithoutAuthentication())
	} else if cfg.AccessToken != "" {
		opts = append(opts, option.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken})))
	} else if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &GCS{client: client, bucket: cfg.Bucket, prefix: strings.Trim(cfg.Prefix, "/")}, nil
}

func (g *GCS) object(name string) *storage.ObjectHandle {
	return g.client.Bucket(g.bucket).Object(path.Join(g.prefix, name))
}

func (g *GCS) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	r, err := g.object(name).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, errors.NotFoundf("blob %s", name)
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	return r, nil
}

// Create finalizes the object only after every byte is copied. A failed copy
// cancels the upload.
func (g *GCS) Create(ctx context.Context, name string) (*Writer, error) {
	return newWriter(ctx, func(ctx context.Context, r io.Reader) error {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		w := g.object(name).NewWriter(ctx)
		w.ContentType = contentType
		if _, err := io.Copy(w, r); err != nil {
			return errors.Annotatef(err, "upload %s to bucket %s", name, g.bucket)
		}
		return errors.Annotatef(w.Close(), "upload %s to bucket %s", name, g.bucket)
	}), nil
}

func (g *GCS) List(ctx context.Context) ([]Info, error) {
	var blobs []Info
	query := &storage.Query{}
	if g.prefix != "" {
		query.Prefix = g.prefix + "/"
	}
	it := g.client.Bucket(g.bucket).Objects(ctx, query)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		} else if err != nil {
			return nil, errors.Trace(err)
		}
		blobs = append(blobs, Info{
			Name:     strings.TrimPrefix(attrs.Name, query.Prefix),
			Size:     attrs.Size,
			Modified: attrs.Updated,
		})
	}
	return blobs, nil
}

func (g *GCS) Remove(ctx context.Context, name string) error {
	err := g.object(name).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return errors.NotFoundf("blob %s", name)
	}
	return errors.Trace(err)
}
