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
	"sync"
	"time"

	"github.com/gorse-io/nextitem/config"
	"github.com/juju/errors"
)

var errAborted = errors.New("blob aborted")

// Info describes a stored blob.
type Info struct {
	Name     string
	Size     int64
	Modified time.Time
}

// Store is a flat namespace of named blobs.
type Store interface {
	// Open a blob for reading. A missing blob is reported as NotFound.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Create a blob. It is persisted once Close of the writer returns nil.
	Create(ctx context.Context, name string) (*Writer, error)
	// List blobs in name order.
	List(ctx context.Context) ([]Info, error)
	// Remove a blob. A missing blob is reported as NotFound.
	Remove(ctx context.Context, name string) error
}

// Writer streams bytes to an upload running in the background. Writes fail
// with the upload error as soon as the upload stops.
type Writer struct {
	pw     *io.PipeWriter
	cancel context.CancelFunc
	done   chan error
	once   sync.Once
	err    error
}

func newWriter(ctx context.Context, upload func(ctx context.Context, r io.Reader) error) *Writer {
	ctx, cancel := context.WithCancel(ctx)
	pr, pw := io.Pipe()
	w := &Writer{pw: pw, cancel: cancel, done: make(chan error, 1)}
	go func() {
		err := upload(ctx, pr)
		if err != nil {
			_ = pr.CloseWithError(err)
		} else {
			_ = pr.Close()
		}
		w.done <- err
	}()
	return w
}

func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.pw.Write(p)
	return n, errors.Trace(err)
}

// Close ends the blob and waits until the upload finishes. It returns the
// upload error, if any.
func (w *Writer) Close() error {
	_ = w.pw.Close()
	return w.wait()
}

// Abort stops the upload. Nothing is persisted.
func (w *Writer) Abort(cause error) {
	if cause == nil {
		cause = errAborted
	}
	w.cancel()
	_ = w.pw.CloseWithError(cause)
	_ = w.wait()
}

func (w *Writer) wait() error {
	w.once.Do(func() {
		w.err = <-w.done
		w.cancel()
	})
	return errors.Trace(w.err)
}

// Open a blob store by configuration.
func Open(cfg config.BlobConfig) (Store, error) {
	var (
		store Store
		err   error
	)
	switch cfg.Type {
	case config.BlobPOSIX, "":
		return NewPOSIX(cfg.Dir), nil
	case config.BlobS3:
		store, err = NewS3(cfg.S3)
	case config.BlobGCS:
		store, err = NewGCS(cfg.GCS)
	case config.BlobAzure:
		store, err = NewAzureBlob(cfg.Azure)
	default:
		return nil, errors.NotSupportedf("blob store %s", cfg.Type)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	return store, nil
}
