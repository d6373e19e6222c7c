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
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/juju/errors"
)

// POSIX stores blobs as files under a directory. A blob is written to a hidden
// temporary file and renamed into place once complete.
type POSIX struct {
	dir string
}

func NewPOSIX(dir string) *POSIX {
	return &POSIX{dir: dir}
}

func (p *POSIX) path(name string) string {
	return filepath.Join(p.dir, filepath.FromSlash(name))
}

func (p *POSIX) Open(_ context.Context, name string) (io.ReadCloser, error) {
	file, err := os.Open(p.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errors.NotFoundf("blob %s", name)
	}
	return file, errors.Trace(err)
}

func (p *POSIX) Create(ctx context.Context, name string) (*Writer, error) {
	target := p.path(name)
	if err := os.MkdirAll(filepath.Dir(target), os.ModePerm); err != nil {
		return nil, errors.Trace(err)
	}
	file, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*")
	if err != nil {
		return nil, errors.Trace(err)
	}
	return newWriter(ctx, func(_ context.Context, r io.Reader) error {
		_, err := io.Copy(file, r)
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
		if err == nil {
			err = os.Rename(file.Name(), target)
		}
		if err != nil {
			_ = os.Remove(file.Name())
			return errors.Annotatef(err, "write blob %s", name)
		}
		return nil
	}), nil
}

// List regular files under the directory. Unfinished blobs are skipped.
func (p *POSIX) List(_ context.Context) ([]Info, error) {
	var blobs []Info
	err := filepath.WalkDir(p.dir, func(fullPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		name, err := filepath.Rel(p.dir, fullPath)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		blobs = append(blobs, Info{Name: filepath.ToSlash(name), Size: info.Size(), Modified: info.ModTime()})
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	sort.Slice(blobs, func(i, j int) bool {
		return blobs[i].Name < blobs[j].Name
	})
	return blobs, nil
}

func (p *POSIX) Remove(_ context.Context, name string) error {
	err := os.Remove(p.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return errors.NotFoundf("blob %s", name)
	}
	return errors.Trace(err)
}
