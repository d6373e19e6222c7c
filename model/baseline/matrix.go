// Copyright 2022 gorse Project Authors
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

package baseline

import (
	"context"
	"encoding/binary"
	"io"
	"sort"

	"github.com/bits-and-blooms/bitset"
	"github.com/gorse-io/nextitem/base/log"
	"github.com/gorse-io/nextitem/base/progress"
	"github.com/gorse-io/nextitem/config"
	"github.com/gorse-io/nextitem/dataset"
	"github.com/juju/errors"
	"go.uber.org/zap"
	"modernc.org/sortutil"
)

// Matrix holds co-occurrence counts between product indices. It is symmetric,
// so only cells with i <= j are stored.
type Matrix struct {
	n     int
	cells map[uint64]int32
	rows  *bitset.BitSet
}

// NewMatrix creates an empty matrix over n products.
func NewMatrix(n int) *Matrix {
	return &Matrix{
		n:     n,
		cells: make(map[uint64]int32),
		rows:  bitset.New(uint(n)),
	}
}

func key(i, j int32) uint64 {
	if i > j {
		i, j = j, i
	}
	return uint64(i)<<32 | uint64(uint32(j))
}

func (m *Matrix) add(i, j int32, delta int32) {
	m.cells[key(i, j)] += delta
	m.rows.Set(uint(i))
	m.rows.Set(uint(j))
}

// Get returns the count of (i, j). Absent cells count 0.
func (m *Matrix) Get(i, j int32) int32 {
	return m.cells[key(i, j)]
}

// HasRow reports whether product i co-occurs with any product.
func (m *Matrix) HasRow(i int32) bool {
	return m.rows.Test(uint(i))
}

// Len returns the number of products.
func (m *Matrix) Len() int {
	return m.n
}

// NNZ returns the number of stored cells.
func (m *Matrix) NNZ() int {
	return len(m.cells)
}

// Density returns the fraction of non-zero cells among the n(n-1)/2 product pairs.
func (m *Matrix) Density() float64 {
	if m.n < 2 {
		return 0
	}
	return float64(len(m.cells)) / (float64(m.n) * float64(m.n-1) / 2)
}

// BuildMatrix counts, for every pair of products, the users whose training items
// contain both. With config.PairEvents, pairs are formed over a user's training
// transactions instead, so repeated interactions count repeatedly; pairs of the
// same product are skipped.
//
// Building costs O(Σ C(n_u, 2)) where n_u is the number of training items (or
// training transactions) of user u. This dominates the cost of model setup.
func BuildMatrix(ctx context.Context, ds *dataset.Dataset, policy string) (*Matrix, error) {
	sequences, err := pairSequences(ds, policy)
	if err != nil {
		return nil, errors.Trace(err)
	}
	matrix := NewMatrix(ds.NProducts())
	_, span := progress.Start(ctx, "build_matrix", len(sequences))
	defer span.End()
	for _, sequence := range sequences {
		for a := 0; a < len(sequence); a++ {
			for b := a + 1; b < len(sequence); b++ {
				if sequence[a] != sequence[b] {
					matrix.add(sequence[a], sequence[b], 1)
				}
			}
		}
		span.Add(1)
	}
	log.Logger().Info("co-occurrence matrix built",
		zap.String("pair_policy", policy),
		zap.Int("n_products", matrix.Len()),
		zap.Int("nnz", matrix.NNZ()),
		zap.Float64("density", matrix.Density()))
	return matrix, nil
}

// pairSequences returns product indices to pair for every user.
func pairSequences(ds *dataset.Dataset, policy string) ([][]int32, error) {
	index := ds.Store().Index()
	switch policy {
	case config.PairDistinct:
		sequences := make([][]int32, 0, ds.NUsers())
		for _, user := range ds.Users() {
			sequence := make([]int32, 0, len(user.TrainItems))
			for _, productId := range user.TrainItems {
				i, ok := index.ToIndex(productId)
				if !ok {
					return nil, errors.Annotate(dataset.ErrProductNotExist, productId)
				}
				sequence = append(sequence, i)
			}
			sequences = append(sequences, sequence)
		}
		return sequences, nil
	case config.PairEvents:
		positions := make(map[string]int, ds.NUsers())
		sequences := make([][]int32, 0, ds.NUsers())
		for _, txn := range ds.TrainingTransactions() {
			i, ok := index.ToIndex(txn.ProductId)
			if !ok {
				return nil, errors.Annotate(dataset.ErrProductNotExist, txn.ProductId)
			}
			pos, exist := positions[txn.UserId]
			if !exist {
				pos = len(sequences)
				positions[txn.UserId] = pos
				sequences = append(sequences, nil)
			}
			sequences[pos] = append(sequences[pos], i)
		}
		return sequences, nil
	default:
		return nil, errors.NotSupportedf("pair policy %q", policy)
	}
}

// Marshal writes cells in ascending key order so equal matrices produce equal bytes.
func (m *Matrix) Marshal(w io.Writer) error {
	keys := make([]uint64, 0, len(m.cells))
	for k := range m.cells {
		keys = append(keys, k)
	}
	sort.Sort(sortutil.Uint64Slice(keys))
	values := make([]int32, len(keys))
	for i, k := range keys {
		values[i] = m.cells[k]
	}
	if err := binary.Write(w, binary.LittleEndian, int64(m.n)); err != nil {
		return errors.Trace(err)
	}
	if err := binary.Write(w, binary.LittleEndian, int64(len(keys))); err != nil {
		return errors.Trace(err)
	}
	if err := binary.Write(w, binary.LittleEndian, keys); err != nil {
		return errors.Trace(err)
	}
	if err := binary.Write(w, binary.LittleEndian, values); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// UnmarshalMatrix reads a matrix written by Marshal.
func UnmarshalMatrix(r io.Reader) (*Matrix, error) {
	var n, nnz int64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, errors.Trace(err)
	}
	if err := binary.Read(r, binary.LittleEndian, &nnz); err != nil {
		return nil, errors.Trace(err)
	}
	if n < 0 || nnz < 0 || nnz > n*n {
		return nil, errors.NotValidf("matrix with %d products and %d cells", n, nnz)
	}
	keys := make([]uint64, nnz)
	if err := binary.Read(r, binary.LittleEndian, keys); err != nil {
		return nil, errors.Trace(err)
	}
	values := make([]int32, nnz)
	if err := binary.Read(r, binary.LittleEndian, values); err != nil {
		return nil, errors.Trace(err)
	}
	m := NewMatrix(int(n))
	for i, k := range keys {
		row, col := int32(k>>32), int32(uint32(k))
		if row < 0 || row > col || int64(col) >= n {
			return nil, errors.NotValidf("matrix cell (%d, %d)", row, col)
		}
		m.add(row, col, values[i])
	}
	return m, nil
}
