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


package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/gorse-io/nextitem/storage/blob"
	"github.com/stretchr/testify/assert"
)

func TestPrintSnapshots(t *testing.T) {
	var buf bytes.Buffer
	modified := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.NoError(t, printSnapshots(&buf, []blob.Info{
		{Name: "baseline.bin", Size: 1024, Modified: modified},
		{Name: "popular.bin", Size: 42, Modified: modified},
	}))
	out := buf.String()
	assert.Contains(t, out, "baseline.bin")
	assert.Contains(t, out, "1024")
	assert.Contains(t, out, "popular.bin")
	assert.Contains(t, out, "2020-01-02 03:04:05")
}
