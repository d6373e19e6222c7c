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

package base

import (
	"bufio"
	"strings"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestValidateId(t *testing.T) {
	assert.NotNil(t, ValidateId(""))
	assert.NotNil(t, ValidateId("/"))
	assert.Nil(t, ValidateId("abc"))
	assert.NotNil(t, ValidateId("   "))
}

func splitLines(t *testing.T, text string) [][]string {
	sc := bufio.NewScanner(strings.NewReader(text))
	lines := make([][]string, 0)
	err := ReadLines(sc, ',', func(_ int, fields []string) error {
		lines = append(lines, fields)
		if fields[0] == "STOP" {
			return ErrStop
		}
		return nil
	})
	assert.NoError(t, err)
	return lines
}

func TestReadLines(t *testing.T) {
	assert.Equal(t, [][]string{{"1", "2", "3"}, {"4", "5", "6"}},
		splitLines(t, "1,2,3\r\n4,5,6\r\n"))
	assert.Equal(t, [][]string{{"1,2", "3,4", "5,6"}, {"2,3", "4,6", "6,9"}},
		splitLines(t, "\"1,2\",\"3,4\",\"5,6\"\r\n\"2,3\",\"4,6\",\"6,9\""))
	assert.Equal(t, [][]string{{"\"1,2\",\"3,4\",\"5,6\""}, {"\"2,3\",\"4,6\",\"6,9\""}},
		splitLines(t, "\"\"\"1,2\"\",\"\"3,4\"\",\"\"5,6\"\"\"\r\n\"\"\"2,3\"\",\"\"4,6\"\",\"\"6,9\"\"\""))
	assert.Equal(t, [][]string{{"1\r\n2", "3\r\n4", "5\r\n6"}, {"2\r\n3", "4\r\n6", "6\r\n9"}},
		splitLines(t, "\"1\r\n2\",\"3\r\n4\",\"5\r\n6\"\r\n\"2\r\n3\",\"4\r\n6\",\"6\r\n9\""))
	assert.Equal(t, [][]string{{"1", "2", "3"}, {"4", "5", "6"}, {"STOP"}},
		splitLines(t, "1,2,3\r\n4,5,6\r\nSTOP\r\n7,8,9"))
}

func TestReadLinesRecordNumber(t *testing.T) {
	sc := bufio.NewScanner(strings.NewReader("a,\"b\nc\"\nd,e\n"))
	var records []int
	err := ReadLines(sc, ',', func(record int, _ []string) error {
		records = append(records, record)
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, []int{0, 1}, records)
}

func TestReadLinesSemicolon(t *testing.T) {
	sc := bufio.NewScanner(strings.NewReader("U-1;P-1;view\nU-2;\"P;2\";purchase\n"))
	var lines [][]string
	err := ReadLines(sc, ';', func(_ int, fields []string) error {
		lines = append(lines, fields)
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, [][]string{{"U-1", "P-1", "view"}, {"U-2", "P;2", "purchase"}}, lines)
}

func TestReadLinesError(t *testing.T) {
	sc := bufio.NewScanner(strings.NewReader("a,b\n\"c,d\n"))
	err := ReadLines(sc, ',', func(int, []string) error { return nil })
	assert.True(t, errors.Is(err, errors.NotValid))

	sc = bufio.NewScanner(strings.NewReader("a,b\nc,d\n"))
	err = ReadLines(sc, ',', func(record int, _ []string) error {
		if record == 1 {
			return errors.NotFoundf("record %d", record)
		}
		return nil
	})
	assert.True(t, errors.Is(err, errors.NotFound))
}
