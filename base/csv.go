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

	"github.com/juju/errors"
)

// ErrStop ends ReadLines early without an error.
var ErrStop = errors.New("stop reading")

// ValidateId validates user/product id. Id cannot be empty and contain [/].
func ValidateId(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.NotValidf("empty id")
	} else if strings.Contains(text, "/") {
		return errors.NotValidf("id %q containing `/`", text)
	}
	return nil
}

// ReadLines splits every record of a delimited file into fields. A quoted field
// may contain the separator, doubled quotes and line breaks. The handler gets the
// zero-based record number. Returning ErrStop from the handler ends reading
// without an error.
func ReadLines(sc *bufio.Scanner, sep rune, handler func(int, []string) error) error {
	var (
		record int
		fields []string
		field  strings.Builder
		quoted bool
	)
	for sc.Scan() {
		line := []rune(sc.Text())
		if quoted {
			field.WriteString("\r\n")
		}
		for i := 0; i < len(line); i++ {
			switch {
			case line[i] == '"' && !quoted:
				quoted = true
			case line[i] == '"' && i+1 < len(line) && line[i+1] == '"':
				i++
				field.WriteRune('"')
			case line[i] == '"':
				quoted = false
			case line[i] == sep && !quoted:
				fields = append(fields, field.String())
				field.Reset()
			default:
				field.WriteRune(line[i])
			}
		}
		if quoted {
			// record continues on the next line
			continue
		}
		fields = append(fields, field.String())
		field.Reset()
		if err := handler(record, fields); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
		fields = nil
		record++
	}
	if err := sc.Err(); err != nil {
		return errors.Trace(err)
	}
	if quoted {
		return errors.NotValidf("unterminated quote in record %d", record)
	}
	return nil
}
