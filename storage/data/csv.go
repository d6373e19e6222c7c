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

package data

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/gorse-io/nextitem/base"
	"github.com/gorse-io/nextitem/base/log"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// Columns of the interaction log.
const (
	ColumnEventTime    = "event_time"
	ColumnEventType    = "event_type"
	ColumnProductId    = "product_id"
	ColumnCategoryId   = "category_id"
	ColumnCategoryCode = "category_code"
	ColumnBrand        = "brand"
	ColumnPrice        = "price"
	ColumnUserId       = "user_id"
	ColumnUserSession  = "user_session"
)

var requiredColumns = []string{ColumnUserId, ColumnProductId, ColumnEventType}

// LoadCSV loads events from a comma separated file with a header line.
func LoadCSV(path string) ([]Event, error) {
	start := time.Now()
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	events, err := ParseCSV(file, ',')
	if err != nil {
		return nil, errors.Annotatef(err, "failed to parse %s", path)
	}
	log.Logger().Info("load events from csv",
		zap.String("path", path),
		zap.Int("n_events", len(events)),
		zap.Duration("used_time", time.Since(start)))
	return events, nil
}

// ParseCSV parses events from a reader. The first line names the columns, in any
// order. user_id, product_id and event_type columns are required. Other columns
// are optional.
func ParseCSV(r io.Reader, sep rune) ([]Event, error) {
	var (
		events  []Event
		columns map[string]int
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	err := base.ReadLines(sc, sep, func(record int, fields []string) error {
		if record == 0 {
			columns = make(map[string]int, len(fields))
			for i, name := range fields {
				columns[strings.ToLower(strings.TrimSpace(name))] = i
			}
			for _, name := range requiredColumns {
				if _, ok := columns[name]; !ok {
					return errors.NotValidf("header without column %s", name)
				}
			}
			return nil
		}
		if len(fields) == 1 && strings.TrimSpace(fields[0]) == "" {
			// blank line
			return nil
		}
		event, err := parseEvent(columns, fields)
		if err != nil {
			return errors.Annotatef(err, "record %d", record)
		}
		events = append(events, event)
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	if columns == nil {
		return nil, errors.NotValidf("empty csv without header")
	}
	return events, nil
}

func parseEvent(columns map[string]int, fields []string) (Event, error) {
	get := func(name string) string {
		if i, ok := columns[name]; ok && i < len(fields) {
			return strings.TrimSpace(fields[i])
		}
		return ""
	}
	event := Event{
		EventType:    strings.ToLower(get(ColumnEventType)),
		ProductId:    get(ColumnProductId),
		CategoryId:   get(ColumnCategoryId),
		CategoryCode: get(ColumnCategoryCode),
		Brand:        get(ColumnBrand),
		UserId:       get(ColumnUserId),
		UserSession:  get(ColumnUserSession),
	}
	if s := get(ColumnPrice); s != "" {
		price, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Event{}, errors.NotValidf("price %q", s)
		}
		event.Price = price
	}
	if s := get(ColumnEventTime); s != "" {
		t, err := dateparse.ParseAny(s)
		if err != nil {
			return Event{}, errors.NotValidf("event_time %q", s)
		}
		event.EventTime = t.UTC()
	}
	return event, nil
}
