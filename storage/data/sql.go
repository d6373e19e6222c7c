// Copyright 2020 gorse Project Authors
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
	"context"
	"database/sql"

	"github.com/gorse-io/nextitem/storage"
	"github.com/juju/errors"
	"gorm.io/gorm"
)

type SQLDriver int

const (
	MySQL SQLDriver = iota
	Postgres
	SQLite
)

// SQLDatabase stores the interaction log in MySQL, Postgres or SQLite.
type SQLDatabase struct {
	storage.TablePrefix
	gormDB *gorm.DB
	client *sql.DB
	driver SQLDriver
}

// Init creates the events table.
func (d *SQLDatabase) Init() error {
	tx := d.gormDB
	if d.driver == MySQL {
		tx = tx.Set("gorm:table_options", "ENGINE=InnoDB")
	}
	if err := tx.AutoMigrate(&Event{}); err != nil {
		return errors.Trace(err)
	}
	return nil
}

func (d *SQLDatabase) Ping() error {
	return d.client.Ping()
}

// Close the connection.
func (d *SQLDatabase) Close() error {
	return d.client.Close()
}

// Purge deletes all events.
func (d *SQLDatabase) Purge() error {
	if err := d.gormDB.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Event{}).Error; err != nil {
		return errors.Trace(err)
	}
	return nil
}

func (d *SQLDatabase) BatchInsertEvents(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([]Event, len(events))
	copy(rows, events)
	for i := range rows {
		rows[i].Id = 0
	}
	if err := d.gormDB.WithContext(ctx).Create(&rows).Error; err != nil {
		return errors.Trace(err)
	}
	return nil
}

func (d *SQLDatabase) CountEvents(ctx context.Context) (int, error) {
	var count int64
	if err := d.gormDB.WithContext(ctx).Model(&Event{}).Count(&count).Error; err != nil {
		return 0, errors.Trace(err)
	}
	return int(count), nil
}

// GetEventStream reads events by stream.
func (d *SQLDatabase) GetEventStream(ctx context.Context, batchSize int) (chan []Event, chan error) {
	eventChan := make(chan []Event, bufSize)
	errChan := make(chan error, 1)
	go func() {
		defer close(eventChan)
		defer close(errChan)
		// send query
		result, err := d.gormDB.WithContext(ctx).Model(&Event{}).Order("id").Rows()
		if err != nil {
			errChan <- errors.Trace(err)
			return
		}
		// fetch result
		events := make([]Event, 0, batchSize)
		defer result.Close()
		for result.Next() {
			var event Event
			if err = d.gormDB.ScanRows(result, &event); err != nil {
				errChan <- errors.Trace(err)
				return
			}
			events = append(events, event)
			if len(events) == batchSize {
				select {
				case eventChan <- events:
				case <-ctx.Done():
					errChan <- errors.Trace(ctx.Err())
					return
				}
				events = make([]Event, 0, batchSize)
			}
		}
		if err = result.Err(); err != nil {
			errChan <- errors.Trace(err)
			return
		}
		if len(events) > 0 {
			eventChan <- events
		}
		errChan <- nil
	}()
	return eventChan, errChan
}
