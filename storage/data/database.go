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
	"strings"
	"time"

	"github.com/gorse-io/nextitem/base/log"
	"github.com/gorse-io/nextitem/storage"
	"github.com/juju/errors"
	_ "github.com/lib/pq"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"
)

const bufSize = 1

// Event types of the interaction log.
const (
	EventView     = "view"
	EventCart     = "cart"
	EventPurchase = "purchase"
)

// Event is a raw row of the interaction log.
type Event struct {
	Id           int64     `gorm:"column:id;primaryKey;autoIncrement" bson:"seq" json:"-"`
	EventTime    time.Time `gorm:"column:event_time" bson:"event_time" json:"event_time"`
	EventType    string    `gorm:"column:event_type;type:varchar(32);index" bson:"event_type" json:"event_type"`
	ProductId    string    `gorm:"column:product_id;type:varchar(256)" bson:"product_id" json:"product_id"`
	CategoryId   string    `gorm:"column:category_id;type:varchar(256)" bson:"category_id" json:"category_id"`
	CategoryCode string    `gorm:"column:category_code;type:varchar(256)" bson:"category_code" json:"category_code"`
	Brand        string    `gorm:"column:brand;type:varchar(256)" bson:"brand" json:"brand"`
	Price        float64   `gorm:"column:price" bson:"price" json:"price"`
	UserId       string    `gorm:"column:user_id;type:varchar(256);index" bson:"user_id" json:"user_id"`
	UserSession  string    `gorm:"column:user_session;type:varchar(256)" bson:"user_session" json:"user_session"`
}

// Database stores the interaction log.
type Database interface {
	Init() error
	Ping() error
	Close() error
	Purge() error
	// BatchInsertEvents appends events to the log. Insert order defines log order.
	BatchInsertEvents(ctx context.Context, events []Event) error
	CountEvents(ctx context.Context) (int, error)
	// GetEventStream reads events in log order by batches.
	GetEventStream(ctx context.Context, batchSize int) (chan []Event, chan error)
}

// Open a connection to a database.
func Open(path, tablePrefix string) (Database, error) {
	var err error
	if strings.HasPrefix(path, storage.MySQLPrefix) {
		name := path[len(storage.MySQLPrefix):]
		// append parameters
		if name, err = storage.AppendMySQLParams(name, map[string]string{
			"sql_mode":  "'ONLY_FULL_GROUP_BY,STRICT_TRANS_TABLES,ERROR_FOR_DIVISION_BY_ZERO,NO_ENGINE_SUBSTITUTION'",
			"parseTime": "true",
		}); err != nil {
			return nil, errors.Trace(err)
		}
		// connect to database
		database := new(SQLDatabase)
		database.driver = MySQL
		database.TablePrefix = storage.TablePrefix(tablePrefix)
		if database.client, err = sql.Open("mysql", name); err != nil {
			return nil, errors.Trace(err)
		}
		database.gormDB, err = gorm.Open(mysql.New(mysql.Config{Conn: database.client}), storage.NewGORMConfig(tablePrefix))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	} else if strings.HasPrefix(path, storage.PostgresPrefix) || strings.HasPrefix(path, storage.PostgreSQLPrefix) {
		database := new(SQLDatabase)
		database.driver = Postgres
		database.TablePrefix = storage.TablePrefix(tablePrefix)
		if database.client, err = sql.Open("postgres", path); err != nil {
			return nil, errors.Trace(err)
		}
		database.gormDB, err = gorm.Open(postgres.New(postgres.Config{Conn: database.client}), storage.NewGORMConfig(tablePrefix))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	} else if strings.HasPrefix(path, storage.MongoPrefix) || strings.HasPrefix(path, storage.MongoSrvPrefix) {
		// connect to database
		database := new(MongoDB)
		opts := options.Client().ApplyURI(path)
		if database.client, err = mongo.Connect(context.Background(), opts); err != nil {
			return nil, errors.Trace(err)
		}
		// parse DSN and extract database name
		if cs, err := connstring.ParseAndValidate(path); err != nil {
			return nil, errors.Trace(err)
		} else {
			database.dbName = cs.Database
			database.TablePrefix = storage.TablePrefix(tablePrefix)
		}
		return database, nil
	} else if strings.HasPrefix(path, storage.SQLitePrefix) {
		// append parameters
		if path, err = storage.AppendURLParams(path, []lo.Tuple2[string, string]{
			{"_pragma", "busy_timeout(10000)"},
			{"_pragma", "journal_mode(wal)"},
		}); err != nil {
			return nil, errors.Trace(err)
		}
		// connect to database
		name := path[len(storage.SQLitePrefix):]
		database := new(SQLDatabase)
		database.driver = SQLite
		database.TablePrefix = storage.TablePrefix(tablePrefix)
		if database.client, err = sql.Open("sqlite", name); err != nil {
			return nil, errors.Trace(err)
		}
		database.gormDB, err = gorm.Open(sqlite.Dialector{Conn: database.client}, storage.NewGORMConfig(tablePrefix))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	}
	return nil, errors.Errorf("Unknown database: %s", log.RedactDBURL(path))
}

// ReadEvents drains the event stream of a database.
func ReadEvents(ctx context.Context, database Database, batchSize int) ([]Event, error) {
	var events []Event
	eventChan, errChan := database.GetEventStream(ctx, batchSize)
	for batch := range eventChan {
		events = append(events, batch...)
	}
	if err := <-errChan; err != nil {
		return nil, errors.Trace(err)
	}
	return events, nil
}

// LoadEvents reads the interaction log from a database URL or a CSV file.
func LoadEvents(ctx context.Context, source, tablePrefix string) ([]Event, error) {
	if !storage.IsDatabaseURL(source) {
		return LoadCSV(source)
	}
	database, err := Open(source, tablePrefix)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Logger().Warn("failed to close database", zap.Error(err))
		}
	}()
	start := time.Now()
	events, err := ReadEvents(ctx, database, 10000)
	if err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Info("load events from database",
		zap.String("source", log.RedactDBURL(source)),
		zap.Int("n_events", len(events)),
		zap.Duration("used_time", time.Since(start)))
	return events, nil
}
