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

	"github.com/gorse-io/nextitem/storage"
	"github.com/juju/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDB is the data storage based on MongoDB.
type MongoDB struct {
	storage.TablePrefix
	client *mongo.Client
	dbName string
}

// Init collections and indices in MongoDB.
func (db *MongoDB) Init() error {
	ctx := context.Background()
	d := db.client.Database(db.dbName)
	// list collections
	var hasEvents bool
	collections, err := d.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return errors.Trace(err)
	}
	for _, collectionName := range collections {
		if collectionName == db.EventsTable() {
			hasEvents = true
		}
	}
	// create collections
	if !hasEvents {
		if err = d.CreateCollection(ctx, db.EventsTable()); err != nil {
			return errors.Trace(err)
		}
	}
	// create index
	_, err = d.Collection(db.EventsTable()).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.M{"seq": 1},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return errors.Trace(err)
	}
	_, err = d.Collection(db.EventsTable()).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.M{"user_id": 1},
	})
	return errors.Trace(err)
}

func (db *MongoDB) Ping() error {
	return db.client.Ping(context.Background(), nil)
}

// Close connection.
func (db *MongoDB) Close() error {
	return db.client.Disconnect(context.Background())
}

// Purge deletes all events.
func (db *MongoDB) Purge() error {
	_, err := db.client.Database(db.dbName).Collection(db.EventsTable()).DeleteMany(context.Background(), bson.M{})
	return errors.Trace(err)
}

// BatchInsertEvents appends events with sequence numbers following the last stored event.
func (db *MongoDB) BatchInsertEvents(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	c := db.client.Database(db.dbName).Collection(db.EventsTable())
	// find the last sequence number
	var last Event
	err := c.FindOne(ctx, bson.M{}, options.FindOne().SetSort(bson.M{"seq": -1})).Decode(&last)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return errors.Trace(err)
	}
	docs := make([]any, len(events))
	for i, event := range events {
		event.Id = last.Id + int64(i) + 1
		docs[i] = event
	}
	_, err = c.InsertMany(ctx, docs)
	return errors.Trace(err)
}

func (db *MongoDB) CountEvents(ctx context.Context) (int, error) {
	n, err := db.client.Database(db.dbName).Collection(db.EventsTable()).CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, errors.Trace(err)
	}
	return int(n), nil
}

// GetEventStream reads events by stream.
func (db *MongoDB) GetEventStream(ctx context.Context, batchSize int) (chan []Event, chan error) {
	eventChan := make(chan []Event, bufSize)
	errChan := make(chan error, 1)
	go func() {
		defer close(eventChan)
		defer close(errChan)
		c := db.client.Database(db.dbName).Collection(db.EventsTable())
		r, err := c.Find(ctx, bson.M{}, options.Find().SetSort(bson.M{"seq": 1}).SetBatchSize(int32(batchSize)))
		if err != nil {
			errChan <- errors.Trace(err)
			return
		}
		defer r.Close(ctx)
		events := make([]Event, 0, batchSize)
		for r.Next(ctx) {
			var event Event
			if err = r.Decode(&event); err != nil {
				errChan <- errors.Trace(err)
				return
			}
			events = append(events, event)
			if len(events) == batchSize {
				eventChan <- events
				events = make([]Event, 0, batchSize)
			}
		}
		if err = r.Err(); err != nil {
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
