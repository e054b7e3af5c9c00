//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of WDIShape.
//
// WDIShape is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// WDIShape is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with WDIShape. If not, see https://www.gnu.org/licenses/.

package writers

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/aaronlmathis/wdishape/core"
)

// MongoWriterError represents an error that occurred while writing to MongoDB.
type MongoWriterError struct {
	Op         string // Operation that failed (e.g., "connect", "bulk_write")
	Collection string // Collection being written
	Err        error  // Underlying error
}

func (e *MongoWriterError) Error() string {
	if e.Collection != "" {
		return fmt.Sprintf("mongo writer %s [%s]: %v", e.Op, e.Collection, e.Err)
	}
	return fmt.Sprintf("mongo writer %s: %v", e.Op, e.Err)
}

func (e *MongoWriterError) Unwrap() error {
	return e.Err
}

// MongoWriterStats holds statistics about the MongoDB writer.
type MongoWriterStats struct {
	DocumentsWritten int64
	Upserted         int64
	Modified         int64
	WriteDuration    time.Duration
	LastWriteTime    time.Time
}

// MongoWriterOptions configures the MongoDB writer.
type MongoWriterOptions struct {
	URI        string        // MongoDB connection URI
	Database   string        // Database name
	Collection string        // Collection name
	Shape      core.Shape    // Document layout
	Timeout    time.Duration // Connect and write timeout
	Client     *mongo.Client // Pre-connected client; not disconnected on Close
}

// WriterOptionMongo is a functional option for MongoWriter.
type WriterOptionMongo func(*MongoWriterOptions)

// WithMongoURI sets the connection URI.
func WithMongoURI(uri string) WriterOptionMongo {
	return func(opts *MongoWriterOptions) {
		opts.URI = uri
	}
}

// WithMongoDatabase sets the database.
func WithMongoDatabase(database string) WriterOptionMongo {
	return func(opts *MongoWriterOptions) {
		opts.Database = database
	}
}

// WithMongoCollection sets the collection.
func WithMongoCollection(collection string) WriterOptionMongo {
	return func(opts *MongoWriterOptions) {
		opts.Collection = collection
	}
}

// WithMongoShape selects the document layout.
func WithMongoShape(shape core.Shape) WriterOptionMongo {
	return func(opts *MongoWriterOptions) {
		opts.Shape = shape
	}
}

// WithMongoTimeout sets the connect and write timeout.
func WithMongoTimeout(timeout time.Duration) WriterOptionMongo {
	return func(opts *MongoWriterOptions) {
		opts.Timeout = timeout
	}
}

// WithMongoClient reuses an existing client.
func WithMongoClient(client *mongo.Client) WriterOptionMongo {
	return func(opts *MongoWriterOptions) {
		opts.Client = client
	}
}

// MongoWriter upserts one document per country, keyed by country code:
//
//	nested: {_id: "USA", indicators: {"gdp": ["..."]}}
//	flat:   {_id: "USA", values: ["..."]}
type MongoWriter struct {
	client     *mongo.Client
	collection *mongo.Collection
	ownsClient bool
	opts       MongoWriterOptions
	stats      MongoWriterStats
}

var _ core.DataSink = (*MongoWriter)(nil)

// NewMongoWriter connects to MongoDB and verifies the server is reachable.
func NewMongoWriter(ctx context.Context, optFns ...WriterOptionMongo) (*MongoWriter, error) {
	opts := MongoWriterOptions{
		Database:   "wdi",
		Collection: "indicators",
		Shape:      core.ShapeNested,
		Timeout:    30 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Client == nil && opts.URI == "" {
		return nil, &MongoWriterError{Op: "validate", Err: fmt.Errorf("uri is required")}
	}
	if opts.Database == "" || opts.Collection == "" {
		return nil, &MongoWriterError{Op: "validate", Err: fmt.Errorf("database and collection are required")}
	}

	mw := &MongoWriter{opts: opts, client: opts.Client}

	if mw.client == nil {
		connectCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
		defer cancel()

		client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(opts.URI))
		if err != nil {
			return nil, &MongoWriterError{Op: "connect", Err: err}
		}
		if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
			client.Disconnect(context.Background())
			return nil, &MongoWriterError{Op: "ping", Err: err}
		}
		mw.client = client
		mw.ownsClient = true
	}

	mw.collection = mw.client.Database(opts.Database).Collection(opts.Collection)
	return mw, nil
}

// MongoDocuments builds the per-country documents for table, sorted by country code.
func MongoDocuments(table core.Table, shape core.Shape) ([]bson.D, error) {
	if shape == core.ShapeFlat {
		flat, err := table.Flatten()
		if err != nil {
			return nil, err
		}
		docs := make([]bson.D, 0, len(flat))
		for _, country := range table.Countries() {
			docs = append(docs, bson.D{{Key: "_id", Value: country}, {Key: "values", Value: flat[country]}})
		}
		return docs, nil
	}

	docs := make([]bson.D, 0, len(table))
	for _, country := range table.Countries() {
		indicators := bson.D{}
		for _, label := range table.Labels(country) {
			indicators = append(indicators, bson.E{Key: label, Value: table[country][label]})
		}
		docs = append(docs, bson.D{{Key: "_id", Value: country}, {Key: "indicators", Value: indicators}})
	}
	return docs, nil
}

// Write replaces every country document in one unordered bulk write.
func (m *MongoWriter) Write(ctx context.Context, table core.Table) error {
	start := time.Now()

	docs, err := MongoDocuments(table, m.opts.Shape)
	if err != nil {
		return &MongoWriterError{Op: "shape", Collection: m.opts.Collection, Err: err}
	}
	if len(docs) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, 0, len(docs))
	for _, doc := range docs {
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.D{{Key: "_id", Value: doc[0].Value}}).
			SetReplacement(doc).
			SetUpsert(true))
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.Timeout)
	defer cancel()

	result, err := m.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return &MongoWriterError{Op: "bulk_write", Collection: m.opts.Collection, Err: err}
	}

	m.stats.DocumentsWritten += int64(len(docs))
	m.stats.Upserted += result.UpsertedCount
	m.stats.Modified += result.ModifiedCount
	m.stats.WriteDuration += time.Since(start)
	m.stats.LastWriteTime = time.Now()
	return nil
}

// Flush is a no-op; Write is acknowledged before returning.
func (m *MongoWriter) Flush() error {
	return nil
}

// Close disconnects the client if the writer created it.
func (m *MongoWriter) Close() error {
	if m.ownsClient && m.client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), m.opts.Timeout)
		defer cancel()
		return m.client.Disconnect(ctx)
	}
	return nil
}

// Stats returns the writer statistics.
func (m *MongoWriter) Stats() MongoWriterStats {
	return m.stats
}
