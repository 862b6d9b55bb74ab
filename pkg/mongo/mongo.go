// Package mongo mirrors pkg/pg for the document-store backend: a client
// wrapper whose collections resolve to the session of an enclosing
// transaction when one is carried by the context.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

type DB struct {
	client   *mongo.Client
	database *mongo.Database
}

func Connect(ctx context.Context, cfg Config) (*DB, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &DB{client: client, database: client.Database(cfg.Database)}, nil
}

// New wraps an already connected client.
func New(client *mongo.Client, database string) *DB {
	return &DB{client: client, database: client.Database(database)}
}

func (d *DB) Disconnect(ctx context.Context) error {
	return d.client.Disconnect(ctx)
}

func (d *DB) Ping(ctx context.Context) error {
	return d.client.Ping(ctx, readpref.Primary())
}

// Collection returns the named collection. Operations must be issued with the
// ctx handed to a WithinTransaction callback to take part in the transaction.
func (d *DB) Collection(name string) *mongo.Collection {
	return d.database.Collection(name)
}

// WithinTransaction runs fn in a multi-document transaction with snapshot
// reads and majority writes. The driver retries fn on transient transaction
// errors, so fn must not have effects outside the store. A context that is
// already a session context is joined.
func (d *DB) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	session, err := d.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	opts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	}, opts)
	return err
}
