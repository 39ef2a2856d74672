package mgo

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type Config struct {
	URI         string
	Database    string
	MaxPoolSize uint64
	Timeout     time.Duration
}

var (
	mu     sync.RWMutex
	client *mongo.Client
	dbName string
)

// Connect dials MongoDB and verifies the connection with a ping. Call
// once from main before building the collaborator services.
func Connect(ctx context.Context, cfg Config) error {
	if cfg.URI == "" {
		return errors.New("mongo uri required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	cli, err := mongo.Connect(ctx, opts)
	if err != nil {
		return errors.Wrap(err, "mongo connect")
	}
	if err := cli.Ping(ctx, readpref.Primary()); err != nil {
		return errors.Wrap(err, "mongo ping")
	}

	mu.Lock()
	client = cli
	dbName = cfg.Database
	mu.Unlock()
	return nil
}

// DB returns the configured database handle; nil before Connect.
func DB() *mongo.Database {
	mu.RLock()
	defer mu.RUnlock()
	if client == nil {
		return nil
	}
	return client.Database(dbName)
}

// Close disconnects the client.
func Close(ctx context.Context) error {
	mu.Lock()
	defer mu.Unlock()
	if client == nil {
		return nil
	}
	err := client.Disconnect(ctx)
	client = nil
	return err
}
