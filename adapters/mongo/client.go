package mongo

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const (
	defaultURI      = "mongodb://localhost:27017"
	defaultDatabase = "eloquentai"
	connectTimeout  = 10 * time.Second
)

// Client owns the driver connection and the application database handle.
// Repositories are constructed from Database rather than holding the client.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

// NewClient connects using MONGODB_URI and MONGODB_DATABASE, verifying the
// primary is reachable before returning.
func NewClient(logger *zap.Logger) (*Client, error) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		uri = defaultURI
	}
	name := os.Getenv("MONGODB_DATABASE")
	if name == "" {
		name = defaultDatabase
	}

	opts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(10).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(connectTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	logger.Info("Connected to MongoDB", zap.String("database", name))

	return &Client{
		client: client,
		db:     client.Database(name),
		logger: logger,
	}, nil
}

// Database returns the handle repositories are built on.
func (c *Client) Database() *mongo.Database {
	return c.db
}

// Close disconnects from the server.
func (c *Client) Close(ctx context.Context) error {
	if err := c.client.Disconnect(ctx); err != nil {
		c.logger.Error("Failed to disconnect from MongoDB", zap.Error(err))
		return err
	}
	c.logger.Info("Disconnected from MongoDB")
	return nil
}
