package db

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultDatabase = "matchvote"

// ConnectToDB connects to the mongo deployment in mongoURI and returns the
// database named by the uri path. The returned func disconnects the client.
func ConnectToDB(mongoURI string) (*mongo.Database, func(), error) {
	if mongoURI == "" {
		return nil, nil, errors.New("mongodb uri is empty")
	}

	uri, err := url.Parse(mongoURI)
	if err != nil {
		return nil, nil, fmt.Errorf("error parsing mongodb uri: %w", err)
	}

	dbName := strings.TrimPrefix(uri.Path, "/")
	if dbName == "" {
		dbName = defaultDatabase
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		return nil, nil, fmt.Errorf("error connecting to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		disconnect(client)
		return nil, nil, fmt.Errorf("error pinging mongodb: %w", err)
	}

	return client.Database(dbName), func() { disconnect(client) }, nil
}

// CreateTTLIndexForCollection expires documents once their expires_at time
// has passed.
func CreateTTLIndexForCollection(ctx context.Context, db *mongo.Database, collectionName string) error {
	collection := db.Collection(collectionName)

	indexModel := mongo.IndexModel{
		Keys:    bson.M{"expires_at": 1},
		Options: options.Index().SetExpireAfterSeconds(0), // 0: expire at the stored expires_at
	}

	if _, err := collection.Indexes().CreateOne(ctx, indexModel); err != nil {
		return fmt.Errorf("failed to create ttl index on %s: %w", collectionName, err)
	}
	return nil
}

func disconnect(client *mongo.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		log.Warnf("error disconnecting mongodb: %v", err)
	}
}
