package store

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type DB struct {
	Client   *mongo.Client
	Database *mongo.Database

	txSupported bool
}

// NewMongoDB connects and pings, retrying every retryEvery until the server
// answers or ctx is cancelled.
func NewMongoDB(ctx context.Context, uri, dbName string, retryEvery time.Duration) (*DB, error) {
	logger := log.With().Str("component", "mongodb").Logger()
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(5*time.Second))
	if err != nil {
		return nil, err
	}
	for attempt := 1; ; attempt++ {
		err = client.Ping(ctx, readpref.Primary())
		if err == nil {
			break
		}
		logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", retryEvery).Msg("mongodb not reachable")
		select {
		case <-ctx.Done():
			_ = client.Disconnect(context.Background())
			return nil, ctx.Err()
		case <-time.After(retryEvery):
		}
	}
	db := &DB{
		Client:   client,
		Database: client.Database(dbName),
	}
	db.txSupported = db.supportsTransactions(ctx)
	logger.Info().Str("database", dbName).Bool("transactions", db.txSupported).Msg("connected to MongoDB")
	return db, nil
}

// supportsTransactions reports whether the deployment is a replica set or sharded cluster.
func (db *DB) supportsTransactions(ctx context.Context) bool {
	var hello bson.M
	if err := db.Database.RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&hello); err != nil {
		return false
	}
	if _, ok := hello["setName"]; ok {
		return true
	}
	return hello["msg"] == "isdbgrid"
}

func (db *DB) Categories() *mongo.Collection {
	return db.Database.Collection("categories")
}

func (db *DB) Subcategories() *mongo.Collection {
	return db.Database.Collection("subcategories")
}

func (db *DB) Writeups() *mongo.Collection {
	return db.Database.Collection("writeups")
}

func (db *DB) Books() *mongo.Collection {
	return db.Database.Collection("books")
}

func (db *DB) Settings() *mongo.Collection {
	return db.Database.Collection("settings")
}

func (db *DB) Users() *mongo.Collection {
	return db.Database.Collection("users")
}

func (db *DB) Admins() *mongo.Collection {
	return db.Database.Collection("admins")
}

// EnsureIndexes creates the unique and lookup indexes the queries rely on.
func (db *DB) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	specs := map[*mongo.Collection][]mongo.IndexModel{
		db.Categories(): {
			{Keys: bson.D{{Key: "slug", Value: 1}}, Options: unique},
		},
		db.Subcategories(): {
			{Keys: bson.D{{Key: "category", Value: 1}, {Key: "slug", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "slug", Value: 1}}},
		},
		db.Writeups(): {
			{Keys: bson.D{{Key: "category", Value: 1}}},
			{Keys: bson.D{{Key: "subcategory", Value: 1}}},
			{Keys: bson.D{{Key: "isPublished", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		db.Books(): {
			{Keys: bson.D{{Key: "readingProgress.user", Value: 1}}},
			{Keys: bson.D{{Key: "todayReads", Value: 1}}},
		},
		db.Users(): {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
		},
		db.Admins(): {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
		},
	}
	for coll, models := range specs {
		if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
			return translate(err)
		}
	}
	return nil
}

// WithTransaction runs fn inside a multi-document transaction when the deployment
// supports one. Otherwise fn runs directly and must order its writes so that a
// partial run leaves no dangling references.
func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !db.txSupported {
		return fn(ctx)
	}
	sess, err := db.Client.StartSession()
	if err != nil {
		return translate(err)
	}
	defer sess.EndSession(ctx)
	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func (db *DB) Ping(ctx context.Context) error {
	return translate(db.Client.Ping(ctx, readpref.Primary()))
}

func (db *DB) Disconnect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return db.Client.Disconnect(ctx)
}
