package store

import (
	"context"

	"github.com/kevinaaaquil/writeups/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func (db *DB) CountAdmins(ctx context.Context) (int64, error) {
	n, err := db.Admins().CountDocuments(ctx, bson.M{})
	return n, translate(err)
}

// AdminByEmail returns nil, nil when no admin has that email.
func (db *DB) AdminByEmail(ctx context.Context, email string) (*models.Admin, error) {
	var a models.Admin
	err := db.Admins().FindOne(ctx, bson.M{"email": email}).Decode(&a)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (db *DB) AdminByID(ctx context.Context, id primitive.ObjectID) (*models.Admin, error) {
	var a models.Admin
	if err := db.Admins().FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		return nil, notFound(err, "admin")
	}
	return &a, nil
}

func (db *DB) InsertAdmin(ctx context.Context, a *models.Admin) error {
	res, err := db.Admins().InsertOne(ctx, a)
	if err != nil {
		return translate(err)
	}
	a.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}
