package store

import (
	"context"
	"time"

	"github.com/kevinaaaquil/writeups/apperr"
	"github.com/kevinaaaquil/writeups/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (db *DB) CountUsers(ctx context.Context) (int64, error) {
	n, err := db.Users().CountDocuments(ctx, bson.M{})
	return n, translate(err)
}

// UserByEmail returns nil, nil when no user has that email.
func (db *DB) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := db.Users().FindOne(ctx, bson.M{"email": email}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (db *DB) InsertUser(ctx context.Context, user *models.User) error {
	res, err := db.Users().InsertOne(ctx, user, options.InsertOne())
	if err != nil {
		return translate(err)
	}
	user.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (db *DB) UserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := db.Users().FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, notFound(err, "user")
	}
	return &u, nil
}

func (db *DB) ListUsers(ctx context.Context) ([]models.User, error) {
	cur, err := db.Users().Find(ctx, bson.M{}, options.Find().SetSort(bson.M{"createdAt": -1}))
	if err != nil {
		return nil, translate(err)
	}
	defer cur.Close(ctx)
	users := []models.User{}
	if err := cur.All(ctx, &users); err != nil {
		return nil, translate(err)
	}
	return users, nil
}

// SetUserActive flips the account flag and returns the updated user.
func (db *DB) SetUserActive(ctx context.Context, id primitive.ObjectID, active bool) (*models.User, error) {
	var u models.User
	err := db.Users().FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"isActive": active}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&u)
	if err != nil {
		return nil, notFound(err, "user")
	}
	return &u, nil
}

func (db *DB) TouchLastLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := db.Users().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"lastLogin": at}})
	return translate(err)
}

// UpdateUserProfile stores the username, email and profile of u. A taken email
// surfaces as apperr.ErrConflict through the unique index.
func (db *DB) UpdateUserProfile(ctx context.Context, u *models.User) error {
	res, err := db.Users().UpdateOne(ctx, bson.M{"_id": u.ID}, bson.M{"$set": bson.M{
		"username": u.Username,
		"email":    u.Email,
		"profile":  u.Profile,
	}})
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("user")
	}
	return nil
}

func (db *DB) SetUserPassword(ctx context.Context, id primitive.ObjectID, hash string) error {
	res, err := db.Users().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"password": hash}})
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("user")
	}
	return nil
}

// ToggleUserActive flips isActive in a single pipeline update and returns the result.
func (db *DB) ToggleUserActive(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	err := db.Users().FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.A{bson.M{"$set": bson.M{"isActive": bson.M{"$not": bson.A{"$isActive"}}}}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&u)
	if err != nil {
		return nil, notFound(err, "user")
	}
	return &u, nil
}
