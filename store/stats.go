package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func (db *DB) CountUsersCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	n, err := db.Users().CountDocuments(ctx, bson.M{"createdAt": bson.M{"$gte": since}})
	return n, translate(err)
}

func (db *DB) CountUsersActiveSince(ctx context.Context, since time.Time) (int64, error) {
	n, err := db.Users().CountDocuments(ctx, bson.M{"lastLogin": bson.M{"$gte": since}})
	return n, translate(err)
}

// UsersPerDay buckets users by the UTC day of field (createdAt or lastLogin) since the given time.
func (db *DB) UsersPerDay(ctx context.Context, field string, since time.Time) ([]DayCount, error) {
	cur, err := db.Users().Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{field: bson.M{"$gte": since}}}},
		{{Key: "$group", Value: bson.M{
			"_id":   bson.M{"$dateToString": bson.M{"format": "%Y-%m-%d", "date": "$" + field}},
			"count": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	})
	if err != nil {
		return nil, translate(err)
	}
	defer cur.Close(ctx)
	out := []DayCount{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, translate(err)
	}
	return out, nil
}
