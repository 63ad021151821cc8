package store

import (
	"context"

	"github.com/kevinaaaquil/writeups/apperr"
	"github.com/kevinaaaquil/writeups/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (db *DB) InsertCategory(ctx context.Context, c *models.Category) error {
	res, err := db.Categories().InsertOne(ctx, c)
	if err != nil {
		return translate(err)
	}
	c.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (db *DB) CategoryByID(ctx context.Context, id primitive.ObjectID) (*models.Category, error) {
	var c models.Category
	if err := db.Categories().FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return nil, notFound(err, "category")
	}
	return &c, nil
}

func (db *DB) CategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	var c models.Category
	if err := db.Categories().FindOne(ctx, bson.M{"slug": slug}).Decode(&c); err != nil {
		return nil, notFound(err, "category")
	}
	return &c, nil
}

func (db *DB) ListCategories(ctx context.Context) ([]models.Category, error) {
	cur, err := db.Categories().Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, translate(err)
	}
	defer cur.Close(ctx)
	categories := []models.Category{}
	if err := cur.All(ctx, &categories); err != nil {
		return nil, translate(err)
	}
	return categories, nil
}

// CategoryIDs returns the ids of every stored category.
func (db *DB) CategoryIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	return distinctIDs(ctx, db.Categories(), bson.M{})
}

func (db *DB) UpdateCategory(ctx context.Context, c *models.Category) error {
	res, err := db.Categories().UpdateOne(ctx, bson.M{"_id": c.ID}, bson.M{"$set": bson.M{
		"name":        c.Name,
		"description": c.Description,
		"icon":        c.Icon,
		"slug":        c.Slug,
		"updatedAt":   c.UpdatedAt,
	}})
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("category")
	}
	return nil
}

func (db *DB) DeleteCategory(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := db.Categories().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, translate(err)
	}
	return res.DeletedCount, nil
}

func (db *DB) CountCategories(ctx context.Context) (int64, error) {
	n, err := db.Categories().CountDocuments(ctx, bson.M{})
	return n, translate(err)
}

func distinctIDs(ctx context.Context, coll *mongo.Collection, filter bson.M) ([]primitive.ObjectID, error) {
	vals, err := coll.Distinct(ctx, "_id", filter)
	if err != nil {
		return nil, translate(err)
	}
	ids := make([]primitive.ObjectID, 0, len(vals))
	for _, v := range vals {
		if id, ok := v.(primitive.ObjectID); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
