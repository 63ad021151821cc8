package store

import (
	"context"

	"github.com/kevinaaaquil/writeups/apperr"
	"github.com/kevinaaaquil/writeups/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (db *DB) InsertSubcategory(ctx context.Context, s *models.Subcategory) error {
	res, err := db.Subcategories().InsertOne(ctx, s)
	if err != nil {
		return translate(err)
	}
	s.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (db *DB) SubcategoryByID(ctx context.Context, id primitive.ObjectID) (*models.Subcategory, error) {
	var s models.Subcategory
	if err := db.Subcategories().FindOne(ctx, bson.M{"_id": id}).Decode(&s); err != nil {
		return nil, notFound(err, "subcategory")
	}
	return &s, nil
}

// SubcategoryBySlug returns the oldest subcategory with slug, across all categories.
func (db *DB) SubcategoryBySlug(ctx context.Context, slug string) (*models.Subcategory, error) {
	var s models.Subcategory
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	if err := db.Subcategories().FindOne(ctx, bson.M{"slug": slug}, opts).Decode(&s); err != nil {
		return nil, notFound(err, "subcategory")
	}
	return &s, nil
}

// ListSubcategories returns all subcategories, or those of one category when categoryID is set.
func (db *DB) ListSubcategories(ctx context.Context, categoryID *primitive.ObjectID) ([]models.Subcategory, error) {
	filter := bson.M{}
	if categoryID != nil {
		filter["category"] = *categoryID
	}
	cur, err := db.Subcategories().Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, translate(err)
	}
	defer cur.Close(ctx)
	subs := []models.Subcategory{}
	if err := cur.All(ctx, &subs); err != nil {
		return nil, translate(err)
	}
	return subs, nil
}

func (db *DB) SubcategoryIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	return distinctIDs(ctx, db.Subcategories(), bson.M{})
}

func (db *DB) UpdateSubcategory(ctx context.Context, s *models.Subcategory) error {
	res, err := db.Subcategories().UpdateOne(ctx, bson.M{"_id": s.ID}, bson.M{"$set": bson.M{
		"name":        s.Name,
		"description": s.Description,
		"icon":        s.Icon,
		"slug":        s.Slug,
		"updatedAt":   s.UpdatedAt,
	}})
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("subcategory")
	}
	return nil
}

func (db *DB) DeleteSubcategory(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := db.Subcategories().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, translate(err)
	}
	return res.DeletedCount, nil
}

func (db *DB) DeleteSubcategoriesByCategory(ctx context.Context, categoryID primitive.ObjectID) (int64, error) {
	res, err := db.Subcategories().DeleteMany(ctx, bson.M{"category": categoryID})
	if err != nil {
		return 0, translate(err)
	}
	return res.DeletedCount, nil
}

// DeleteSubcategoriesOutside removes subcategories whose category is not in categoryIDs.
func (db *DB) DeleteSubcategoriesOutside(ctx context.Context, categoryIDs []primitive.ObjectID) (int64, error) {
	res, err := db.Subcategories().DeleteMany(ctx, bson.M{"category": bson.M{"$nin": categoryIDs}})
	if err != nil {
		return 0, translate(err)
	}
	return res.DeletedCount, nil
}
