package store

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/kevinaaaquil/writeups/apperr"
	"github.com/kevinaaaquil/writeups/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (db *DB) InsertWriteup(ctx context.Context, w *models.Writeup) error {
	if w.Tags == nil {
		w.Tags = []string{}
	}
	if w.ReadBy == nil {
		w.ReadBy = []models.WriteupRead{}
	}
	res, err := db.Writeups().InsertOne(ctx, w)
	if err != nil {
		return translate(err)
	}
	w.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (db *DB) WriteupByID(ctx context.Context, id primitive.ObjectID) (*models.Writeup, error) {
	var w models.Writeup
	if err := db.Writeups().FindOne(ctx, bson.M{"_id": id}).Decode(&w); err != nil {
		return nil, notFound(err, "writeup")
	}
	return &w, nil
}

// ListWriteups returns matches newest first. The read log is not loaded.
func (db *DB) ListWriteups(ctx context.Context, q WriteupQuery) ([]models.Writeup, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetProjection(bson.M{"readBy": 0})
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}
	cur, err := db.Writeups().Find(ctx, q.filter(), opts)
	if err != nil {
		return nil, translate(err)
	}
	defer cur.Close(ctx)
	writeups := []models.Writeup{}
	if err := cur.All(ctx, &writeups); err != nil {
		return nil, translate(err)
	}
	return writeups, nil
}

// SearchWriteups scores every published match, then returns the best limit of
// them ordered by score and then recency.
func (db *DB) SearchWriteups(ctx context.Context, text string, limit int64) ([]models.Writeup, error) {
	pattern := regexp.QuoteMeta(text)
	matches := func(input interface{}) bson.M {
		return bson.M{"$regexMatch": bson.M{
			"input":   bson.M{"$ifNull": bson.A{input, ""}},
			"regex":   pattern,
			"options": "i",
		}}
	}
	weight := func(cond interface{}, w int) bson.M {
		return bson.M{"$cond": bson.A{cond, w, 0}}
	}
	tagHit := bson.M{"$anyElementTrue": bson.A{bson.M{"$map": bson.M{
		"input": bson.M{"$ifNull": bson.A{"$tags", bson.A{}}},
		"as":    "t",
		"in":    matches("$$t"),
	}}}}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: WriteupQuery{PublishedOnly: true, Text: text}.filter()}},
		{{Key: "$addFields", Value: bson.M{"_score": bson.M{"$add": bson.A{
			weight(matches("$title"), scoreTitle),
			weight(tagHit, scoreTag),
			weight(matches("$description"), scoreDescription),
			weight(matches("$content"), scoreContent),
		}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "_score", Value: -1}, {Key: "createdAt", Value: -1}}}},
		{{Key: "$limit", Value: limit}},
		{{Key: "$project", Value: bson.M{"readBy": 0, "_score": 0}}},
	}
	cur, err := db.Writeups().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, translate(err)
	}
	defer cur.Close(ctx)
	writeups := []models.Writeup{}
	if err := cur.All(ctx, &writeups); err != nil {
		return nil, translate(err)
	}
	return writeups, nil
}

// UpdateWriteup stores the editable fields of w. Read counters are left untouched.
func (db *DB) UpdateWriteup(ctx context.Context, w *models.Writeup) error {
	set := bson.M{
		"title":       w.Title,
		"description": w.Description,
		"content":     w.Content,
		"category":    w.Category,
		"difficulty":  w.Difficulty,
		"platform":    w.Platform,
		"platformUrl": w.PlatformURL,
		"bounty":      w.Bounty,
		"tags":        w.Tags,
		"isPublished": w.IsPublished,
		"isFeatured":  w.IsFeatured,
		"updatedAt":   w.UpdatedAt,
	}
	update := bson.M{"$set": set}
	if w.Subcategory != nil {
		set["subcategory"] = *w.Subcategory
	} else {
		update["$unset"] = bson.M{"subcategory": ""}
	}
	res, err := db.Writeups().UpdateOne(ctx, bson.M{"_id": w.ID}, update)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("writeup")
	}
	return nil
}

func (db *DB) DeleteWriteup(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := db.Writeups().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, translate(err)
	}
	return res.DeletedCount, nil
}

// DeleteWriteups removes every writeup matched by q. An unscoped query deletes nothing.
func (db *DB) DeleteWriteups(ctx context.Context, q WriteupQuery) (int64, error) {
	if !q.Scoped() {
		return 0, nil
	}
	res, err := db.Writeups().DeleteMany(ctx, q.filter())
	if err != nil {
		return 0, translate(err)
	}
	return res.DeletedCount, nil
}

// DeleteOrphanWriteups removes writeups whose category is not in categoryIDs or
// whose subcategory is set but not in subcategoryIDs.
func (db *DB) DeleteOrphanWriteups(ctx context.Context, categoryIDs, subcategoryIDs []primitive.ObjectID) (int64, error) {
	res, err := db.Writeups().DeleteMany(ctx, bson.M{"$or": bson.A{
		bson.M{"category": bson.M{"$nin": categoryIDs}},
		bson.M{"subcategory": bson.M{"$type": "objectId", "$nin": subcategoryIDs}},
	}})
	if err != nil {
		return 0, translate(err)
	}
	return res.DeletedCount, nil
}

// RecordWriteupRead adds user to the read set and bumps the counters in one
// conditional update. When the user was already counted it reports the
// unchanged count with counted=false.
func (db *DB) RecordWriteupRead(ctx context.Context, id, user primitive.ObjectID, at time.Time) (reads int, counted bool, err error) {
	var w models.Writeup
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"reads": 1})
	err = db.Writeups().FindOneAndUpdate(ctx,
		bson.M{"_id": id, "readBy.user": bson.M{"$ne": user}},
		bson.M{
			"$push": bson.M{"readBy": models.WriteupRead{User: user, Timestamp: at}},
			"$inc":  bson.M{"reads": 1, "todayReads": 1},
		},
		opts,
	).Decode(&w)
	if err == nil {
		return w.Reads, true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return 0, false, translate(err)
	}
	err = db.Writeups().FindOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(bson.M{"reads": 1})).Decode(&w)
	if err != nil {
		return 0, false, notFound(err, "writeup")
	}
	return w.Reads, false, nil
}

func (db *DB) ResetWriteupTodayReads(ctx context.Context) (int64, error) {
	res, err := db.Writeups().UpdateMany(ctx, bson.M{"todayReads": bson.M{"$gt": 0}}, bson.M{"$set": bson.M{"todayReads": 0}})
	if err != nil {
		return 0, translate(err)
	}
	return res.ModifiedCount, nil
}

func (db *DB) CountWriteups(ctx context.Context) (int64, error) {
	n, err := db.Writeups().CountDocuments(ctx, bson.M{})
	return n, translate(err)
}

// SumWriteupReads totals the reads counter over all writeups.
func (db *DB) SumWriteupReads(ctx context.Context) (int64, error) {
	cur, err := db.Writeups().Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$reads"}}}},
	})
	if err != nil {
		return 0, translate(err)
	}
	defer cur.Close(ctx)
	var out []struct {
		Total int64 `bson:"total"`
	}
	if err := cur.All(ctx, &out); err != nil {
		return 0, translate(err)
	}
	if len(out) == 0 {
		return 0, nil
	}
	return out[0].Total, nil
}
