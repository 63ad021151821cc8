package store

import (
	"context"

	"github.com/kevinaaaquil/writeups/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// LoadSettings creates the settings document from defaults when it does not exist
// and returns the stored value. Fields missing from an older document keep their default.
func (db *DB) LoadSettings(ctx context.Context, defaults models.Settings) (*models.Settings, error) {
	raw, err := bson.Marshal(defaults)
	if err != nil {
		return nil, err
	}
	var onInsert bson.M
	if err := bson.Unmarshal(raw, &onInsert); err != nil {
		return nil, err
	}
	delete(onInsert, "_id")

	_, err = db.Settings().UpdateOne(ctx,
		bson.M{"_id": models.SettingsID},
		bson.M{"$setOnInsert": onInsert},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return nil, translate(err)
	}
	s := defaults.Clone()
	if err := db.Settings().FindOne(ctx, bson.M{"_id": models.SettingsID}).Decode(&s); err != nil {
		return nil, notFound(err, "settings")
	}
	return &s, nil
}

func (db *DB) SaveSettings(ctx context.Context, s *models.Settings) error {
	s.ID = models.SettingsID
	_, err := db.Settings().ReplaceOne(ctx, bson.M{"_id": models.SettingsID}, s, options.Replace().SetUpsert(true))
	return translate(err)
}
