package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kevinaaaquil/writeups/apperr"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil))
	assert.ErrorIs(t, translate(mongo.ErrNoDocuments), apperr.ErrNotFound)
	assert.ErrorIs(t, translate(fmt.Errorf("find: %w", context.DeadlineExceeded)), apperr.ErrTimeout)
	assert.ErrorIs(t, translate(mongo.ErrClientDisconnected), apperr.ErrUnavailable)

	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key"}}}
	assert.ErrorIs(t, translate(dup), apperr.ErrConflict)

	plain := errors.New("boom")
	assert.Equal(t, plain, translate(plain))
}

func TestNotFoundNamesEntity(t *testing.T) {
	err := notFound(mongo.ErrNoDocuments, "book")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, "book not found", err.Error())
}
