package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/kevinaaaquil/writeups/apperr"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/x/mongo/driver/topology"
)

// translate maps driver errors onto apperr kinds. Unknown errors pass through.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var selErr topology.ServerSelectionError
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return apperr.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", apperr.ErrConflict, err)
	case errors.As(err, &selErr), errors.Is(err, mongo.ErrClientDisconnected), mongo.IsNetworkError(err):
		return fmt.Errorf("%w: %v", apperr.ErrUnavailable, err)
	case errors.Is(err, context.DeadlineExceeded), mongo.IsTimeout(err):
		return fmt.Errorf("%w: %v", apperr.ErrTimeout, err)
	}
	return err
}

// notFound is translate with the missing entity named.
func notFound(err error, entity string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperr.NotFound(entity)
	}
	return translate(err)
}
