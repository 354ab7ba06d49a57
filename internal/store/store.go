// Package store defines the local mirror that backs the optimistic sync mode.
package store

import (
	"context"
	"errors"

	"github.com/idilsaglam/todosync/internal/model"
)

// Key is the single logical key the whole list is stored under.
const Key = "todos"

// ErrNoSnapshot is returned by Load when nothing has been mirrored yet.
var ErrNoSnapshot = errors.New("no saved snapshot")

// Mirror holds the last full copy of the list. Every Save overwrites the
// previous snapshot wholesale.
type Mirror interface {
	Load(ctx context.Context) ([]model.Item, error)
	Save(ctx context.Context, items []model.Item) error
	Close() error
}
