package store

import (
	"errors"

	"github.com/yourorg/featuregen/pkg/types"
)

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = errors.New("record not found")

// Store persists generation and run history. Writes are advisory for
// callers: a failing store never fails a generation or run.
type Store interface {
	SaveGeneration(rec *types.GenerationRecord) error
	GetGeneration(id string) (*types.GenerationRecord, error)
	ListGenerations(limit int) ([]types.GenerationRecord, error)
	DeleteGeneration(id string) error

	SaveRun(rec *types.RunRecord) error
	GetRun(id string) (*types.RunRecord, error)
	ListRuns(limit int) ([]types.RunRecord, error)

	Close() error
}
