// Package history keeps the results of past analyses.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/CZERTAINLY/Sniffer/internal/model"

	"github.com/oklog/ulid/v2"
)

// DefaultLimit is used by List and Search for non positive limits
const DefaultLimit = 20

// Record is one analysis of one file.
type Record struct {
	ID        string          `json:"id"`
	User      string          `json:"user"`
	FileName  string          `json:"file_name"`
	Model     string          `json:"model,omitempty"`
	State     string          `json:"state"`
	Findings  []model.Finding `json:"findings"`
	CreatedAt time.Time       `json:"created_at"`
}

// Store persists records. Save returns the record as it was stored.
type Store interface {
	Save(ctx context.Context, rec Record) (Record, error)
}

// prepare assigns an ID and creation time if missing.
func prepare(rec Record) Record {
	if rec.ID == "" {
		rec.ID = ulid.Make().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Findings == nil {
		rec.Findings = []model.Finding{}
	}
	return rec
}

// Tee saves a record to all stores. Every store gets the same ID.
func Tee(stores ...Store) Store {
	return tee(stores)
}

type tee []Store

func (t tee) Save(ctx context.Context, rec Record) (Record, error) {
	rec = prepare(rec)
	var errs []error
	for _, s := range t {
		if _, err := s.Save(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return rec, errors.Join(errs...)
}

// Discard is a Store which stores nothing.
var Discard Store = discard{}

type discard struct{}

func (discard) Save(_ context.Context, rec Record) (Record, error) {
	return prepare(rec), nil
}
