package memstore

import (
	"context"
	"iter"

	"github.com/google/uuid"

	"github.com/joblinker/backend/internal/models"
)

// Reviews implements reviews.Store.
type Reviews struct{ db *DB }

func (db *DB) Reviews() *Reviews { return &Reviews{db: db} }

// Add seeds a review. Reviews have no write path in the service.
func (r *Reviews) Add(rv models.Review) models.Review {
	r.db.locked(func(st *state) {
		if rv.ID == uuid.Nil {
			rv.ID = uuid.New()
		}
		rv.CreatedAt = r.db.now()
		st.reviews = append(st.reviews, rv)
	})
	return rv
}

func (r *Reviews) List(ctx context.Context) iter.Seq2[*models.Review, error] {
	return collect(r.db, func(st *state) []models.Review {
		out := append([]models.Review(nil), st.reviews...)
		newestFirst(out, func(rv *models.Review) int64 { return rv.CreatedAt.UnixNano() })
		return out
	})
}
