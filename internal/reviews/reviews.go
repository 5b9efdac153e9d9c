// Package reviews serves the read-only testimonial listing.
package reviews

import (
	"context"
	"iter"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joblinker/backend/internal/httpapi"
	"github.com/joblinker/backend/internal/models"
	"github.com/joblinker/backend/internal/store"
)

type Store interface {
	List(ctx context.Context) iter.Seq2[*models.Review, error]
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

func (r *Repository) List(ctx context.Context) iter.Seq2[*models.Review, error] {
	return func(yield func(*models.Review, error) bool) {
		rows, err := r.pool.Query(ctx, `
			SELECT id, author_name, author_photo, content, rating, created_at
			FROM reviews ORDER BY created_at DESC
		`)
		if err != nil {
			yield(nil, err)
			return
		}
		defer rows.Close()
		for rows.Next() {
			var rv models.Review
			if err := rows.Scan(&rv.ID, &rv.AuthorName, &rv.AuthorPhoto, &rv.Content, &rv.Rating, &rv.CreatedAt); err != nil {
				yield(nil, err)
				return
			}
			if !yield(&rv, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, err)
		}
	}
}

type Handler struct {
	repo Store
	log  *slog.Logger
}

func NewHandler(repo Store, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{repo: repo, log: log}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	list, err := httpapi.Collect(store.Classified(h.repo.List(r.Context())))
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, list)
}
