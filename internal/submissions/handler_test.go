package submissions

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/joblinker/backend/internal/models"
)

func TestHandler_List(t *testing.T) {
	f := newFixture(t)
	creator := f.user(t, "c@example.com", models.RoleCreator, 100)
	worker := f.user(t, "w@example.com", models.RoleWorker, 0)
	f.submit(t, f.task(t, creator, 2, 5).ID, worker)
	h := NewHandler(f.svc, f.ledger, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	cases := []struct {
		name   string
		query  string
		status int
		want   int
	}{
		{"by worker", "?workerEmail=w@example.com", http.StatusOK, 1},
		{"by creator", "?creatorEmail=C@example.com", http.StatusOK, 1},
		{"unknown worker", "?workerEmail=nobody@example.com", http.StatusOK, 0},
		{"unknown creator", "?creatorEmail=nobody@example.com", http.StatusOK, 0},
		{"no filter", "", http.StatusBadRequest, -1},
		{"both filters", "?workerEmail=w@example.com&creatorEmail=c@example.com", http.StatusBadRequest, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.List(rec, httptest.NewRequest(http.MethodGet, "/submissions"+tc.query, nil))
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.status, rec.Body)
			}
			if tc.want < 0 {
				return
			}
			var got []models.Submission
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatal(err)
			}
			if got == nil || len(got) != tc.want {
				t.Errorf("got %d submissions (%s), want %d", len(got), rec.Body, tc.want)
			}
		})
	}
}
