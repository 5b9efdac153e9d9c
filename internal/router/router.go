package router

import (
	"log/slog"
	"net/http"

	"github.com/joblinker/backend/internal/auth"
	"github.com/joblinker/backend/internal/ledger"
	"github.com/joblinker/backend/internal/middleware"
	"github.com/joblinker/backend/internal/reviews"
	"github.com/joblinker/backend/internal/submissions"
	"github.com/joblinker/backend/internal/tasks"
	"github.com/joblinker/backend/internal/withdrawals"
)

// Handlers groups the per-component HTTP handlers.
type Handlers struct {
	Users       *ledger.Handler
	Auth        *auth.Handler
	Tasks       *tasks.TaskHandler
	Submissions *submissions.Handler
	Withdrawals *withdrawals.Handler
	Reviews     *reviews.Handler
}

// New returns the API handler. Middleware, outermost first: Recover ->
// Identity -> BodyLimit -> mux.
func New(h Handlers, tokens middleware.TokenValidator, maxBody int64, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", liveness)

	mux.HandleFunc("POST /users", h.Users.CreateUser)
	mux.HandleFunc("GET /users", h.Users.ListUsers)
	mux.HandleFunc("GET /users/workers", h.Users.ListWorkers)
	mux.HandleFunc("GET /users/{email}", h.Users.GetUser)
	mux.HandleFunc("PATCH /users/{id}/role", h.Users.UpdateRole)
	mux.HandleFunc("DELETE /users/{id}", h.Users.DeleteUser)
	mux.HandleFunc("GET /users/{id}/ledger", h.Users.Entries)

	mux.HandleFunc("POST /auth/token", h.Auth.Token)

	mux.HandleFunc("GET /tasks", h.Tasks.ListTasks)
	mux.HandleFunc("POST /tasks", h.Tasks.CreateTask)
	mux.HandleFunc("GET /tasks/{id}", h.Tasks.GetTask)
	mux.HandleFunc("PATCH /tasks/{id}", h.Tasks.UpdateTask)
	mux.HandleFunc("DELETE /tasks/{id}", h.Tasks.DeleteTask)

	mux.HandleFunc("POST /submissions", h.Submissions.Submit)
	mux.HandleFunc("GET /submissions", h.Submissions.List)
	mux.HandleFunc("GET /submissions/{id}", h.Submissions.Get)
	mux.HandleFunc("PATCH /submissions/{id}", h.Submissions.Decide)

	mux.HandleFunc("POST /withdrawals", h.Withdrawals.Request)
	mux.HandleFunc("GET /withdrawals", h.Withdrawals.List)
	mux.HandleFunc("GET /withdrawals/{id}", h.Withdrawals.Get)
	mux.HandleFunc("PATCH /withdrawals/{id}", h.Withdrawals.Decide)

	mux.HandleFunc("GET /reviews", h.Reviews.List)

	return middleware.Chain(mux,
		middleware.Recover(log),
		middleware.Identity(tokens, log),
		middleware.BodyLimit(maxBody, log),
	)
}

func liveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Job Linker server is running"))
}
