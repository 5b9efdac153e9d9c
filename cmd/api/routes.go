package main

import (
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joblinker/backend/internal/auth"
	"github.com/joblinker/backend/internal/config"
	"github.com/joblinker/backend/internal/execution"
	"github.com/joblinker/backend/internal/ledger"
	"github.com/joblinker/backend/internal/reviews"
	"github.com/joblinker/backend/internal/router"
	"github.com/joblinker/backend/internal/store"
	"github.com/joblinker/backend/internal/submissions"
	"github.com/joblinker/backend/internal/tasks"
	"github.com/joblinker/backend/internal/validate"
	"github.com/joblinker/backend/internal/withdrawals"
)

// buildAPI constructs every repository from the one pool, the services on
// top of them and the HTTP handler. The returned finalizer backs the
// deletion worker.
func buildAPI(
	pool *pgxpool.Pool,
	cfg *config.Config,
	v *validate.Validator,
	enqueue tasks.EnqueueFinalizeTxFunc,
	logger *slog.Logger,
) (http.Handler, execution.TaskFinalizer) {
	run := store.NewRunner(pool, store.RetryPolicy{
		Attempts:  cfg.RetryAttempts,
		BaseDelay: cfg.RetryBaseDelay,
	})

	ledgerSvc := ledger.NewService(ledger.NewRepository(pool), run, cfg.Grants)
	authSvc := auth.NewService(ledgerSvc, cfg.JWTSecret, cfg.TokenTTL)

	subRepo := submissions.NewRepository(pool)
	tasksSvc := tasks.NewService(tasks.NewRepository(pool), run, ledgerSvc, subRepo, enqueue, logger)
	subSvc := submissions.NewService(subRepo, run, tasksSvc, ledgerSvc)
	wdSvc := withdrawals.NewService(withdrawals.NewRepository(pool), run, ledgerSvc, cfg.CoinsPerCashUnit)

	h := router.New(router.Handlers{
		Users:       ledger.NewHandler(ledgerSvc, authSvc, v, logger),
		Auth:        auth.NewHandler(authSvc, v, logger),
		Tasks:       tasks.NewHandler(tasksSvc, v, logger),
		Submissions: submissions.NewHandler(subSvc, ledgerSvc, v, logger),
		Withdrawals: withdrawals.NewHandler(wdSvc, v, logger),
		Reviews:     reviews.NewHandler(reviews.NewRepository(pool), logger),
	}, authSvc, cfg.MaxBodyBytes, logger)

	return h, tasksSvc
}
