package withdrawals

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/joblinker/backend/internal/apperr"
	"github.com/joblinker/backend/internal/config"
	"github.com/joblinker/backend/internal/ledger"
	"github.com/joblinker/backend/internal/models"
	"github.com/joblinker/backend/internal/store"
)

// openTestPool connects to TEST_DATABASE_URL and applies the migrations. The
// test is skipped when the variable is unset.
func openTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := store.Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := store.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

func TestConcurrentWithdrawals_Postgres(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()
	run := store.NewRunner(pool, store.RetryPolicy{Attempts: 4, BaseDelay: 10 * time.Millisecond})
	led := ledger.NewService(ledger.NewRepository(pool), run, config.Grants{})
	svc := NewService(NewRepository(pool), run, led, decimal.NewFromInt(20))

	start := int64(100)
	worker, err := led.CreateUser(ctx, ledger.NewUser{
		Name: "Worker", Email: "worker-" + uuid.NewString() + "@example.com", Role: models.RoleWorker, Coins: &start,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	t.Cleanup(func() {
		pool.Exec(ctx, `DELETE FROM withdrawals WHERE worker_id = $1`, worker.ID)
		pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, worker.ID)
	})

	amounts := []int64{30, 30, 30, 30, 30, 25, 15, 10}
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int64
		failed    int
	)
	for _, amt := range amounts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RequestWithdrawal(ctx, request(amt, worker.ID))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded += amt
			case errors.Is(err, apperr.ErrInsufficientFunds):
				failed++
			default:
				t.Errorf("RequestWithdrawal: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded > start {
		t.Fatalf("withdrew %d coins from a balance of %d", succeeded, start)
	}
	if failed == 0 {
		t.Error("expected some requests to fail with ErrInsufficientFunds")
	}
	if got := balance(t, led, worker.ID); got != start-succeeded {
		t.Errorf("balance = %d, want %d", got, start-succeeded)
	}

	var journal int64
	for e, err := range led.Entries(ctx, worker.ID) {
		if err != nil {
			t.Fatal(err)
		}
		journal += e.Amount
	}
	if journal != start-succeeded {
		t.Errorf("coin entries sum to %d, balance is %d", journal, start-succeeded)
	}
}
