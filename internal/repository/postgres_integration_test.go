//go:build integration

package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/Dan9191/retail-banking/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgresContainer(t *testing.T, ctx context.Context) (testcontainers.Container, string) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:15",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get postgres host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("failed to get postgres port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())
	return container, dsn
}

func openPostgres(t *testing.T, ctx context.Context) (*Repository, *TxManager) {
	t.Helper()
	container, dsn := startPostgresContainer(t, ctx)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	db, dialect, err := Open("postgres", dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := NewRepository(db, dialect)
	if err := repo.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return repo, NewTxManager(db, logger)
}

// disburseLocked is the disbursement write path: lock the application row,
// refuse a second loan and move the state with a compare-and-set.
func disburseLocked(ctx context.Context, repo *Repository, tm *TxManager, id uuid.UUID) error {
	return tm.WithTransaction(ctx, func(ctx context.Context) error {
		locked, err := repo.LockApplication(ctx, id)
		if err != nil {
			return err
		}
		if locked.State() == models.StateDisbursed {
			return models.ErrAlreadyDisbursed
		}
		if err := repo.CreateLoan(ctx, locked.NewLoan()); err != nil {
			return err
		}
		return repo.UpdateApplicationState(ctx, locked.ID, locked.State(), locked.Version, models.StateDisbursed)
	})
}

// raceDisbursements runs callers concurrent disbursements of one application
// and returns how many succeeded and how many hit a state conflict.
func raceDisbursements(t *testing.T, ctx context.Context, repo *Repository, tm *TxManager, id uuid.UUID, callers int) (succeeded, conflicts int) {
	t.Helper()
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		start = make(chan struct{})
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := disburseLocked(ctx, repo, tm, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, models.ErrConcurrentStateConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()
	return succeeded, conflicts
}

// TestPostgres_StateCompareAndSet runs the repository against a real PostgreSQL
// and races two writers on the same application state.
func TestPostgres_StateCompareAndSet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	repo, tm := openPostgres(t, ctx)

	number, err := repo.NextSequence(ctx, SequenceApplication)
	if err != nil || number != "LA000001" {
		t.Fatalf("expected LA000001, got %q (%v)", number, err)
	}

	p := createPartner(t, repo, "Integration")
	app := newStoredApplication(t, repo, p.ID)

	succeeded, conflicts := raceDisbursements(t, ctx, repo, tm, app.ID, 2)
	if succeeded != 1 || conflicts != 1 {
		t.Errorf("expected one winner and one conflict, got %d and %d", succeeded, conflicts)
	}
	n, err := repo.CountLoans(ctx, Eq("originating_application_id", app.ID))
	if err != nil {
		t.Fatalf("failed to count loans: %v", err)
	}
	if n != 1 {
		t.Errorf("expected exactly one loan, got %d", n)
	}
}

// TestPostgres_ConcurrentDisbursement releases many disbursements of several
// applications at once. Under READ COMMITTED only the FOR UPDATE lock keeps
// each application to a single loan.
func TestPostgres_ConcurrentDisbursement(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	repo, tm := openPostgres(t, ctx)

	p := createPartner(t, repo, "Integration")
	apps := []*models.LoanApplication{
		newStoredApplication(t, repo, p.ID),
		newStoredApplication(t, repo, p.ID),
		newStoredApplication(t, repo, p.ID),
	}

	const callers = 8
	var wg sync.WaitGroup
	for _, app := range apps {
		wg.Add(1)
		go func(app *models.LoanApplication) {
			defer wg.Done()
			succeeded, conflicts := raceDisbursements(t, ctx, repo, tm, app.ID, callers)
			if succeeded != 1 || conflicts != callers-1 {
				t.Errorf("application %s: expected one winner and %d conflicts, got %d and %d",
					app.Number, callers-1, succeeded, conflicts)
			}
		}(app)
	}
	wg.Wait()

	for _, app := range apps {
		stored, err := repo.GetApplication(ctx, app.ID)
		if err != nil {
			t.Fatalf("failed to get application: %v", err)
		}
		if stored.State() != models.StateDisbursed {
			t.Errorf("application %s: expected disbursed, got %s", app.Number, stored.State())
		}
	}
	n, err := repo.CountLoans(ctx, Eq("owner_id", p.ID))
	if err != nil {
		t.Fatalf("failed to count loans: %v", err)
	}
	if n != len(apps) {
		t.Errorf("expected %d loans, got %d", len(apps), n)
	}
}
