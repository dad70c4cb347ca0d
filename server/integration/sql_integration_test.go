//go:build testcontainers
// +build testcontainers

package integration

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/indieinfra/mediadrop/config"
	"github.com/indieinfra/mediadrop/storage/content"
	vendor "github.com/indieinfra/mediadrop/storage/objectstore"
	"github.com/indieinfra/mediadrop/workflow"
)

func stringPtr(s string) *string {
	return &s
}

func newPostgresRegistrar(t *testing.T) *content.SQLRegistrar {
	t.Helper()

	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	t.Cleanup(func() {
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	registrar, err := content.NewSQLRegistrar(&config.SQLContentStrategy{
		Driver:      "postgres",
		DSN:         connStr,
		TablePrefix: stringPtr("test"),
	})
	if err != nil {
		t.Fatalf("failed to create postgres registrar: %v", err)
	}
	t.Cleanup(func() { _ = registrar.Close() })

	return registrar
}

func newMySQLRegistrar(t *testing.T) *content.SQLRegistrar {
	t.Helper()

	ctx := context.Background()

	mysqlContainer, err := mysql.Run(ctx,
		"mysql:8.0",
		mysql.WithDatabase("testdb"),
		mysql.WithUsername("testuser"),
		mysql.WithPassword("testpass"),
	)
	if err != nil {
		t.Fatalf("failed to start mysql container: %v", err)
	}

	t.Cleanup(func() {
		if err := mysqlContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate mysql container: %v", err)
		}
	})

	connStr, err := mysqlContainer.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	registrar, err := content.NewSQLRegistrar(&config.SQLContentStrategy{
		Driver:      "mysql",
		DSN:         connStr,
		TablePrefix: stringPtr("test"),
	})
	if err != nil {
		t.Fatalf("failed to create mysql registrar: %v", err)
	}
	t.Cleanup(func() { _ = registrar.Close() })

	return registrar
}

func exerciseRegistrar(t *testing.T, registrar *content.SQLRegistrar) {
	t.Helper()

	h := withToken(newState(t, baseConfig(t), vendor.NoopAdapter{}, registrar))

	view := runUpload(t, h, uploadRequest(t, "interview.wav", "audio/wav", []byte("RIFF....WAVEfmt "), "Interview"))
	if view.State != workflow.Success {
		t.Fatalf("expected success, got %v (%+v)", view.State, view.Context.Error)
	}

	rec := view.Context.Registration
	stored, err := registrar.Get(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("failed to read back record: %v", err)
	}
	if stored.Title != "Interview" || stored.Vendor == nil || stored.Vendor.Vendor != "noop" {
		t.Fatalf("unexpected stored record %+v", stored)
	}
	if !stored.CreatedAt.Equal(rec.CreatedAt) {
		t.Fatalf("created at changed: %v vs %v", stored.CreatedAt, rec.CreatedAt)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/assets/"+rec.ID, nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}

	if _, err := registrar.Get(context.Background(), rec.ID); !errors.Is(err, content.ErrNotFound) {
		t.Fatalf("expected record gone, got %v", err)
	}
	if err := registrar.Delete(context.Background(), rec.ID); !errors.Is(err, content.ErrNotFound) {
		t.Fatalf("expected not found on repeated delete, got %v", err)
	}
}

func TestPostgres_RegisterAndDelete(t *testing.T) {
	exerciseRegistrar(t, newPostgresRegistrar(t))
}

func TestMySQL_RegisterAndDelete(t *testing.T) {
	exerciseRegistrar(t, newMySQLRegistrar(t))
}
