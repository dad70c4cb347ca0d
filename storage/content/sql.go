package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/indieinfra/mediadrop/config"
	storageutil "github.com/indieinfra/mediadrop/storage/util"
)

type placeholderStyle int

const (
	placeholderQuestion placeholderStyle = iota
	placeholderDollar
)

type SQLRegistrar struct {
	db          *sql.DB
	table       string
	placeholder placeholderStyle
	now         func() time.Time
}

func NewSQLRegistrar(cfg *config.SQLContentStrategy) (*SQLRegistrar, error) {
	store, err := newSQLRegistrarWithDB(cfg, nil)
	if err != nil {
		return nil, err
	}

	driverName, err := resolveSQLDriverName(cfg.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, err
	}

	store.db = db

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func newSQLRegistrarWithDB(cfg *config.SQLContentStrategy, db *sql.DB) (*SQLRegistrar, error) {
	if cfg == nil {
		return nil, fmt.Errorf("content sql config is nil")
	}

	placeholder, err := detectPlaceholderStyle(cfg.Driver)
	if err != nil {
		return nil, err
	}

	return &SQLRegistrar{
		db:          db,
		table:       storageutil.AssetTableName(cfg.TablePrefix),
		placeholder: placeholder,
		now:         time.Now,
	}, nil
}

func detectPlaceholderStyle(driver string) (placeholderStyle, error) {
	driverName, err := resolveSQLDriverName(driver)
	if err != nil {
		return placeholderQuestion, err
	}

	if driverName == "pgx" {
		return placeholderDollar, nil
	}

	return placeholderQuestion, nil
}

func resolveSQLDriverName(driver string) (string, error) {
	switch strings.ToLower(driver) {
	case "postgres":
		return "pgx", nil
	case "mysql":
		return "mysql", nil
	default:
		return "", fmt.Errorf("unsupported sql driver %q", driver)
	}
}

func (r *SQLRegistrar) initSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, r.schemaQuery())
	return err
}

func (r *SQLRegistrar) schemaQuery() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
id VARCHAR(64) PRIMARY KEY,
url TEXT NOT NULL,
doc TEXT NOT NULL,
created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`, r.table)
}

func (r *SQLRegistrar) Register(ctx context.Context, reg *Registration) (*Record, error) {
	rec, err := NewRecord(reg, r.now())
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}

	if _, err := r.db.ExecContext(ctx, r.insertQuery(), rec.ID, rec.Vendor.URL, string(payload), rec.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert asset: %w", err)
	}

	return rec, nil
}

func (r *SQLRegistrar) Get(ctx context.Context, id string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, r.selectQuery(), id)

	var raw string
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, err
	}

	return &rec, nil
}

func (r *SQLRegistrar) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.deleteQuery(), id)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *SQLRegistrar) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *SQLRegistrar) insertQuery() string {
	return fmt.Sprintf(
		"INSERT INTO %s (id, url, doc, created_at) VALUES (%s, %s, %s, %s)",
		r.table,
		r.placeholderFor(1),
		r.placeholderFor(2),
		r.placeholderFor(3),
		r.placeholderFor(4),
	)
}

func (r *SQLRegistrar) selectQuery() string {
	return fmt.Sprintf("SELECT doc FROM %s WHERE id = %s", r.table, r.placeholderFor(1))
}

func (r *SQLRegistrar) deleteQuery() string {
	return fmt.Sprintf("DELETE FROM %s WHERE id = %s", r.table, r.placeholderFor(1))
}

func (r *SQLRegistrar) placeholderFor(index int) string {
	if r.placeholder == placeholderDollar {
		return fmt.Sprintf("$%d", index)
	}

	return "?"
}
