package content

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	cloudflare "github.com/cloudflare/cloudflare-go/v6"
	cfd1 "github.com/cloudflare/cloudflare-go/v6/d1"
	"github.com/cloudflare/cloudflare-go/v6/option"

	"github.com/indieinfra/mediadrop/config"
	storageutil "github.com/indieinfra/mediadrop/storage/util"
)

// D1Registrar stores asset records in Cloudflare D1 via the HTTP API.
// It mirrors the schema of SQLRegistrar to keep parity across backends.
type D1Registrar struct {
	cfg    *config.D1ContentStrategy
	client *cloudflare.Client
	table  string
	now    func() time.Time
}

// NewD1Registrar builds a registrar and ensures the schema exists.
func NewD1Registrar(cfg *config.D1ContentStrategy) (*D1Registrar, error) {
	return newD1RegistrarWithClient(cfg, nil)
}

// newD1RegistrarWithClient lets tests point the Cloudflare client at a fake server.
func newD1RegistrarWithClient(cfg *config.D1ContentStrategy, httpClient *http.Client) (*D1Registrar, error) {
	if cfg == nil {
		return nil, fmt.Errorf("d1 content config is nil")
	}

	store := &D1Registrar{
		cfg:    cfg,
		client: buildD1Client(cfg, httpClient),
		table:  storageutil.AssetTableName(cfg.TablePrefix),
		now:    time.Now,
	}

	if err := store.initSchema(context.Background()); err != nil {
		return nil, err
	}

	return store, nil
}

// buildD1Client creates a Cloudflare client configured with API token and optional custom endpoint.
func buildD1Client(cfg *config.D1ContentStrategy, httpClient *http.Client) *cloudflare.Client {
	opts := []option.RequestOption{option.WithAPIToken(strings.TrimSpace(cfg.APIToken))}

	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	if base := strings.TrimSpace(cfg.Endpoint); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(base, "/")))
	}

	return cloudflare.NewClient(opts...)
}

// initSchema doubles as a connectivity and credentials check.
func (r *D1Registrar) initSchema(ctx context.Context) error {
	if _, err := r.executeQuery(ctx, r.schemaQuery(), nil); err != nil {
		return fmt.Errorf("d1 initialization failed (check account_id, database_id, and api_token): %w", err)
	}
	return nil
}

func (r *D1Registrar) schemaQuery() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
id TEXT PRIMARY KEY,
url TEXT NOT NULL,
doc TEXT NOT NULL,
created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`, r.table)
}

func (r *D1Registrar) insertQuery() string {
	return fmt.Sprintf("INSERT INTO %s (id, url, doc, created_at) VALUES (?, ?, ?, ?)", r.table)
}

func (r *D1Registrar) selectQuery() string {
	return fmt.Sprintf("SELECT doc FROM %s WHERE id = ? LIMIT 1", r.table)
}

// deleteQuery returns the removed id so a miss can be told apart from a hit.
func (r *D1Registrar) deleteQuery() string {
	return fmt.Sprintf("DELETE FROM %s WHERE id = ? RETURNING id", r.table)
}

func (r *D1Registrar) Register(ctx context.Context, reg *Registration) (*Record, error) {
	rec, err := NewRecord(reg, r.now())
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}

	params := []any{rec.ID, rec.Vendor.URL, string(payload), rec.CreatedAt.Format(time.RFC3339Nano)}
	if _, err := r.executeQuery(ctx, r.insertQuery(), params); err != nil {
		return nil, fmt.Errorf("failed to insert asset: %w", err)
	}

	return rec, nil
}

func (r *D1Registrar) Get(ctx context.Context, id string) (*Record, error) {
	rows, err := r.executeQuery(ctx, r.selectQuery(), []any{id})
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, ErrNotFound
	}

	raw, ok := rows[0]["doc"].(string)
	if !ok || raw == "" {
		return nil, fmt.Errorf("doc column missing or not a string")
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, err
	}

	return &rec, nil
}

func (r *D1Registrar) Delete(ctx context.Context, id string) error {
	rows, err := r.executeQuery(ctx, r.deleteQuery(), []any{id})
	if err != nil {
		return err
	}

	if len(rows) == 0 {
		return ErrNotFound
	}

	return nil
}

// executeQuery returns nil rows (no error) when the query succeeds but produces no results.
func (r *D1Registrar) executeQuery(ctx context.Context, sql string, params []any) ([]map[string]any, error) {
	body := cfd1.DatabaseQueryParamsBodyD1SingleQuery{Sql: cloudflare.F(sql)}
	if len(params) > 0 {
		body.Params = cloudflare.F(convertParams(params))
	}

	resp, err := r.client.D1.Database.Query(ctx, r.cfg.DatabaseID, cfd1.DatabaseQueryParams{
		AccountID: cloudflare.F(strings.TrimSpace(r.cfg.AccountID)),
		Body:      body,
	})
	if err != nil {
		return nil, err
	}

	if resp == nil || len(resp.Result) == 0 {
		return nil, nil
	}

	result := resp.Result[0]
	if !result.Success {
		return nil, fmt.Errorf("d1 query execution failed")
	}

	rows := make([]map[string]any, 0, len(result.Results))
	for _, row := range result.Results {
		m, ok := row.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unexpected row type %T", row)
		}
		rows = append(rows, m)
	}

	return rows, nil
}

// convertParams converts query parameters to D1's string-based parameter format.
func convertParams(params []any) []string {
	out := make([]string, 0, len(params))
	for _, p := range params {
		switch v := p.(type) {
		case bool:
			if v {
				out = append(out, "1")
			} else {
				out = append(out, "0")
			}
		default:
			out = append(out, fmt.Sprint(p))
		}
	}

	return out
}
