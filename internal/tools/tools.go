// Package tools implements the callable surface the agents use: SQL
// execution, schema metadata lookup and example retrieval. Tool failures are
// returned as errors for the runner to fold back into the model loop as
// text.
package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/jackc/pgx/v5"

	"github.com/galileo0/galileo/internal/log"
	"github.com/galileo0/galileo/internal/rag"
)

// Tool names as the model sees them.
const (
	NameExecuteQuery    = "executeQuery"
	NameGetMetadata     = "getMetadata"
	NameRetrieveQueries = "retrieveQueries"
)

// Execution modes for executeQuery.
const (
	ModeRowCursor = "row_cursor"
	ModeBulkFrame = "bulk_frame"
)

const (
	// DefaultTopK bounds retrieval candidates per call.
	DefaultTopK = 5

	// DefaultScoreThreshold filters weak retrieval matches.
	DefaultScoreThreshold = 0.5

	// NoQuerySentinel is returned verbatim when nothing passes the
	// threshold.
	NoQuerySentinel = "No query retrieved."
)

// ErrEmptyQuery rejects executing a blank SQL string.
var ErrEmptyQuery = errors.New("empty query")

// Querier is the subset of pgxpool.Pool the tools need.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Retriever searches a vector collection. *rag.Store implements it.
type Retriever interface {
	Search(ctx context.Context, name, query string, topK int) ([]rag.Match, error)
}

// Config tunes the retrieval tool.
type Config struct {
	Collection     string
	TopK           int
	ScoreThreshold float64
}

// Handler owns the database pool and retriever behind the tool surface.
type Handler struct {
	db        Querier
	retriever Retriever
	cfg       Config
	logger    log.Logger
}

// New creates a Handler. Zero config fields fall back to defaults.
func New(db Querier, retriever Retriever, cfg Config, logger log.Logger) *Handler {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.ScoreThreshold <= 0 {
		cfg.ScoreThreshold = DefaultScoreThreshold
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Handler{db: db, retriever: retriever, cfg: cfg, logger: logger}
}

// ExecuteQuery runs query and renders the result set as aligned tabular
// text. Mode row_cursor streams row by row; bulk_frame loads the whole
// result first. Both render identically.
func (h *Handler) ExecuteQuery(ctx context.Context, query, mode string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", ErrEmptyQuery
	}
	if mode == "" {
		mode = ModeRowCursor
	}
	if mode != ModeRowCursor && mode != ModeBulkFrame {
		return "", fmt.Errorf("unknown execution mode %q (want %s or %s)", mode, ModeRowCursor, ModeBulkFrame)
	}

	rows, err := h.db.Query(ctx, query)
	if err != nil {
		return "", fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()

	headers := make([]string, len(rows.FieldDescriptions()))
	for i, fd := range rows.FieldDescriptions() {
		headers[i] = fd.Name
	}

	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(headers, "\t"))

	count := 0
	switch mode {
	case ModeRowCursor:
		for rows.Next() {
			values, err := rows.Values()
			if err != nil {
				return "", fmt.Errorf("reading row: %w", err)
			}
			fmt.Fprintln(w, renderRow(values))
			count++
		}
	case ModeBulkFrame:
		var frame [][]any
		for rows.Next() {
			values, err := rows.Values()
			if err != nil {
				return "", fmt.Errorf("reading row: %w", err)
			}
			frame = append(frame, values)
		}
		for _, values := range frame {
			fmt.Fprintln(w, renderRow(values))
			count++
		}
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("executing query: %w", err)
	}
	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("rendering result: %w", err)
	}

	h.logger.Debug("query executed", "mode", mode, "rows", count)
	if count == 0 {
		return b.String() + "(0 rows)\n", nil
	}
	return b.String(), nil
}

// columnMetadataQuery lists a table's columns with type, primary-key flag
// and column comment, in physical column order.
const columnMetadataQuery = `
SELECT
    c.column_name,
    c.data_type,
    (pk.column_name IS NOT NULL) AS primary_key,
    COALESCE(pgd.description, '') AS description
FROM information_schema.columns c
LEFT JOIN (
    SELECT kcu.table_schema, kcu.table_name, kcu.column_name
    FROM information_schema.table_constraints tc
    JOIN information_schema.key_column_usage kcu
      ON tc.constraint_name = kcu.constraint_name
     AND tc.table_schema = kcu.table_schema
    WHERE tc.constraint_type = 'PRIMARY KEY'
) pk
  ON pk.table_schema = c.table_schema
 AND pk.table_name = c.table_name
 AND pk.column_name = c.column_name
LEFT JOIN pg_catalog.pg_statio_all_tables st
  ON st.schemaname = c.table_schema
 AND st.relname = c.table_name
LEFT JOIN pg_catalog.pg_description pgd
  ON pgd.objoid = st.relid
 AND pgd.objsubid = c.ordinal_position
WHERE c.table_schema = $1
  AND c.table_name = $2
ORDER BY c.ordinal_position`

// GetMetadata renders one schema block per requested table: column names,
// types, primary-key flags and column comments.
func (h *Handler) GetMetadata(ctx context.Context, tables []string) (string, error) {
	if len(tables) == 0 {
		return "", errors.New("no tables requested")
	}

	var b strings.Builder
	for _, table := range tables {
		fmt.Fprintf(&b, "\n--- Table: %s ---\n", table)

		rows, err := h.db.Query(ctx, columnMetadataQuery, "public", table)
		if err != nil {
			return "", fmt.Errorf("describing table %s: %w", table, err)
		}

		w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "column_name\tdata_type\tprimary_key\tdescription")
		count := 0
		for rows.Next() {
			var (
				name, dataType, description string
				primaryKey                  bool
			)
			if err := rows.Scan(&name, &dataType, &primaryKey, &description); err != nil {
				rows.Close()
				return "", fmt.Errorf("reading column of %s: %w", table, err)
			}
			fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", name, dataType, primaryKey, description)
			count++
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return "", fmt.Errorf("describing table %s: %w", table, err)
		}
		if err := w.Flush(); err != nil {
			return "", fmt.Errorf("rendering metadata: %w", err)
		}
		if count == 0 {
			fmt.Fprintf(&b, "(table %s not found)\n", table)
		}
	}

	return b.String(), nil
}

// Tables lists the public tables, used to seed the metadata tool's
// description so the model picks from real names.
func (h *Handler) Tables(ctx context.Context) ([]string, error) {
	rows, err := h.db.Query(ctx,
		`SELECT tablename FROM pg_catalog.pg_tables WHERE schemaname = 'public' ORDER BY tablename`)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("reading table name: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	return tables, nil
}

// RetrieveQueries searches the example collection and renders matches above
// the score threshold as "NL key / SQL value / Score" triples. Returns the
// sentinel text when nothing qualifies.
func (h *Handler) RetrieveQueries(ctx context.Context, userQuery string) (string, error) {
	matches, err := h.retriever.Search(ctx, h.cfg.Collection, userQuery, h.cfg.TopK)
	if err != nil {
		return "", fmt.Errorf("retrieving examples: %w", err)
	}

	var blocks []string
	for _, m := range matches {
		if m.Score < h.cfg.ScoreThreshold {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("\nNL key: %s\nSQL value: %s\nScore: %.4f", m.Question, m.SQL, m.Score))
	}
	if len(blocks) == 0 {
		h.logger.Debug("no retrieval match above threshold",
			"collection", h.cfg.Collection, "candidates", len(matches))
		return NoQuerySentinel, nil
	}

	return strings.Join(blocks, "\n"), nil
}

func renderRow(values []any) string {
	cells := make([]string, len(values))
	for i, v := range values {
		cells[i] = renderValue(v)
	}
	return strings.Join(cells, "\t")
}

func renderValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
