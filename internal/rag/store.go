// Package rag implements the vector index backing example retrieval.
//
// A collection is one PostgreSQL table (prefixed "vec_") holding a row per
// knowledge entry: the natural-language question, its SQL answer and a
// pgvector embedding of the question. Search embeds the incoming query and
// ranks rows by the collection's distance metric.
package rag

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/galileo0/galileo/internal/knowledge"
	"github.com/galileo0/galileo/internal/log"
)

var (
	// ErrStoreUnavailable reports that PostgreSQL could not be reached.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrInvalidCollection reports a collection name that cannot be used
	// as a table identifier.
	ErrInvalidCollection = errors.New("invalid collection name")
)

const (
	collectionPrefix = "vec_"

	// listPageSize pages id listings during Update. Generous relative to
	// expected corpus sizes so most collections list in one page.
	listPageSize = 256
)

// Collection names become table identifiers, so they are validated rather
// than parameterized.
var collectionNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]{0,60}$`)

// Match is one retrieval hit, scored by similarity in [0, 1].
type Match struct {
	Question string
	SQL      string
	Note     string
	Score    float64
}

// CollectionStats describes one stored collection.
type CollectionStats struct {
	Name    string
	Vectors int64
	Dim     int
}

// Querier is the subset of pgxpool.Pool the store needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store manages embedding collections over PostgreSQL + pgvector.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db       Querier
	embedder ai.Embedder
	metric   Metric
	logger   log.Logger
}

// New creates a Store. A nil logger discards debug output.
func New(db Querier, embedder ai.Embedder, metric Metric, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{db: db, embedder: embedder, metric: metric, logger: logger}
}

// EnsureCollection creates the collection table and its vector index if they
// do not exist. With forceRebuild the table is dropped first; a missing table
// is not an error.
func (s *Store) EnsureCollection(ctx context.Context, name string, dim int, forceRebuild bool) error {
	table, err := collectionTable(name)
	if err != nil {
		return err
	}
	if dim <= 0 {
		return fmt.Errorf("vector dimension must be positive, got %d", dim)
	}

	if forceRebuild {
		if _, err := s.db.Exec(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return s.storeErr("dropping collection "+name, err)
		}
	}

	create := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id BIGINT PRIMARY KEY,
    question TEXT NOT NULL,
    sql_text TEXT NOT NULL,
    note TEXT NOT NULL DEFAULT '',
    embedding VECTOR(%d) NOT NULL
)`, table, dim)
	if _, err := s.db.Exec(ctx, create); err != nil {
		return s.storeErr("creating collection "+name, err)
	}

	index := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding %s)",
		table, table, s.metric.opclass())
	if _, err := s.db.Exec(ctx, index); err != nil {
		return s.storeErr("indexing collection "+name, err)
	}

	s.logger.Debug("collection ready",
		"collection", name, "dim", dim, "metric", s.metric, "rebuilt", forceRebuild)
	return nil
}

// DropCollection removes the collection table. Dropping a collection that
// does not exist is not an error.
func (s *Store) DropCollection(ctx context.Context, name string) error {
	table, err := collectionTable(name)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
		return s.storeErr("dropping collection "+name, err)
	}
	s.logger.Info("collection dropped", "collection", name)
	return nil
}

// EmbedAll embeds every entry's question in one batch and upserts the
// results, returning the number of entries written. Re-running over the same
// entries overwrites rows in place.
func (s *Store) EmbedAll(ctx context.Context, name string, entries []knowledge.Entry) (int, error) {
	table, err := collectionTable(name)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	vectors, err := s.embed(ctx, knowledge.Questions(entries))
	if err != nil {
		return 0, err
	}

	upsert := fmt.Sprintf(`INSERT INTO %s (id, question, sql_text, note, embedding)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
    question = EXCLUDED.question,
    sql_text = EXCLUDED.sql_text,
    note = EXCLUDED.note,
    embedding = EXCLUDED.embedding`, table)

	for i, e := range entries {
		if _, err := s.db.Exec(ctx, upsert, int64(e.ID), e.Question, e.SQL, "", vectors[i]); err != nil {
			return i, s.storeErr(fmt.Sprintf("upserting entry %d", e.ID), err)
		}
	}

	s.logger.Info("collection populated", "collection", name, "entries", len(entries))
	return len(entries), nil
}

// Update writes only the entries whose ids are not yet stored, returning how
// many were added. A second run over an unchanged corpus is a no-op and
// returns 0.
func (s *Store) Update(ctx context.Context, name string, entries []knowledge.Entry) (int, error) {
	table, err := collectionTable(name)
	if err != nil {
		return 0, err
	}

	stored, err := s.collectionIDs(ctx, table)
	if err != nil {
		return 0, err
	}

	var missing []knowledge.Entry
	for _, e := range entries {
		if _, ok := stored[int64(e.ID)]; !ok {
			missing = append(missing, e)
		}
	}
	if len(missing) == 0 {
		s.logger.Debug("collection up to date", "collection", name, "entries", len(entries))
		return 0, nil
	}

	return s.EmbedAll(ctx, name, missing)
}

// Search embeds query and returns up to topK matches ordered by descending
// similarity. An empty collection yields an empty slice.
func (s *Store) Search(ctx context.Context, name, query string, topK int) ([]Match, error) {
	table, err := collectionTable(name)
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	vectors, err := s.embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	q := fmt.Sprintf(`SELECT question, sql_text, note, embedding %s $1 AS distance
FROM %s
ORDER BY distance
LIMIT $2`, s.metric.operator(), table)

	rows, err := s.db.Query(ctx, q, vectors[0], topK)
	if err != nil {
		return nil, s.storeErr("searching collection "+name, err)
	}
	defer rows.Close()

	matches := make([]Match, 0, topK)
	for rows.Next() {
		var (
			m        Match
			distance float64
		)
		if err := rows.Scan(&m.Question, &m.SQL, &m.Note, &distance); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		m.Score = s.metric.score(distance)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, s.storeErr("searching collection "+name, err)
	}

	return matches, nil
}

// Collections reports every stored collection with its row count and vector
// dimension.
func (s *Store) Collections(ctx context.Context) ([]CollectionStats, error) {
	rows, err := s.db.Query(ctx, `SELECT table_name FROM information_schema.tables
WHERE table_schema = 'public' AND table_name LIKE 'vec\_%'
ORDER BY table_name`)
	if err != nil {
		return nil, s.storeErr("listing collections", err)
	}

	var tables []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning collection name: %w", err)
		}
		tables = append(tables, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, s.storeErr("listing collections", err)
	}

	stats := make([]CollectionStats, 0, len(tables))
	for _, table := range tables {
		name := strings.TrimPrefix(table, collectionPrefix)
		if !collectionNameRe.MatchString(name) {
			continue
		}

		var st CollectionStats
		st.Name = name
		if err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&st.Vectors); err != nil {
			return nil, s.storeErr("counting collection "+name, err)
		}
		// pgvector stores the dimension in the column's type modifier.
		if err := s.db.QueryRow(ctx,
			`SELECT atttypmod FROM pg_attribute WHERE attrelid = $1::regclass AND attname = 'embedding'`,
			table).Scan(&st.Dim); err != nil {
			return nil, s.storeErr("inspecting collection "+name, err)
		}
		stats = append(stats, st)
	}

	return stats, nil
}

// embed turns texts into vectors in a single embedder call.
func (s *Store) embed(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	docs := make([]*ai.Document, len(texts))
	for i, t := range texts {
		docs[i] = ai.DocumentFromText(t, nil)
	}

	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{Input: docs})
	if err != nil {
		return nil, fmt.Errorf("generating embeddings: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d inputs", len(resp.Embeddings), len(texts))
	}

	vectors := make([]pgvector.Vector, len(texts))
	for i, e := range resp.Embeddings {
		if len(e.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding for input %d", i)
		}
		vectors[i] = pgvector.NewVector(e.Embedding)
	}
	return vectors, nil
}

// collectionIDs lists every stored id, paging so large collections do not
// need one unbounded result set.
func (s *Store) collectionIDs(ctx context.Context, table string) (map[int64]struct{}, error) {
	ids := make(map[int64]struct{})
	for offset := 0; ; offset += listPageSize {
		q := fmt.Sprintf("SELECT id FROM %s ORDER BY id LIMIT %d OFFSET %d", table, listPageSize, offset)
		rows, err := s.db.Query(ctx, q)
		if err != nil {
			return nil, s.storeErr("listing collection ids", err)
		}

		page := 0
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning id: %w", err)
			}
			ids[id] = struct{}{}
			page++
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, s.storeErr("listing collection ids", err)
		}

		if page < listPageSize {
			return ids, nil
		}
	}
}

// storeErr wraps err, tagging connection-level failures with
// ErrStoreUnavailable so callers can distinguish an unreachable database
// from a bad request.
func (s *Store) storeErr(op string, err error) error {
	var connErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connErr) || errors.As(err, &netErr) {
		return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func collectionTable(name string) (string, error) {
	if !collectionNameRe.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCollection, name)
	}
	return collectionPrefix + name, nil
}
