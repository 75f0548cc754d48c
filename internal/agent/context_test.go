package agent

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendExecutedSQLNormalizes(t *testing.T) {
	t.Parallel()

	c := NewTaskContext()
	require.NoError(t, c.AppendExecutedSQL("  SELECT   1 "))
	require.NoError(t, c.AppendExecutedSQL("SELECT 1"))

	// Normalization, not deduplication, is the only per-call transformation.
	assert.Equal(t, []string{"SELECT 1", "SELECT 1"}, c.ExecutedSQL())
}

func TestAppendExecutedSQLRejectsEmpty(t *testing.T) {
	t.Parallel()

	c := NewTaskContext()
	for _, input := range []string{"", "   ", "\n\t"} {
		err := c.AppendExecutedSQL(input)
		assert.ErrorIs(t, err, ErrEmptyQuery, "input %q", input)
	}
	assert.Empty(t, c.ExecutedSQL(), "context mutated by rejected append")
}

func TestNormalizeSQLIdempotent(t *testing.T) {
	t.Parallel()

	normalized := normalizeSQL("SELECT  *\n FROM\tscenes")
	assert.Equal(t, "SELECT * FROM scenes", normalized)
	assert.Equal(t, normalized, normalizeSQL(normalized))
}

func TestAppendRetrieved(t *testing.T) {
	t.Parallel()

	raw := "\nNL key: find cloudy scenes\nSQL value: SELECT *\n  FROM scenes;\nScore: 0.9123\n" +
		"\nNL key: count scenes\nSQL value: SELECT COUNT(*) FROM scenes;\nScore: 0.75\n"

	c := NewTaskContext()
	n := c.AppendRetrieved(raw)
	require.Equal(t, 2, n)

	got := c.Retrieved()
	require.Len(t, got, 2)
	assert.Equal(t, "find cloudy scenes", got[0].Question)
	assert.Equal(t, "SELECT * FROM scenes;", got[0].SQL, "SQL value is whitespace-normalized")
	assert.InDelta(t, 0.9123, got[0].Score, 1e-9)
	assert.Equal(t, "count scenes", got[1].Question)
}

func TestAppendRetrievedMalformed(t *testing.T) {
	t.Parallel()

	c := NewTaskContext()
	assert.Zero(t, c.AppendRetrieved("No query retrieved."))
	assert.Zero(t, c.AppendRetrieved("completely unrelated text"))
	assert.Empty(t, c.Retrieved())
}

func TestAppendNote(t *testing.T) {
	t.Parallel()

	c := NewTaskContext()
	c.AppendNote(`{"tables": ["sentinel_scenes"]}`)
	c.AppendNote("plain observation")
	c.AppendNote("   ")

	d := c.Delta()
	notes := d.Items(FieldNotes)
	require.Len(t, notes, 2, "blank note must be dropped")
	assert.Equal(t, map[string]any{"tables": []any{"sentinel_scenes"}}, notes[0])
	assert.Equal(t, "plain observation", notes[1])
}

func TestDeltaIdempotence(t *testing.T) {
	t.Parallel()

	c := NewTaskContext()
	c.AppendUserQuery("show scenes over Rome")
	c.AppendMetadata("--- Table: sentinel_scenes ---")
	require.NoError(t, c.AppendExecutedSQL("SELECT 1"))
	c.AppendRetrieved("NL key: a\nSQL value: SELECT 2\nScore: 0.8")

	first := c.Delta()
	require.False(t, first.Empty())

	second := c.Delta()
	assert.True(t, second.Empty(), "second delta with no intervening mutation must be empty, got fields %v", second.FieldNames())
}

func TestDeltaMonotonicity(t *testing.T) {
	t.Parallel()

	c := NewTaskContext()
	var transmitted []any

	require.NoError(t, c.AppendExecutedSQL("SELECT 1"))
	transmitted = append(transmitted, c.Delta().Items(FieldExecutedSQL)...)

	require.NoError(t, c.AppendExecutedSQL("SELECT 2"))
	require.NoError(t, c.AppendExecutedSQL("SELECT 3"))
	transmitted = append(transmitted, c.Delta().Items(FieldExecutedSQL)...)

	// Nothing lost, nothing duplicated across deltas.
	assert.Equal(t, []any{"SELECT 1", "SELECT 2", "SELECT 3"}, transmitted)
}

func TestDeltaExclude(t *testing.T) {
	t.Parallel()

	c := NewTaskContext()
	c.AppendUserQuery("a question")
	c.AppendMetadata("a fragment")

	d := c.Delta(FieldUserQueries)
	assert.Equal(t, []string{FieldMetadata}, d.FieldNames())

	// Excluded field stays pending: a later unexcluded delta still sees it.
	d = c.Delta()
	assert.Equal(t, []string{FieldUserQueries}, d.FieldNames())
}

func TestDeltaCanonicalOrder(t *testing.T) {
	t.Parallel()

	c := NewTaskContext()
	// Populate in reverse of canonical order.
	require.NoError(t, c.AppendExecutedSQL("SELECT 1"))
	c.AppendNote("note")
	c.AppendMetadata("meta")
	c.AppendRetrieved("NL key: q\nSQL value: s\nScore: 0.7")
	c.AppendUserQuery("question")

	d := c.Delta()
	assert.Equal(t, []string{
		FieldUserQueries,
		FieldRetrievedQueries,
		FieldMetadata,
		FieldNotes,
		FieldExecutedSQL,
	}, d.FieldNames())

	body, err := d.MarshalForModel()
	require.NoError(t, err)
	for _, pair := range [][2]string{
		{FieldUserQueries, FieldRetrievedQueries},
		{FieldRetrievedQueries, FieldMetadata},
		{FieldMetadata, FieldNotes},
		{FieldNotes, FieldExecutedSQL},
	} {
		assert.Less(t, strings.Index(body, pair[0]), strings.Index(body, pair[1]),
			"%s must serialize before %s", pair[0], pair[1])
	}
}

func TestDeltaMarshalForModel(t *testing.T) {
	t.Parallel()

	c := NewTaskContext()
	c.AppendRetrieved("NL key: q\nSQL value: SELECT 1\nScore: 0.8")

	body, err := c.Delta().MarshalForModel()
	require.NoError(t, err)
	assert.JSONEq(t, `{"retrieved_queries":[{"nl":"q","sql":"SELECT 1","score":0.8}]}`, body)
}

func TestMarshalForModelTime(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)
	body, err := MarshalForModel(map[string]any{"acquired": ts})
	require.NoError(t, err)
	assert.Equal(t, `{"acquired":"2024-06-15T10:30:00Z"}`, body)
}

func TestEmptyDeltaOmitsFields(t *testing.T) {
	t.Parallel()

	c := NewTaskContext()
	d := c.Delta()
	assert.True(t, d.Empty())

	body, err := d.MarshalForModel()
	require.NoError(t, err)
	assert.Equal(t, "{}", body, "empty fields are omitted, never emitted as empty containers")
}

func TestContextString(t *testing.T) {
	t.Parallel()

	c := NewTaskContext()
	c.AppendUserQuery("q")
	s := c.String()
	assert.Contains(t, s, "user_queries: (1 items)")
	assert.Contains(t, s, "executed_sql_queries: (0 items)")
}

func TestErrEmptyQueryIdentity(t *testing.T) {
	t.Parallel()

	c := NewTaskContext()
	err := c.AppendExecutedSQL(" ")
	assert.True(t, errors.Is(err, ErrEmptyQuery))
}
