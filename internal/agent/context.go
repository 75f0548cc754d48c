package agent

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Canonical context field names. All delta and serialization operations
// traverse fields in exactly this order so model-facing output is
// deterministic.
const (
	FieldUserQueries      = "user_queries"
	FieldRetrievedQueries = "retrieved_queries"
	FieldMetadata         = "metadata"
	FieldNotes            = "notes"
	FieldExecutedSQL      = "executed_sql_queries"
)

// retrievedPattern matches the "NL key / SQL value / Score" triples the
// retrieval tool renders. Case-insensitive, values may span lines.
var retrievedPattern = regexp.MustCompile(`(?is)NL key:\s*(.*?)\s*\nSQL value:\s*(.*?)\s*\nScore:\s*(\d+\.?\d*)`)

// RetrievedMatch is one retrieved (question, SQL) example with its
// similarity score.
type RetrievedMatch struct {
	Question string  `json:"nl"`
	SQL      string  `json:"sql"`
	Score    float64 `json:"score"`
}

// TaskContext accumulates everything discovered during one task: user
// questions, retrieved examples, schema metadata, free-form notes and the
// executed-query history. A private baseline records what has already been
// transmitted to the model; Delta returns only what is new.
//
// TaskContext is not safe for concurrent use. Each runner owns its context
// and is the sole writer.
type TaskContext struct {
	userQueries []string
	retrieved   []RetrievedMatch
	metadata    []string
	notes       []any
	executedSQL []string

	// sent maps field name to the snapshot last transmitted. Updated only
	// as a side effect of Delta.
	sent map[string][]any
}

// NewTaskContext returns an empty context.
func NewTaskContext() *TaskContext {
	return &TaskContext{sent: make(map[string][]any)}
}

// AppendUserQuery records a user question verbatim.
func (c *TaskContext) AppendUserQuery(q string) {
	c.userQueries = append(c.userQueries, q)
}

// AppendRetrieved parses "NL key / SQL value / Score" triples out of raw
// and extends the retrieved set. Malformed text yields zero matches, never
// an error. Returns how many matches were appended.
func (c *TaskContext) AppendRetrieved(raw string) int {
	matches := retrievedPattern.FindAllStringSubmatch(raw, -1)
	appended := 0
	for _, m := range matches {
		score, err := strconv.ParseFloat(m[3], 64)
		if err != nil {
			continue
		}
		c.retrieved = append(c.retrieved, RetrievedMatch{
			Question: strings.TrimSpace(m[1]),
			SQL:      normalizeSQL(m[2]),
			Score:    score,
		})
		appended++
	}
	return appended
}

// AppendMetadata records a schema-metadata fragment.
func (c *TaskContext) AppendMetadata(fragment string) {
	c.metadata = append(c.metadata, fragment)
}

// AppendNote records free-form model output. JSON text is stored decoded;
// anything else is kept as a trimmed string. Blank input is dropped.
func (c *TaskContext) AppendNote(note string) {
	trimmed := strings.TrimSpace(note)
	if trimmed == "" {
		return
	}
	var parsed any
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		parsed = trimmed
	}
	c.notes = append(c.notes, parsed)
}

// AppendExecutedSQL whitespace-normalizes query and appends it to the
// execution history. Blank input fails with ErrEmptyQuery before any
// mutation: the task must never record a no-op execution.
func (c *TaskContext) AppendExecutedSQL(query string) error {
	if strings.TrimSpace(query) == "" {
		return ErrEmptyQuery
	}
	c.executedSQL = append(c.executedSQL, normalizeSQL(query))
	return nil
}

// Retrieved returns a copy of the retrieved matches.
func (c *TaskContext) Retrieved() []RetrievedMatch {
	out := make([]RetrievedMatch, len(c.retrieved))
	copy(out, c.retrieved)
	return out
}

// ExecutedSQL returns a copy of the executed-query history.
func (c *TaskContext) ExecutedSQL() []string {
	out := make([]string, len(c.executedSQL))
	copy(out, c.executedSQL)
	return out
}

// UserQueries returns a copy of the recorded user questions.
func (c *TaskContext) UserQueries() []string {
	out := make([]string, len(c.userQueries))
	copy(out, c.userQueries)
	return out
}

type fieldView struct {
	name  string
	items []any
}

// fields snapshots every field as []any, in canonical order.
func (c *TaskContext) fields() []fieldView {
	return []fieldView{
		{FieldUserQueries, anySlice(c.userQueries)},
		{FieldRetrievedQueries, anySlice(c.retrieved)},
		{FieldMetadata, anySlice(c.metadata)},
		{FieldNotes, append([]any(nil), c.notes...)},
		{FieldExecutedSQL, anySlice(c.executedSQL)},
	}
}

// Delta returns, per non-excluded field in canonical order, the items not
// yet transmitted to the model, and advances the baseline for every field
// that contributed. Once an item has appeared in a returned delta it never
// reappears in a later one.
func (c *TaskContext) Delta(exclude ...string) *Delta {
	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[name] = true
	}

	d := &Delta{}
	for _, f := range c.fields() {
		if skip[f.name] {
			continue
		}
		prev := c.sent[f.name]
		var fresh []any
		for _, item := range f.items {
			if !containsValue(prev, item) {
				fresh = append(fresh, item)
			}
		}
		if len(fresh) == 0 {
			continue
		}
		d.fields = append(d.fields, deltaField{name: f.name, items: fresh})
		c.sent[f.name] = f.items
	}
	return d
}

// String summarizes the context without dumping contents.
func (c *TaskContext) String() string {
	var b strings.Builder
	b.WriteString("TaskContext:")
	for _, f := range c.fields() {
		fmt.Fprintf(&b, "\n  %s: (%d items)", f.name, len(f.items))
	}
	return b.String()
}

// Delta is the ordered result of one TaskContext.Delta call. Fields with
// nothing new are omitted entirely.
type Delta struct {
	fields []deltaField
}

type deltaField struct {
	name  string
	items []any
}

// Empty reports whether no field had new items.
func (d *Delta) Empty() bool { return len(d.fields) == 0 }

// FieldNames lists the contributing fields in canonical order.
func (d *Delta) FieldNames() []string {
	names := make([]string, len(d.fields))
	for i, f := range d.fields {
		names[i] = f.name
	}
	return names
}

// Items returns the new items recorded for a field, or nil.
func (d *Delta) Items(field string) []any {
	for _, f := range d.fields {
		if f.name == field {
			return f.items
		}
	}
	return nil
}

// MarshalForModel renders the delta as deterministic JSON: fields in
// canonical order, timestamps as RFC 3339 text.
func (d *Delta) MarshalForModel() (string, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, f := range d.fields {
		if i > 0 {
			b.WriteByte(',')
		}
		name, err := json.Marshal(f.name)
		if err != nil {
			return "", fmt.Errorf("encoding field name %s: %w", f.name, err)
		}
		b.Write(name)
		b.WriteByte(':')
		items, err := json.Marshal(convertForModel(f.items))
		if err != nil {
			return "", fmt.Errorf("encoding field %s: %w", f.name, err)
		}
		b.Write(items)
	}
	b.WriteByte('}')
	return b.String(), nil
}

// MarshalForModel renders an arbitrary value as model-safe JSON text,
// converting timestamps to RFC 3339.
func MarshalForModel(v any) (string, error) {
	raw, err := json.Marshal(convertForModel(v))
	if err != nil {
		return "", fmt.Errorf("encoding for model: %w", err)
	}
	return string(raw), nil
}

// convertForModel recursively rewrites values that need a fixed textual
// representation before JSON encoding.
func convertForModel(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.Format(time.RFC3339)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = convertForModel(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = convertForModel(e)
		}
		return out
	default:
		return v
	}
}

// normalizeSQL collapses runs of whitespace to single spaces so duplicate
// detection is robust to formatting differences.
func normalizeSQL(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func anySlice[T any](items []T) []any {
	out := make([]any, len(items))
	for i, v := range items {
		out[i] = v
	}
	return out
}

func containsValue(items []any, v any) bool {
	for _, item := range items {
		if reflect.DeepEqual(item, v) {
			return true
		}
	}
	return false
}
