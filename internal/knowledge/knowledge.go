// Package knowledge loads the curated corpus of (question, SQL) example
// pairs used for retrieval-augmented prompting.
//
// The corpus is plain text: a line starting with the SQL comment marker
// ("--") opens a new entry and carries the natural-language question; the
// non-blank lines that follow accumulate as the SQL answer until the next
// marker or end of input.
package knowledge

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// commentMarker opens a question line in the corpus format.
const commentMarker = "--"

// Entry is one labeled (question, SQL) pair. Entries are immutable once
// loaded; identity is the sequential ID assigned in emission order.
type Entry struct {
	ID       int
	Question string
	SQL      string
}

// Parse reads the corpus format from r and returns entries in input order,
// with IDs assigned sequentially from 1.
//
// An entry is emitted only when it has both a non-empty question and at
// least one SQL line; a comment line with no SQL under it is dropped.
// Multi-line SQL bodies keep their internal newlines and are trimmed as a
// whole; further whitespace normalization is left to downstream layers.
func Parse(r io.Reader) ([]Entry, error) {
	var (
		entries  []Entry
		question string
		sqlLines []string
	)

	flush := func() {
		if question != "" && len(sqlLines) > 0 {
			entries = append(entries, Entry{
				ID:       len(entries) + 1,
				Question: question,
				SQL:      strings.TrimSpace(strings.Join(sqlLines, "\n")),
			})
		}
		sqlLines = nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		stripped := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(stripped, commentMarker):
			flush()
			question = strings.TrimSpace(strings.TrimLeft(stripped, "-"))
		case stripped != "":
			sqlLines = append(sqlLines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading corpus: %w", err)
	}
	flush()

	return entries, nil
}

// Load parses the corpus file at path. An empty path loads the embedded
// default corpus.
func Load(path string) ([]Entry, error) {
	if path == "" {
		return Parse(strings.NewReader(defaultCorpus))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus %s: %w", path, err)
	}
	defer f.Close()

	return Parse(f)
}

// Questions returns the question of every entry, in corpus order.
// Used when embedding the whole knowledge base in one batch.
func Questions(entries []Entry) []string {
	qs := make([]string, len(entries))
	for i, e := range entries {
		qs[i] = e.Question
	}
	return qs
}
