package knowledge

import (
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  []Entry
	}{
		{
			name: "two entries with orphan comment between",
			input: "-- find cloudy scenes\n" +
				"SELECT * FROM sentinel_scenes WHERE cloud_cover > 50;\n" +
				"\n" +
				"-- a note with no sql under it\n" +
				"\n" +
				"-- count scenes\n" +
				"SELECT COUNT(*)\n" +
				"FROM sentinel_scenes;\n",
			want: []Entry{
				{ID: 1, Question: "find cloudy scenes", SQL: "SELECT * FROM sentinel_scenes WHERE cloud_cover > 50;"},
				{ID: 2, Question: "count scenes", SQL: "SELECT COUNT(*)\nFROM sentinel_scenes;"},
			},
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
		{
			name:  "sql before any comment is dropped",
			input: "SELECT 1;\n-- real question\nSELECT 2;\n",
			want: []Entry{
				{ID: 1, Question: "real question", SQL: "SELECT 2;"},
			},
		},
		{
			name:  "multi-line sql keeps internal newlines",
			input: "-- join scenes and assets\nSELECT s.scene_id, a.href\nFROM sentinel_scenes s\nJOIN scene_assets a USING (scene_id);\n",
			want: []Entry{
				{
					ID:       1,
					Question: "join scenes and assets",
					SQL:      "SELECT s.scene_id, a.href\nFROM sentinel_scenes s\nJOIN scene_assets a USING (scene_id);",
				},
			},
		},
		{
			name:  "trailing entry without newline",
			input: "-- last one\nSELECT now();",
			want: []Entry{
				{ID: 1, Question: "last one", SQL: "SELECT now();"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Parse(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Parse() returned %d entries, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("entry %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestLoadDefaultCorpus(t *testing.T) {
	t.Parallel()

	entries, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("embedded corpus parsed to zero entries")
	}
	for i, e := range entries {
		if e.ID != i+1 {
			t.Errorf("entry %d has ID %d, want %d", i, e.ID, i+1)
		}
		if e.Question == "" || e.SQL == "" {
			t.Errorf("entry %d has empty question or SQL: %+v", i, e)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load("/nonexistent/corpus.sql"); err == nil {
		t.Fatal("Load() with missing file returned nil error")
	}
}

func TestQuestions(t *testing.T) {
	t.Parallel()

	entries := []Entry{
		{ID: 1, Question: "a", SQL: "SELECT 1;"},
		{ID: 2, Question: "b", SQL: "SELECT 2;"},
	}
	got := Questions(entries)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Questions() = %v, want [a b]", got)
	}
}
