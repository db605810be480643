package util

import "testing"

func TestNormalizeTagSlug(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercase", "STOICISM", "stoicism"},
		{"spaces to dashes", "ancient philosophy", "ancient-philosophy"},
		{"underscores to dashes", "ancient_philosophy", "ancient-philosophy"},
		{"already normalized", "ancient-philosophy", "ancient-philosophy"},

		{"trim whitespace", "  stoicism  ", "stoicism"},
		{"multiple spaces", "deep   work", "deep-work"},

		{"emoji removal", "📚 Reading!", "reading"},
		{"punctuation removal", "sci-fi/fantasy", "sci-fi-fantasy"},
		{"apostrophe removal", "don't", "dont"},

		{"multiple dashes", "deep--work", "deep-work"},
		{"leading and trailing dashes", "--deep-work--", "deep-work"},

		{"empty string", "", ""},
		{"only special chars", "!@#$%", ""},
		{"numbers allowed", "top10", "top10"},
		{"mixed case with numbers", "Top 10 Books", "top-10-books"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeTagSlug(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizeTagSlug(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestAssignShards(t *testing.T) {
	shards := AssignShards(8, 3)
	expected := []int{0, 1, 2, 0, 1, 2, 0, 1}
	for i, want := range expected {
		if shards[i] != want {
			t.Errorf("position %d: got shard %d, want %d", i, shards[i], want)
		}
	}

	if got := AssignShards(0, 3); len(got) != 0 {
		t.Errorf("zero items: got %v", got)
	}

	// Degenerate shard counts fall back to a single shard.
	for _, s := range AssignShards(4, 0) {
		if s != 0 {
			t.Errorf("expected shard 0, got %d", s)
		}
	}
}
