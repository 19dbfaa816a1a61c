package source

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadURLs(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "blank rows are skipped",
			input:    "https://a.example\n\nhttps://b.example\n",
			expected: []string{"https://a.example", "https://b.example"},
		},
		{
			name:     "only the first column is used",
			input:    "https://a.example,Site A,extra\nhttps://b.example\n",
			expected: []string{"https://a.example", "https://b.example"},
		},
		{
			name:     "first column is kept verbatim",
			input:    ",orphan\n  https://c.example  ,x\r\n",
			expected: []string{"", "  https://c.example  "},
		},
		{
			name:     "empty input",
			input:    "",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			urls, err := ReadURLs(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, urls)
		})
	}
}

func TestReadURLsFromCSV(t *testing.T) {
	t.Run("reads file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "urls.csv")
		require.NoError(t, os.WriteFile(path, []byte("https://a.example\n\nhttps://b.example\n"), 0o644))

		urls, err := ReadURLsFromCSV(path)
		require.NoError(t, err)
		assert.Len(t, urls, 2)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ReadURLsFromCSV(filepath.Join(t.TempDir(), "missing.csv"))
		assert.ErrorContains(t, err, "CSVファイル")
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}
