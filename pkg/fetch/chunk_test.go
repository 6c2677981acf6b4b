package fetch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkResources(t *testing.T) {
	tests := []struct {
		name   string
		items  []string
		maxLen int
		want   [][]string
	}{
		{
			name:   "empty input",
			items:  nil,
			maxLen: 10,
			want:   nil,
		},
		{
			name:   "all fit in one chunk",
			items:  []string{"a", "b", "c"},
			maxLen: 10,
			want:   [][]string{{"a", "b", "c"}},
		},
		{
			name:   "splits when comma-joined length would overflow",
			items:  []string{"aaa", "bbb", "ccc"},
			maxLen: 7, // "aaa,bbb" fits exactly, "ccc" overflows
			want:   [][]string{{"aaa", "bbb"}, {"ccc"}},
		},
		{
			name:   "single oversized item still emitted",
			items:  []string{"aaaaaaaaaaaa"},
			maxLen: 4,
			want:   [][]string{{"aaaaaaaaaaaa"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ChunkResources(tt.items, tt.maxLen)
			require.Equal(t, tt.want, got)

			for _, chunk := range got {
				joined := strings.Join(chunk, ",")
				if len(chunk) > 1 && len(joined) > tt.maxLen {
					t.Errorf("chunk %q serializes to %d chars, budget %d", joined, len(joined), tt.maxLen)
				}
			}
		})
	}
}

func TestChunkCount(t *testing.T) {
	got := ChunkCount([]string{"1", "2", "3", "4", "5"}, 2)
	require.Equal(t, [][]string{{"1", "2"}, {"3", "4"}, {"5"}}, got)

	require.Nil(t, ChunkCount(nil, 3))
}
