package util

import "strings"

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200

	// MinChunkLength is the trimmed rune count a chunk must exceed to be kept.
	MinChunkLength = 50
)

// ChunkText splits text into overlapping windows of at most chunkSize runes.
// A window that does not reach the end of the text is cut after the last '.'
// or '\n' when that break sits past the middle of the window. Each start
// advances by at least one rune, so degenerate inputs always terminate.
func ChunkText(text string, chunkSize, overlap int) ([]string, error) {
	if chunkSize <= 0 {
		return nil, Errorf(KindInvalidArgument, "chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, Errorf(KindInvalidArgument, "chunk overlap must be in [0, %d), got %d", chunkSize, overlap)
	}

	runes := []rune(text)
	n := len(runes)
	out := make([]string, 0, n/chunkSize+1)
	start := 0
	for start < n {
		end := start + chunkSize
		if end < n {
			if bp := lastBreak(runes[start:end]); bp >= 0 && bp > chunkSize/2 {
				end = start + bp + 1
			}
		} else {
			end = n
		}

		part := strings.TrimSpace(string(runes[start:end]))
		if len([]rune(part)) > MinChunkLength {
			out = append(out, part)
		}
		if end >= n {
			break
		}
		start = max(start+1, end-overlap)
	}
	return out, nil
}

// lastBreak returns the index of the last sentence or line break in w, or -1.
func lastBreak(w []rune) int {
	for i := len(w) - 1; i >= 0; i-- {
		if w[i] == '.' || w[i] == '\n' {
			return i
		}
	}
	return -1
}
