package services

import (
	"strings"

	"knowledge-engine/internal/config"
)

// TextChunker splits document content into overlapping, boundary-aware
// windows. Windows prefer to end on a sentence terminator in their second
// half, then a word boundary, then a hard cut.
type TextChunker struct {
	ChunkSize int
	Overlap   int
}

func NewTextChunker(cfg *config.Config) *TextChunker {
	return &TextChunker{
		ChunkSize: cfg.ChunkSize,
		Overlap:   cfg.ChunkOverlap,
	}
}

// Chunk splits text using the configured window size and overlap.
func (tc *TextChunker) Chunk(text string) []string {
	return ChunkText(text, tc.ChunkSize, tc.Overlap)
}

// ChunkText walks text in windows of chunkSize characters. Each window
// after the first starts at max(prevStart+1, windowEnd-overlap), which
// guarantees forward progress even when overlap >= chunkSize. Chunks are
// trimmed and empty ones dropped.
func ChunkText(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}

	if len(text) <= chunkSize {
		return []string{text}
	}

	var chunks []string
	start := 0

	for start < len(text) {
		end := start + chunkSize
		if end >= len(text) {
			end = len(text)
		} else {
			// Prefer ending on ". " in the second half of the window,
			// then on a space, then cut at the raw offset.
			half := start + chunkSize/2
			if sentenceEnd := strings.LastIndex(text[start:end], ". "); sentenceEnd != -1 && start+sentenceEnd > half {
				end = start + sentenceEnd + 1
			} else if wordEnd := strings.LastIndex(text[start:end], " "); wordEnd != -1 && start+wordEnd > half {
				end = start + wordEnd
			}
		}

		chunk := strings.TrimSpace(text[start:end])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		// The last window consumes the remainder; do not re-chunk the tail
		if end >= len(text) {
			break
		}

		next := end - overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks
}
