package models

import "errors"

// Error kinds for the retrieval and memory pipelines. Call sites wrap these
// with fmt.Errorf("...: %w", ...) so errors.Is works across layers; the
// recover-vs-propagate decision is made per call site, not by blanket
// handlers.
var (
	// ErrEmbeddingUnavailable means the embedding provider call failed or
	// timed out. Fatal for a query embedding, recovered per-candidate
	// during external backfill.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrIndexUnavailable means the vector storage engine call failed.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrExternalFetchFailed means the content aggregation collaborator
	// failed or timed out. Never fatal; degrades to empty content.
	ErrExternalFetchFailed = errors.New("external fetch failed")

	// ErrMalformedDocument means a document is missing its id or has empty
	// content. Rejects that document only, never its batch siblings.
	ErrMalformedDocument = errors.New("malformed document")

	// ErrStatePersistenceFailed means the memory state file could not be
	// read or written. Logged; in-memory state stays authoritative.
	ErrStatePersistenceFailed = errors.New("memory state persistence failed")
)
