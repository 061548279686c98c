package models

import "time"

// MemoryState is the persisted record of what the memory engine has learned:
// which documents it tracks (by content checksum), which search terms it has
// seen, and which of those crossed the popularity threshold.
//
// Invariant: PopularTopics only ever contains terms whose SearchPatterns
// count reached the configured threshold. Absent fields default to empty on
// load so older state files remain readable.
type MemoryState struct {
	DocumentChecksums map[string]string `json:"document_checksums"`
	SearchPatterns    map[string]int    `json:"search_patterns"`
	PopularTopics     []string          `json:"popular_topics"`
	LastUpdateTime    time.Time         `json:"last_update_time"`
}

// NewMemoryState returns an empty state stamped with now.
func NewMemoryState() *MemoryState {
	return &MemoryState{
		DocumentChecksums: make(map[string]string),
		SearchPatterns:    make(map[string]int),
		PopularTopics:     []string{},
		LastUpdateTime:    time.Now(),
	}
}

// Normalize fills nil maps after a JSON load of a partial state file.
func (s *MemoryState) Normalize() {
	if s.DocumentChecksums == nil {
		s.DocumentChecksums = make(map[string]string)
	}
	if s.SearchPatterns == nil {
		s.SearchPatterns = make(map[string]int)
	}
	if s.PopularTopics == nil {
		s.PopularTopics = []string{}
	}
	if s.LastUpdateTime.IsZero() {
		s.LastUpdateTime = time.Now()
	}
}

// MemoryStats is the read-only snapshot exposed on the stats endpoint.
type MemoryStats struct {
	TrackedDocuments      int         `json:"tracked_documents"`
	SearchPatternsTracked int         `json:"search_patterns_tracked"`
	PopularTopics         []string    `json:"popular_topics"`
	HoursSinceLastUpdate  float64     `json:"hours_since_last_update"`
	BackgroundActive      bool        `json:"background_updates_active"`
	TopSearchTerms        []TermCount `json:"top_search_terms"`
}

// TermCount pairs a search term with its observed frequency.
type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// IndexStats summarizes the vector index contents.
type IndexStats struct {
	TotalChunks   int      `json:"total_chunks"`
	UniqueTopics  int      `json:"unique_topics"`
	DocumentTypes []string `json:"document_types"`
	SampleTopics  []string `json:"sample_topics"`
	UniqueAuthors int      `json:"unique_authors"`
}
