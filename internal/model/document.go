package model

import "time"

// Document is an already-extracted-to-text source document. It is read-only
// once loaded; the ingestion run owns it transiently.
type Document struct {
	Name         string    `json:"name"`
	Text         string    `json:"text"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// Chunk is a bounded, overlapping segment of one document, the unit of
// embedding and retrieval. ID is deterministic over (document name, index),
// so re-ingesting an unchanged document produces the same identifiers.
type Chunk struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Index  int    `json:"index"`
	Text   string `json:"text"`
}

// EmbeddedChunk pairs a chunk with its vector. It exists only in pipeline
// memory between embedding and upsert.
type EmbeddedChunk struct {
	Chunk
	Vector []float32 `json:"vector"`
}
