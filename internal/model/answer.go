package model

// RetrievedChunk is one ranked similarity-search hit. Score is bounded with
// higher meaning more relevant. Results are produced fresh per query and
// never cached across queries.
type RetrievedChunk struct {
	ID     string  `json:"id"`
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Index  int     `json:"chunk_index"`
	Score  float64 `json:"score"`
}

// Answer is the uniform output of the generation pipeline. Provider names
// which generation backend produced Text; Sources lists the grounding chunks
// in rank order. Callers always receive a well-formed Answer, including on
// provider exhaustion and on empty retrieval.
type Answer struct {
	Text     string           `json:"answer"`
	Sources  []RetrievedChunk `json:"sources"`
	Provider string           `json:"provider"`
}

// IngestReport summarizes one ingestion run, including partial failures.
type IngestReport struct {
	Documents     int `json:"documents"`
	ChunksWritten int `json:"chunks_written"`
	ChunksFailed  int `json:"chunks_failed"`
}
