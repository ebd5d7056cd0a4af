package chunker

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"iter"

	appErr "github.com/kbforge/ragpipe/internal/pkg/errors"

	"github.com/kbforge/ragpipe/internal/model"
)

// Chunker splits document text into fixed-size overlapping windows. Chunk
// boundaries depend only on the input, so repeated runs over the same
// document produce identical chunks and identifiers.
type Chunker struct {
	size    int
	overlap int
}

func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", appErr.ErrConfiguration, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap must be in [0, size), got size=%d overlap=%d", appErr.ErrConfiguration, size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

func (c *Chunker) Size() int {
	return c.size
}

func (c *Chunker) Overlap() int {
	return c.overlap
}

// Split returns a lazy, restartable sequence of chunks covering the whole
// document with no gaps; consecutive chunks share exactly the configured
// overlap. An empty document yields no chunks; a document shorter than the
// chunk size yields exactly one.
func (c *Chunker) Split(doc model.Document) iter.Seq[model.Chunk] {
	return func(yield func(model.Chunk) bool) {
		runes := []rune(doc.Text)
		if len(runes) == 0 {
			return
		}
		step := c.size - c.overlap
		index := 0
		for start := 0; start < len(runes); start += step {
			end := start + c.size
			if end > len(runes) {
				end = len(runes)
			}
			chunk := model.Chunk{
				ID:     ChunkID(doc.Name, index),
				Source: doc.Name,
				Index:  index,
				Text:   string(runes[start:end]),
			}
			if !yield(chunk) {
				return
			}
			index++
			if end == len(runes) {
				return
			}
		}
	}
}

// SplitAll materializes Split into a slice.
func (c *Chunker) SplitAll(doc model.Document) []model.Chunk {
	var out []model.Chunk
	for chunk := range c.Split(doc) {
		out = append(out, chunk)
	}
	return out
}

// ChunkID derives the stable identifier for position index of the named
// document. The hash suffix keeps IDs unique across documents whose names
// embed each other.
func ChunkID(docName string, index int) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s_%d", docName, index)))
	return fmt.Sprintf("%s_chunk%d_%s", docName, index, hex.EncodeToString(sum[:])[:8])
}
