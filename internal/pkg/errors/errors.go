package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks a fatal misconfiguration the caller must fix,
	// such as a chunk overlap >= chunk size or an index dimension mismatch.
	ErrConfiguration = errors.New("configuration error")

	// ErrStoreUnavailable wraps transport or auth failures from the vector store.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrEmbeddingProvider wraps terminal failures from the embedding provider.
	ErrEmbeddingProvider = errors.New("embedding provider error")

	// ErrGenerationProvider wraps terminal failures from a generation provider.
	ErrGenerationProvider = errors.New("generation provider error")

	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IDRange is a contiguous run of chunk identifiers covered by one upsert
// sub-batch, identified by its first and last member.
type IDRange struct {
	First string `json:"first"`
	Last  string `json:"last"`
	Count int    `json:"count"`
}

// PartialUpsertError reports which sub-batches of an upsert landed before one
// failed terminally, so the caller can resume from the failed range instead
// of re-upserting everything.
type PartialUpsertError struct {
	Succeeded []IDRange
	Failed    []IDRange
	Written   int
	Remaining int
	Cause     error
}

func (e *PartialUpsertError) Error() string {
	return fmt.Sprintf("partial upsert: %d written, %d not written: %v", e.Written, e.Remaining, e.Cause)
}

func (e *PartialUpsertError) Unwrap() error {
	return e.Cause
}
