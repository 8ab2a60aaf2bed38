package types

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput is returned by the chunker when the extracted text is
	// empty or whitespace-only.
	ErrEmptyInput = errors.New("input text is empty")

	// ErrNoFragments signals a chunker bug: non-empty input produced zero
	// fragments.
	ErrNoFragments = errors.New("no fragments produced from input text")

	// ErrNoVectors means every fragment of a document failed to embed.
	// Distinct from a partial run, which still stores at least one vector.
	ErrNoVectors = errors.New("no vectors produced from fragments")

	// ErrEmptyQuestion rejects blank questions before any external call.
	ErrEmptyQuestion = errors.New("question is empty")
)

// ExtractionError wraps a text-extraction failure for one document.
type ExtractionError struct {
	Source string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting text from %q: %v", e.Source, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// StorageWriteError aborts an ingestion run on the first failed upsert
// batch. Stored reports how many vectors were durably written by the
// batches that succeeded before the failure.
type StorageWriteError struct {
	Source string
	Batch  int
	Stored int
	Err    error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("storing vectors for %q: batch %d failed after %d stored: %v",
		e.Source, e.Batch, e.Stored, e.Err)
}

func (e *StorageWriteError) Unwrap() error { return e.Err }

// DimensionError reports an embedding whose length does not match the
// store's configured dimension.
type DimensionError struct {
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: want %d, got %d", e.Want, e.Got)
}
