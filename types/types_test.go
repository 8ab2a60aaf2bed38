package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIngestionOutcomeStatus(t *testing.T) {
	full := NewIngestionOutcome("doc.pdf", 10, 10, 10)
	assert.Equal(t, IngestSuccess, full.Status)

	partial := NewIngestionOutcome("doc.pdf", 10, 8, 8)
	assert.Equal(t, IngestPartial, partial.Status)
}

func TestApproximatePage(t *testing.T) {
	assert.Equal(t, 1, ApproximatePage(0))
	assert.Equal(t, 1, ApproximatePage(9))
	assert.Equal(t, 2, ApproximatePage(10))
	assert.Equal(t, 4, ApproximatePage(35))
}

func TestQueryParamsValidate(t *testing.T) {
	params := QueryParams{}
	errors := params.Validate()
	assert.Contains(t, errors, "Question")

	params.Question = "What is this about?"
	assert.Nil(t, params.Validate())
}
