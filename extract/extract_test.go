package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractRejectsGarbage(t *testing.T) {
	e := NewPDFExtractor()

	_, err := e.Extract([]byte("this is not a pdf"))
	assert.Error(t, err)

	_, err = e.Extract(nil)
	assert.Error(t, err)
}
