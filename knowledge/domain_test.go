package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatContextEmpty(t *testing.T) {
	assert.Equal(t, "", FormatContext(nil))
	assert.Equal(t, "", FormatContext([]SearchResult{}))
}

func TestFormatContextNumbersSources(t *testing.T) {
	results := []SearchResult{
		{Document: Document{Title: "Delivery", Text: "Toshkent bo'ylab yetkazib berish bepul."}, Score: 0.91},
		{Document: Document{Text: "Payment by card or cash."}, Score: 0.52},
	}

	out := FormatContext(results)
	assert.Contains(t, out, "[Source 1] (relevance: 0.91)")
	assert.Contains(t, out, "Delivery\nToshkent bo'ylab yetkazib berish bepul.")
	assert.Contains(t, out, "[Source 2] (relevance: 0.52)")
	assert.Contains(t, out, "Payment by card or cash.")
}
