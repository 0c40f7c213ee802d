package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_KnownKinds(t *testing.T) {
	note := Classify(1)
	assert.Equal(t, "note", note.Category)
	assert.Equal(t, 8, note.Priority)
	assert.Contains(t, note.Extractors, ExtractorHashtags)

	longform := Classify(30023)
	assert.Equal(t, "longform", longform.Category)
	assert.GreaterOrEqual(t, longform.Priority, 3)
}

func TestClassify_EphemeralKindsAreLowPriority(t *testing.T) {
	c := Classify(22222)
	assert.Equal(t, "ephemeral", c.Category)
	assert.Equal(t, 1, c.Priority)
}

func TestClassify_UnknownKindFallsBackUnclassified(t *testing.T) {
	c := Classify(99999)
	assert.Equal(t, "unclassified", c.Category)
	assert.Equal(t, 2, c.Priority)
}
