package remote

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDocumentString(t *testing.T) {
	doc := Document{"name": "Deneme 1", "score": 450.0}

	s, ok := doc.String("name")
	assert.True(t, ok)
	assert.Equal(t, "Deneme 1", s)

	_, ok = doc.String("score")
	assert.False(t, ok)
	_, ok = doc.String("missing")
	assert.False(t, ok)

	assert.Equal(t, "fallback", doc.StringOr("missing", "fallback"))
}

func TestDocumentNumbers(t *testing.T) {
	doc := Document{"float": 12.5, "int": 8, "text": "oops"}

	f, ok := doc.Float("float")
	assert.True(t, ok)
	assert.Equal(t, 12.5, f)

	f, ok = doc.Float("int")
	assert.True(t, ok)
	assert.Equal(t, 8.0, f)

	_, ok = doc.Float("text")
	assert.False(t, ok)

	n, ok := doc.Int("float")
	assert.True(t, ok)
	assert.Equal(t, 12, n)

	assert.Equal(t, 5, doc.IntOr("missing", 5))
	assert.Equal(t, 1.5, doc.FloatOr("text", 1.5))
}

func TestDocumentTime(t *testing.T) {
	stamp := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
	doc := Document{"createdAt": Timestamp(stamp), "bad": "not-a-date"}

	parsed, ok := doc.Time("createdAt")
	assert.True(t, ok)
	assert.True(t, parsed.Equal(stamp))

	_, ok = doc.Time("bad")
	assert.False(t, ok)
	_, ok = doc.Time("missing")
	assert.False(t, ok)
}

func TestDocumentChild(t *testing.T) {
	doc := Document{
		"targets": map[string]interface{}{"totalScore": 420.0},
		"nested":  Document{"x": "y"},
		"scalar":  1,
	}

	targets, ok := doc.Child("targets")
	assert.True(t, ok)
	assert.Equal(t, 420.0, targets.FloatOr("totalScore", 0))

	nested, ok := doc.Child("nested")
	assert.True(t, ok)
	assert.Equal(t, "y", nested.StringOr("x", ""))

	_, ok = doc.Child("scalar")
	assert.False(t, ok)
}
