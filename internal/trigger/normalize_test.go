package trigger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	n := newNormalizer(DefaultStopwords)
	tests := []struct {
		in   string
		want string
	}{
		{"Please, CLIP that moment!", "clip that moment"},
		{"ÉCLAIR time", "éclair time"},
		{"a b 5 clip", "5 clip"},
		{"uh... save-that", "save that"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, n.normalize(tt.in), tt.in)
	}
}

func TestContainsPhrase(t *testing.T) {
	t.Parallel()

	tests := []struct {
		phrase, keyword string
		want            bool
	}{
		{"clip that", "clip that", true},
		{"please clip that moment", "clip that", true},
		{"clipping that", "clip", true},
		{"we clipped it", "clip", true},
		{"total eclipse", "clip", false},
		{"saved that", "save that", false},
		{"anything", "", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, containsPhrase(tt.phrase, tt.keyword), "%q in %q", tt.keyword, tt.phrase)
	}
}

func TestPrefixedKeywordAccepted(t *testing.T) {
	t.Parallel()

	d := NewDetector(DefaultConfig())
	out := d.Phrase("clipping that")
	assert.True(t, out.Accepted, "rejected with %q", out.Reason)
}

func TestSimilarity(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 100, Similarity("clip", "clip"))
	assert.Equal(t, 75, Similarity("clip", "clap"))
	assert.Equal(t, 80, Similarity("clip", "clips"))
	assert.Equal(t, 0, Similarity("clip", "moon"))
	assert.Equal(t, 100, Similarity("", ""))
}

func TestParseRecognizerLine(t *testing.T) {
	t.Parallel()

	res, ok := ParseRecognizerLine([]byte(`{"text": " clip that "}`))
	assert.True(t, ok)
	assert.Equal(t, "clip that", res.Text)

	res, ok = ParseRecognizerLine([]byte("plain words"))
	assert.True(t, ok)
	assert.Equal(t, "plain words", res.Text)

	_, ok = ParseRecognizerLine([]byte(`{"result": []}`))
	assert.False(t, ok)

	_, ok = ParseRecognizerLine(nil)
	assert.False(t, ok)
}
