package question

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveShortForms(t *testing.T) {
	got := Resolve(map[string]any{
		"q":   "2+2=?",
		"a":   "4",
		"e":   "basic arithmetic",
		"d":   "easy",
		"src": "math-drills",
		"tag": []any{"math"},
	})

	assert.Equal(t, map[string]any{
		"question_text":    "2+2=?",
		"correct_answer":   "4",
		"explanation":      "basic arithmetic",
		"difficulty_level": "easy",
		"source":           "math-drills",
		"tags":             []any{"math"},
	}, got)
}

func TestResolveLongFormsUnchanged(t *testing.T) {
	input := map[string]any{
		"question_text":  "what is a noun?",
		"correct_answer": "a word",
		"subject":        "grammar",
	}

	assert.Equal(t, input, Resolve(input))
}

func TestResolveUnknownKeysPassThrough(t *testing.T) {
	got := Resolve(map[string]any{
		"q":               "hi?",
		"client_metadata": map[string]any{"v": 2},
		"x-custom":        "kept",
	})

	assert.Equal(t, "hi?", got["question_text"])
	assert.Equal(t, map[string]any{"v": 2}, got["client_metadata"])
	assert.Equal(t, "kept", got["x-custom"])
}

func TestResolveLongFormWinsOverShortForm(t *testing.T) {
	// Precedence must not depend on map iteration order.
	for i := 0; i < 20; i++ {
		got := Resolve(map[string]any{
			"q":             "short form",
			"question_text": "long form",
		})
		assert.Equal(t, "long form", got["question_text"])
		assert.NotContains(t, got, "q")
	}
}

func TestResolveIdempotent(t *testing.T) {
	inputs := []map[string]any{
		{"q": "2+2=?", "a": "4", "d": "easy"},
		{"question_text": "hi", "tags": "[]"},
		{"unknown": 1, "src": "x"},
		nil,
	}
	for _, input := range inputs {
		once := Resolve(input)
		assert.Equal(t, once, Resolve(once))
	}
}

func TestResolveNil(t *testing.T) {
	assert.Nil(t, Resolve(nil))
}
