package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitPhrases(t *testing.T) {
	t.Run("plain lines", func(t *testing.T) {
		got := splitPhrases("trail running shoes\nshoes for the trail\nbest trail footwear", 3)
		assert.Equal(t, []string{
			"trail running shoes",
			"shoes for the trail",
			"best trail footwear",
		}, got)
	})

	t.Run("numbered and bulleted lines", func(t *testing.T) {
		raw := "1. trail running shoes\n- shoes for the trail\n2) \"best trail footwear\""
		got := splitPhrases(raw, 3)
		assert.Equal(t, []string{
			"trail running shoes",
			"shoes for the trail",
			"best trail footwear",
		}, got)
	})

	t.Run("limit respected", func(t *testing.T) {
		got := splitPhrases("one\ntwo\nthree\nfour", 2)
		assert.Equal(t, []string{"one", "two"}, got)
	})

	t.Run("blank input", func(t *testing.T) {
		assert.Empty(t, splitPhrases("\n  \n", 3))
	})
}
