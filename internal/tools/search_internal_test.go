package tools

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestShorten(t *testing.T) {
	assert.Equal(t, "index=main", shorten("index=main", 30))
	assert.Equal(t, "index...", shorten("index=main", 5))

	got := shorten("search host=ünïcödé", 14)
	assert.True(t, utf8.ValidString(got), "cut lands on a rune boundary")
	assert.Equal(t, "search host=ün...", got)
}
