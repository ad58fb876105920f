package stringutils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTitleFromText(t *testing.T) {
	assert.Equal(t, DefaultTitle, TitleFromText(""))
	assert.Equal(t, DefaultTitle, TitleFromText("   "))
	assert.Equal(t, "short question", TitleFromText("short question"))

	long := strings.Repeat("word ", 30)
	title := TitleFromText(long)
	assert.LessOrEqual(t, len(title), maxTitleLength+3)
	assert.True(t, strings.HasSuffix(title, "..."))

	unbroken := strings.Repeat("x", 100)
	title = TitleFromText(unbroken)
	assert.Equal(t, maxTitleLength+3, len(title))
}
