package stringutils

import "strings"

const maxTitleLength = 60

// DefaultTitle is the placeholder title a conversation carries until the
// first turn generates a real one or the user renames it.
const DefaultTitle = "New Conversation"

// TitleFromText derives a short conversation title from free-form text,
// truncating at a word boundary where possible.
func TitleFromText(text string) string {
	content := strings.TrimSpace(text)
	if content == "" {
		return DefaultTitle
	}
	if len(content) <= maxTitleLength {
		return content
	}

	truncated := content[:maxTitleLength]
	if lastSpace := strings.LastIndex(truncated, " "); lastSpace > maxTitleLength/2 {
		return content[:lastSpace] + "..."
	}
	return truncated + "..."
}
