package titles

import "strings"

// genericTitles lists titles too vague to keep. A generated title
// matching one of these triggers a retry, then a fallback to the
// user's first message.
var genericTitles = map[string]struct{}{
	"ai assistance":      {},
	"ai help":            {},
	"ai chat":            {},
	"assistant help":     {},
	"assistance request": {},

	"help request":     {},
	"help needed":      {},
	"need help":        {},
	"help with code":   {},
	"coding help":      {},
	"programming help": {},

	"chat session":     {},
	"new chat":         {},
	"conversation":     {},
	"new conversation": {},

	"general query":      {},
	"technical question": {},
	"user request":       {},
	"user query":         {},
	"question":           {},
	"query":              {},
	"request":            {},

	"code review":      {},
	"code help":        {},
	"debugging help":   {},
	"development help": {},
	"software help":    {},
}

// IsGeneric reports whether a title is too vague to use.
func IsGeneric(title string) bool {
	normalized := strings.ToLower(strings.TrimSpace(title))
	if len(normalized) < 3 {
		return true
	}
	_, blocked := genericTitles[normalized]
	return blocked
}
