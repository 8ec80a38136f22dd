package orchestrator

import (
	"strings"

	"github.com/bronhq/bron/internal/store"
)

// Lead-in phrases that carry no meaning for a title. Checked in order;
// several can strip in sequence ("can you please ...").
var fillerPhrases = []string{
	"can you ", "could you ", "please ", "i need to ", "i want to ",
	"help me ", "i'd like to ", "i would like to ", "let's ",
	"i need ", "i want ", "help ", "can ", "could ",
}

var skipWords = map[string]bool{
	"a": true, "an": true, "the": true, "my": true, "your": true,
	"to": true, "for": true, "with": true, "and": true, "or": true,
	"in": true, "on": true, "at": true, "of": true, "that": true,
	"this": true, "it": true, "is": true, "me": true, "some": true,
	"about": true, "up": true, "out": true, "so": true, "what": true,
	"how": true,
}

// GenerateTitle makes a 1-3 word task title from the user's message.
func GenerateTitle(message string) string {
	text := strings.ToLower(strings.TrimSpace(message))

	for _, phrase := range fillerPhrases {
		if strings.HasPrefix(text, phrase) {
			text = text[len(phrase):]
		}
	}
	text = strings.TrimRight(text, "?!.,")

	words := strings.Fields(text)
	var keyWords []string
	for _, w := range words {
		if !skipWords[w] {
			keyWords = append(keyWords, w)
			if len(keyWords) == 3 {
				break
			}
		}
	}
	if len(keyWords) == 0 {
		if len(words) > 3 {
			words = words[:3]
		}
		keyWords = words
	}

	for i, w := range keyWords {
		keyWords[i] = capitalize(w)
	}
	title := strings.Join(keyWords, " ")
	if title == "" {
		return "New Task"
	}
	return title
}

func capitalize(w string) string {
	if w == "" {
		return w
	}
	return strings.ToUpper(w[:1]) + w[1:]
}

// DetectCategory buckets the message by keyword.
func DetectCategory(text string) store.TaskCategory {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, "email", "calendar", "meeting", "schedule"):
		return store.CategoryAdmin
	case containsAny(lower, "write", "design", "create", "draw"):
		return store.CategoryCreative
	case containsAny(lower, "homework", "study", "class", "exam"):
		return store.CategorySchool
	case containsAny(lower, "work", "project", "deadline", "report"):
		return store.CategoryWork
	}
	return store.CategoryPersonal
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
