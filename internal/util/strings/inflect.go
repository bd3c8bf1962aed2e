package strings

import "strings"

var irregularPlurals = map[string]string{
	"person": "people",
	"child":  "children",
	"man":    "men",
	"woman":  "women",
	"tooth":  "teeth",
	"foot":   "feet",
	"mouse":  "mice",
	"goose":  "geese",
	"leaf":   "leaves",
	"life":   "lives",
	"knife":  "knives",
	"wife":   "wives",
	"half":   "halves",
	"wolf":   "wolves",
	"shelf":  "shelves",
	"hero":   "heroes",
	"potato": "potatoes",
	"tomato": "tomatoes",
}

var uncountable = map[string]bool{
	"equipment":   true,
	"information": true,
	"series":      true,
	"species":     true,
	"sheep":       true,
	"fish":        true,
	"news":        true,
	"data":        true,
	"metadata":    true,
}

// Pluralize returns the English plural of a lower-case word
func Pluralize(word string) string {
	if word == "" || uncountable[word] {
		return word
	}
	if plural, ok := irregularPlurals[word]; ok {
		return plural
	}

	switch {
	case strings.HasSuffix(word, "y"):
		if len(word) > 1 && !isVowel(word[len(word)-2]) {
			return word[:len(word)-1] + "ies"
		}
		return word + "s"
	case strings.HasSuffix(word, "s") || strings.HasSuffix(word, "x") ||
		strings.HasSuffix(word, "z") || strings.HasSuffix(word, "ch") ||
		strings.HasSuffix(word, "sh"):
		return word + "es"
	default:
		return word + "s"
	}
}

func isVowel(b byte) bool {
	return strings.IndexByte("aeiou", b) >= 0
}
