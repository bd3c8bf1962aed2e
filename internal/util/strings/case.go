// Package strings derives the identifiers a scaffolded resource needs from
// its CamelCase name: table and route names, Go package names and variable
// names.
package strings

import (
	"strings"
	"unicode"
)

// ToSnakeCase converts CamelCase to snake_case, keeping acronyms together
// (HTTPRequest -> http_request)
func ToSnakeCase(s string) string {
	var result strings.Builder
	runes := []rune(s)

	for i, r := range runes {
		if !unicode.IsUpper(r) {
			result.WriteRune(r)
			continue
		}
		if i > 0 {
			prev := runes[i-1]
			switch {
			case unicode.IsLower(prev), unicode.IsDigit(prev):
				result.WriteRune('_')
			case unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1]):
				// last capital of an acronym starts the next word
				result.WriteRune('_')
			}
		}
		result.WriteRune(unicode.ToLower(r))
	}
	return result.String()
}

// ToLowerCamel lower-cases the leading word of a CamelCase name
// (BlogPost -> blogPost, HTTPRequest -> httpRequest)
func ToLowerCamel(s string) string {
	runes := []rune(s)
	for i, r := range runes {
		if !unicode.IsUpper(r) {
			break
		}
		// keep the capital that starts the next word
		if i > 0 && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
			break
		}
		runes[i] = unicode.ToLower(r)
	}
	return string(runes)
}

// TableName is the plural snake_case form of a model name
// (BlogPost -> blog_posts)
func TableName(name string) string {
	snake := ToSnakeCase(name)
	i := strings.LastIndex(snake, "_")
	return snake[:i+1] + Pluralize(snake[i+1:])
}

// PackageName is the table name without underscores, a valid Go package
// name (BlogPost -> blogposts)
func PackageName(name string) string {
	return strings.ReplaceAll(TableName(name), "_", "")
}
