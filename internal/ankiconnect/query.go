package ankiconnect

import "strings"

var searchEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	`*`, `\*`,
	`_`, `\_`,
)

// Escape makes s match literally inside a quoted Anki search term.
func Escape(s string) string {
	return searchEscaper.Replace(s)
}

// DeckQuery restricts a search to one deck (and its subdecks).
func DeckQuery(deck string) string {
	return `deck:"` + Escape(deck) + `"`
}

// FieldQuery matches notes whose field equals value exactly.
func FieldQuery(field, value string) string {
	return field + `:"` + Escape(value) + `"`
}

// And joins search terms.
func And(terms ...string) string {
	return strings.Join(terms, " ")
}
