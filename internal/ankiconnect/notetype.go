package ankiconnect

import (
	"slices"
	"strings"

	"github.com/starford/readwise2anki/internal/models"
)

// DefaultNoteType is the name of the note type this tool creates.
const DefaultNoteType = "Readwise Highlight"

// NoteTypeVersion is bumped whenever the canonical fields, CSS or templates change.
const NoteTypeVersion = 1

// CardTemplate is one card of a note type.
type CardTemplate struct {
	Name  string `json:"Name"`
	Front string `json:"Front"`
	Back  string `json:"Back"`
}

// NoteType describes a note type. After provisioning Fields holds what the
// store actually exposes, which may lag behind the canonical list.
type NoteType struct {
	Name      string
	Version   int
	Fields    []string
	CSS       string
	Templates []CardTemplate
}

// Has reports whether the note type has field name.
func (nt NoteType) Has(name string) bool {
	return slices.Contains(nt.Fields, name)
}

// HighlightNoteType returns the canonical note type under the given name.
func HighlightNoteType(name string) NoteType {
	if strings.TrimSpace(name) == "" {
		name = DefaultNoteType
	}
	return NoteType{
		Name:    name,
		Version: NoteTypeVersion,
		Fields:  slices.Clone(models.NoteFieldNames),
		CSS:     highlightCSS,
		Templates: []CardTemplate{
			{Name: "Card 1", Front: highlightFront, Back: highlightBack},
		},
	}
}

const highlightCSS = `
.card {
    font-family: arial;
    text-align: left;
    color: black;
    background-color: white;
}
.highlight {
    margin-bottom: 20px;
    line-height: 1.4;
}
.source {
    color: #666;
    font-style: italic;
    margin-bottom: 20px;
}
.metadata {
    color: #555;
}
.metadata div {
    margin: 5px 0;
}
.note {
    margin-top: 15px;
    padding: 10px;
    background-color: #f0f0f0;
    border-left: 3px solid #4CAF50;
}
.color-indicator {
    display: inline-block;
    width: 12px;
    height: 12px;
    border-radius: 50%;
    margin-right: 8px;
    vertical-align: middle;
}
.favorite-icon {
    color: red;
    margin-left: 8px;
}
.url-link {
    word-break: break-all;
}
`

const highlightFront = `<div class="highlight">{{Text}}</div>
<div class="source">— {{Title}}</div>`

const highlightBack = `{{FrontSide}}
<hr id="answer">
<div class="metadata">
    <div><strong>Author:</strong> {{Author}}</div>
    <div><strong>Source:</strong> {{Source}}</div>
    <div><strong>Category:</strong> {{Category}}</div>
    {{#Note}}<div class="note"><strong>Note:</strong> {{Note}}</div>{{/Note}}
    {{#HighlightURL}}<div class="url-link"><a href="{{HighlightURL}}" target="_blank">View Source ↗</a></div>{{/HighlightURL}}
    {{#ReadwiseURL}}<div><a href="{{ReadwiseURL}}" target="_blank">On Readwise.com ↗</a></div>{{/ReadwiseURL}}
    <div>{{#IsFavorite}}<span class="favorite-icon">❤️</span>{{/IsFavorite}}{{#Color}}<span class="color-indicator" style="background-color: {{Color}};"></span>{{/Color}}</div>
</div>`
