package ankiconnect

import "testing"

func TestDeckQuery(t *testing.T) {
	if got := DeckQuery("Readwise::imports"); got != `deck:"Readwise::imports"` {
		t.Errorf("DeckQuery = %q", got)
	}
}

func TestFieldQuery_Escapes(t *testing.T) {
	cases := map[string]string{
		`plain`:          `Title:"plain"`,
		`say "hi"`:       `Title:"say \"hi\""`,
		`a_b*c`:          `Title:"a\_b\*c"`,
		`back\slash`:     `Title:"back\\slash"`,
		`Thinking, Fast`: `Title:"Thinking, Fast"`,
	}
	for in, want := range cases {
		if got := FieldQuery("Title", in); got != want {
			t.Errorf("FieldQuery(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAnd(t *testing.T) {
	got := And(DeckQuery("D"), FieldQuery("HighlightID", "7"))
	if got != `deck:"D" HighlightID:"7"` {
		t.Errorf("And = %q", got)
	}
}
