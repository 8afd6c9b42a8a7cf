package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

// FakeNote is a note held by FakeAnki.
type FakeNote struct {
	ID     int64
	Deck   string
	Model  string
	Fields map[string]string
	Tags   []string
	Cards  []int64
}

// Call is one action received by FakeAnki.
type Call struct {
	Action string
	Params json.RawMessage
}

type fakeModel struct {
	fields    []string
	css       string
	templates map[string]map[string]string
}

// FakeAnki is an in-memory AnkiConnect served over HTTP. It understands the
// actions the sync uses and the subset of the search syntax it generates:
// space-separated deck:"..." and Field:"..." (or Field:value) terms.
type FakeAnki struct {
	Server *httptest.Server

	mu        sync.Mutex
	notes     map[int64]*FakeNote
	suspended map[int64]bool
	decks     map[string]int64
	models    map[string]*fakeModel
	configs   map[int64]map[string]any
	calls     []Call
	failures  map[string]string
	raw       map[string]string
	nextID    int64
}

// NewFakeAnki starts a FakeAnki that is shut down when the test ends.
func NewFakeAnki(t *testing.T) *FakeAnki {
	t.Helper()
	f := &FakeAnki{
		notes:     make(map[int64]*FakeNote),
		suspended: make(map[int64]bool),
		decks:     map[string]int64{"Default": 1},
		models:    make(map[string]*fakeModel),
		configs: map[int64]map[string]any{
			1: {
				"id":   float64(1),
				"name": "Default",
				"new":  map[string]any{"delays": []any{float64(1), float64(10)}, "ints": []any{float64(1), float64(4), float64(0)}},
				"rev":  map[string]any{"ease4": 1.3},
			},
		},
		failures: make(map[string]string),
		raw:      make(map[string]string),
		nextID:   1000,
	}

	r := chi.NewRouter()
	r.Post("/", f.handle)
	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the endpoint to point an AnkiConnect client at.
func (f *FakeAnki) URL() string { return f.Server.URL }

// AddModel registers a note type.
func (f *FakeAnki) AddModel(name string, fields []string, css string, templates map[string]map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.models[name] = &fakeModel{fields: slices.Clone(fields), css: css, templates: templates}
}

// ModelFields returns the fields of a note type, or nil when absent.
func (f *FakeAnki) ModelFields(name string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.models[name]; ok {
		return slices.Clone(m.fields)
	}
	return nil
}

// AddNote stores a note with one card directly, bypassing the API.
func (f *FakeAnki) AddNote(deck, model string, fields map[string]string, tags []string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.decks[deck]; !ok {
		f.decks[deck] = 1
	}
	return f.insert(deck, model, fields, tags)
}

func (f *FakeAnki) insert(deck, model string, fields map[string]string, tags []string) int64 {
	f.nextID++
	id := f.nextID
	f.notes[id] = &FakeNote{
		ID:     id,
		Deck:   deck,
		Model:  model,
		Fields: maps.Clone(fields),
		Tags:   slices.Clone(tags),
		Cards:  []int64{id*10 + 1},
	}
	return id
}

// Note returns a copy of a stored note.
func (f *FakeAnki) Note(id int64) (FakeNote, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notes[id]
	if !ok {
		return FakeNote{}, false
	}
	return copyNote(n), true
}

// Notes returns copies of all stored notes ordered by id.
func (f *FakeAnki) Notes() []FakeNote {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := slices.Sorted(maps.Keys(f.notes))
	out := make([]FakeNote, 0, len(ids))
	for _, id := range ids {
		out = append(out, copyNote(f.notes[id]))
	}
	return out
}

// NoteByField returns the first note whose field equals value.
func (f *FakeAnki) NoteByField(field, value string) (FakeNote, bool) {
	for _, n := range f.Notes() {
		if n.Fields[field] == value {
			return n, true
		}
	}
	return FakeNote{}, false
}

// SetSuspended sets the suspension state of every card of a note.
func (f *FakeAnki) SetSuspended(noteID int64, suspended bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n, ok := f.notes[noteID]; ok {
		for _, c := range n.Cards {
			f.suspended[c] = suspended
		}
	}
}

// Suspended reports whether any card of a note is suspended.
func (f *FakeAnki) Suspended(noteID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notes[noteID]
	if !ok {
		return false
	}
	for _, c := range n.Cards {
		if f.suspended[c] {
			return true
		}
	}
	return false
}

// HasDeck reports whether a deck exists.
func (f *FakeAnki) HasDeck(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.decks[name]
	return ok
}

// DeckConfig returns a copy of the options group assigned to a deck.
func (f *FakeAnki) DeckConfig(deck string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.decks[deck]
	if !ok {
		return nil
	}
	return deepCopy(f.configs[id])
}

// Fail makes every later call of action answer with msg in the error field.
// An empty msg clears the failure.
func (f *FakeAnki) Fail(action, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg == "" {
		delete(f.failures, action)
		return
	}
	f.failures[action] = msg
}

// Respond makes every later call of action answer with body verbatim.
func (f *FakeAnki) Respond(action, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raw[action] = body
}

// Calls returns the actions received so far.
func (f *FakeAnki) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// CallCount returns how often action was received.
func (f *FakeAnki) CallCount(action string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Action == action {
			n++
		}
	}
	return n
}

// MutationCount returns the number of calls that change notes or cards.
func (f *FakeAnki) MutationCount() int {
	n := 0
	for _, a := range []string{"addNote", "updateNoteFields", "updateNoteTags", "suspend", "unsuspend", "deleteNotes"} {
		n += f.CallCount(a)
	}
	return n
}

// ResetCalls forgets the recorded calls.
func (f *FakeAnki) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

type ankiRequest struct {
	Action  string          `json:"action"`
	Version int             `json:"version"`
	Params  json.RawMessage `json:"params"`
}

func (f *FakeAnki) handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req ankiRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"result": nil, "error": "invalid request: " + err.Error()})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Action: req.Action, Params: req.Params})

	if raw, ok := f.raw[req.Action]; ok {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, raw)
		return
	}
	if msg, ok := f.failures[req.Action]; ok {
		writeJSON(w, http.StatusOK, map[string]any{"result": nil, "error": msg})
		return
	}

	result, err := f.dispatch(req.Action, req.Params)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"result": nil, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": result, "error": nil})
}

func (f *FakeAnki) dispatch(action string, raw json.RawMessage) (any, error) {
	var p struct {
		Deck          string              `json:"deck"`
		Decks         []string            `json:"decks"`
		ModelName     string              `json:"modelName"`
		InOrderFields []string            `json:"inOrderFields"`
		CSS           string              `json:"css"`
		CardTemplates []map[string]string `json:"cardTemplates"`
		Config        map[string]any      `json:"config"`
		ConfigID      int64               `json:"configId"`
		Name          string              `json:"name"`
		CloneFrom     int64               `json:"cloneFrom"`
		Query         string              `json:"query"`
		Notes         []int64             `json:"notes"`
		Cards         []int64             `json:"cards"`
		Tags          []string            `json:"tags"`
		Note          json.RawMessage     `json:"note"`
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("invalid params: %v", err)
		}
	}

	switch action {
	case "version":
		return 6, nil

	case "createDeck":
		if _, ok := f.decks[p.Deck]; !ok {
			f.decks[p.Deck] = 1
		}
		return int64(len(f.decks)), nil

	case "modelNames":
		return slices.Sorted(maps.Keys(f.models)), nil

	case "modelFieldNames":
		m, ok := f.models[p.ModelName]
		if !ok {
			return nil, fmt.Errorf("model was not found: %s", p.ModelName)
		}
		return m.fields, nil

	case "modelTemplates":
		m, ok := f.models[p.ModelName]
		if !ok {
			return nil, fmt.Errorf("model was not found: %s", p.ModelName)
		}
		return m.templates, nil

	case "modelStyling":
		m, ok := f.models[p.ModelName]
		if !ok {
			return nil, fmt.Errorf("model was not found: %s", p.ModelName)
		}
		return map[string]string{"css": m.css}, nil

	case "createModel":
		if _, ok := f.models[p.ModelName]; ok {
			return nil, fmt.Errorf("Model name already exists")
		}
		templates := make(map[string]map[string]string, len(p.CardTemplates))
		for _, t := range p.CardTemplates {
			templates[t["Name"]] = map[string]string{"Front": t["Front"], "Back": t["Back"]}
		}
		f.models[p.ModelName] = &fakeModel{fields: p.InOrderFields, css: p.CSS, templates: templates}
		return map[string]any{"name": p.ModelName}, nil

	case "getDeckConfig":
		id, ok := f.decks[p.Deck]
		if !ok {
			return false, nil
		}
		return f.configs[id], nil

	case "saveDeckConfig":
		id, _ := p.Config["id"].(float64)
		if _, ok := f.configs[int64(id)]; !ok {
			return false, nil
		}
		f.configs[int64(id)] = deepCopy(p.Config)
		return true, nil

	case "cloneDeckConfigId":
		src, ok := f.configs[p.CloneFrom]
		if !ok {
			return false, nil
		}
		id := int64(len(f.configs) + 1)
		for f.configs[id] != nil {
			id++
		}
		clone := deepCopy(src)
		clone["id"] = float64(id)
		clone["name"] = p.Name
		f.configs[id] = clone
		return id, nil

	case "setDeckConfigId":
		if _, ok := f.configs[p.ConfigID]; !ok {
			return false, nil
		}
		for _, d := range p.Decks {
			if _, ok := f.decks[d]; !ok {
				return false, nil
			}
		}
		for _, d := range p.Decks {
			f.decks[d] = p.ConfigID
		}
		return true, nil

	case "findNotes":
		terms, err := parseQuery(p.Query)
		if err != nil {
			return nil, err
		}
		ids := []int64{}
		for _, id := range slices.Sorted(maps.Keys(f.notes)) {
			if matches(f.notes[id], terms) {
				ids = append(ids, id)
			}
		}
		return ids, nil

	case "notesInfo":
		out := make([]any, 0, len(p.Notes))
		for _, id := range p.Notes {
			n, ok := f.notes[id]
			if !ok {
				out = append(out, map[string]any{})
				continue
			}
			out = append(out, f.noteInfo(n))
		}
		return out, nil

	case "addNote":
		var n struct {
			DeckName  string            `json:"deckName"`
			ModelName string            `json:"modelName"`
			Fields    map[string]string `json:"fields"`
			Tags      []string          `json:"tags"`
		}
		if err := json.Unmarshal(p.Note, &n); err != nil {
			return nil, fmt.Errorf("invalid note: %v", err)
		}
		if _, ok := f.decks[n.DeckName]; !ok {
			return nil, fmt.Errorf("deck was not found: %s", n.DeckName)
		}
		m, ok := f.models[n.ModelName]
		if !ok {
			return nil, fmt.Errorf("model was not found: %s", n.ModelName)
		}
		fields := make(map[string]string, len(m.fields))
		for _, name := range m.fields {
			fields[name] = n.Fields[name]
		}
		return f.insert(n.DeckName, n.ModelName, fields, n.Tags), nil

	case "updateNoteFields":
		var n struct {
			ID     int64             `json:"id"`
			Fields map[string]string `json:"fields"`
		}
		if err := json.Unmarshal(p.Note, &n); err != nil {
			return nil, fmt.Errorf("invalid note: %v", err)
		}
		note, ok := f.notes[n.ID]
		if !ok {
			return nil, fmt.Errorf("note was not found: %d", n.ID)
		}
		for k, v := range n.Fields {
			if _, exists := note.Fields[k]; exists {
				note.Fields[k] = v
			}
		}
		return nil, nil

	case "updateNoteTags":
		var id int64
		if err := json.Unmarshal(p.Note, &id); err != nil {
			return nil, fmt.Errorf("invalid note id: %v", err)
		}
		note, ok := f.notes[id]
		if !ok {
			return nil, fmt.Errorf("note was not found: %d", id)
		}
		note.Tags = slices.Clone(p.Tags)
		return nil, nil

	case "suspend", "unsuspend":
		state := action == "suspend"
		changed := false
		for _, c := range p.Cards {
			if f.suspended[c] != state {
				changed = true
			}
			f.suspended[c] = state
		}
		return changed, nil

	case "areSuspended":
		out := make([]any, len(p.Cards))
		for i, c := range p.Cards {
			if f.cardExists(c) {
				out[i] = f.suspended[c]
			}
		}
		return out, nil

	case "deleteNotes":
		for _, id := range p.Notes {
			if n, ok := f.notes[id]; ok {
				for _, c := range n.Cards {
					delete(f.suspended, c)
				}
				delete(f.notes, id)
			}
		}
		return nil, nil
	}
	return nil, fmt.Errorf("unsupported action")
}

func (f *FakeAnki) cardExists(card int64) bool {
	for _, n := range f.notes {
		if slices.Contains(n.Cards, card) {
			return true
		}
	}
	return false
}

func (f *FakeAnki) noteInfo(n *FakeNote) map[string]any {
	var order []string
	if m, ok := f.models[n.Model]; ok {
		order = m.fields
	}
	fields := make(map[string]any, len(n.Fields))
	for name, v := range n.Fields {
		idx := slices.Index(order, name)
		if idx < 0 {
			idx = len(order)
		}
		fields[name] = map[string]any{"value": v, "order": idx}
	}
	return map[string]any{
		"noteId":    n.ID,
		"modelName": n.Model,
		"tags":      n.Tags,
		"fields":    fields,
		"cards":     n.Cards,
	}
}

type queryTerm struct {
	key   string
	value string
}

// parseQuery splits a search into key:value terms. Quoted values may
// contain spaces; backslash escapes the next character.
func parseQuery(q string) ([]queryTerm, error) {
	var (
		tokens []string
		cur    strings.Builder
		quoted bool
	)
	runes := []rune(q)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\\' && i+1 < len(runes):
			cur.WriteRune(r)
			cur.WriteRune(runes[i+1])
			i++
		case r == '"':
			quoted = !quoted
			cur.WriteRune(r)
		case r == ' ' && !quoted:
			if cur.Len() > 0 {
				tokens = append(tokens, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if quoted {
		return nil, fmt.Errorf("unterminated quote in query: %s", q)
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}

	terms := make([]queryTerm, 0, len(tokens))
	for _, tok := range tokens {
		key, value, ok := strings.Cut(tok, ":")
		if !ok {
			return nil, fmt.Errorf("unsupported search term: %s", tok)
		}
		if len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
			value = value[1 : len(value)-1]
		}
		terms = append(terms, queryTerm{key: key, value: unescape(value)})
	}
	return terms, nil
}

func unescape(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		if runes[i] == '\\' && i+1 < len(runes) {
			i++
		}
		b.WriteRune(runes[i])
	}
	return b.String()
}

func matches(n *FakeNote, terms []queryTerm) bool {
	for _, t := range terms {
		if strings.EqualFold(t.key, "deck") {
			if n.Deck != t.value && !strings.HasPrefix(n.Deck, t.value+"::") {
				return false
			}
			continue
		}
		v, ok := n.Fields[t.key]
		if !ok || !strings.EqualFold(v, t.value) {
			return false
		}
	}
	return true
}

func copyNote(n *FakeNote) FakeNote {
	return FakeNote{
		ID:     n.ID,
		Deck:   n.Deck,
		Model:  n.Model,
		Fields: maps.Clone(n.Fields),
		Tags:   slices.Clone(n.Tags),
		Cards:  slices.Clone(n.Cards),
	}
}

func deepCopy(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	b, _ := json.Marshal(m)
	var out map[string]any
	_ = json.Unmarshal(b, &out)
	return out
}
