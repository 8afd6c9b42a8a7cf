package ankiconnect

import (
	"context"
	"encoding/json"

	"github.com/starford/readwise2anki/internal/models"
)

// FieldValue is one field of a notesInfo entry.
type FieldValue struct {
	Value string `json:"value"`
	Order int    `json:"order"`
}

// NoteInfo is one entry of the notesInfo result.
type NoteInfo struct {
	NoteID    int64                 `json:"noteId"`
	ModelName string                `json:"modelName"`
	Tags      []string              `json:"tags"`
	Fields    map[string]FieldValue `json:"fields"`
	Cards     []int64               `json:"cards"`
}

// Existing converts the entry into the domain representation.
func (n NoteInfo) Existing() *models.ExistingNote {
	fields := make(map[string]string, len(n.Fields))
	for name, f := range n.Fields {
		fields[name] = f.Value
	}
	return &models.ExistingNote{
		ID:     n.NoteID,
		Fields: fields,
		Tags:   n.Tags,
		Cards:  n.Cards,
	}
}

// NoteOptions controls duplicate handling on addNote.
type NoteOptions struct {
	AllowDuplicate bool   `json:"allowDuplicate"`
	DuplicateScope string `json:"duplicateScope,omitempty"`
}

// NewNote is the payload of addNote.
type NewNote struct {
	DeckName  string            `json:"deckName"`
	ModelName string            `json:"modelName"`
	Fields    map[string]string `json:"fields"`
	Tags      []string          `json:"tags"`
	Options   *NoteOptions      `json:"options,omitempty"`
}

// DeckConfig is an options group as returned by getDeckConfig. It is kept
// as a generic object because saveDeckConfig expects it back whole.
type DeckConfig map[string]any

// Version returns the AnkiConnect protocol version.
func (c *Client) Version(ctx context.Context) (int, error) {
	var v int
	err := c.Invoke(ctx, "version", nil, &v)
	return v, err
}

// CreateDeck creates deck if it does not exist yet.
func (c *Client) CreateDeck(ctx context.Context, deck string) (int64, error) {
	var id int64
	err := c.Invoke(ctx, "createDeck", map[string]any{"deck": deck}, &id)
	return id, err
}

// ModelNames lists note type names.
func (c *Client) ModelNames(ctx context.Context) ([]string, error) {
	var names []string
	err := c.Invoke(ctx, "modelNames", nil, &names)
	return names, err
}

// ModelFieldNames lists the fields of a note type in order.
func (c *Client) ModelFieldNames(ctx context.Context, model string) ([]string, error) {
	var names []string
	err := c.Invoke(ctx, "modelFieldNames", map[string]any{"modelName": model}, &names)
	return names, err
}

// ModelTemplates returns the card templates of a note type keyed by card name.
func (c *Client) ModelTemplates(ctx context.Context, model string) (map[string]map[string]string, error) {
	var out map[string]map[string]string
	err := c.Invoke(ctx, "modelTemplates", map[string]any{"modelName": model}, &out)
	return out, err
}

// ModelStyling returns the CSS of a note type.
func (c *Client) ModelStyling(ctx context.Context, model string) (string, error) {
	var out struct {
		CSS string `json:"css"`
	}
	err := c.Invoke(ctx, "modelStyling", map[string]any{"modelName": model}, &out)
	return out.CSS, err
}

// CreateModel creates a note type.
func (c *Client) CreateModel(ctx context.Context, nt NoteType) error {
	return c.Invoke(ctx, "createModel", map[string]any{
		"modelName":     nt.Name,
		"inOrderFields": nt.Fields,
		"css":           nt.CSS,
		"cardTemplates": nt.Templates,
	}, nil)
}

// GetDeckConfig returns the options group of deck, or nil when the deck
// does not exist.
func (c *Client) GetDeckConfig(ctx context.Context, deck string) (DeckConfig, error) {
	var raw json.RawMessage
	if err := c.Invoke(ctx, "getDeckConfig", map[string]any{"deck": deck}, &raw); err != nil {
		return nil, err
	}
	if isNull(raw) || string(raw) == "false" {
		return nil, nil
	}
	var cfg DeckConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, &ProtocolError{Action: "getDeckConfig", Reason: "decode result: " + err.Error()}
	}
	return cfg, nil
}

// SaveDeckConfig writes back an options group.
func (c *Client) SaveDeckConfig(ctx context.Context, cfg DeckConfig) error {
	return c.Invoke(ctx, "saveDeckConfig", map[string]any{"config": cfg}, nil)
}

// CloneDeckConfigID clones the options group cloneFrom under a new name.
func (c *Client) CloneDeckConfigID(ctx context.Context, name string, cloneFrom int64) (int64, error) {
	var id int64
	err := c.Invoke(ctx, "cloneDeckConfigId", map[string]any{"name": name, "cloneFrom": cloneFrom}, &id)
	return id, err
}

// SetDeckConfigID assigns an options group to decks.
func (c *Client) SetDeckConfigID(ctx context.Context, decks []string, configID int64) error {
	return c.Invoke(ctx, "setDeckConfigId", map[string]any{"decks": decks, "configId": configID}, nil)
}

// FindNotes returns the ids of notes matching an Anki search query.
func (c *Client) FindNotes(ctx context.Context, query string) ([]int64, error) {
	var ids []int64
	err := c.Invoke(ctx, "findNotes", map[string]any{"query": query}, &ids)
	return ids, err
}

// NotesInfo returns fields, tags and cards of the given notes.
func (c *Client) NotesInfo(ctx context.Context, ids []int64) ([]NoteInfo, error) {
	var out []NoteInfo
	err := c.Invoke(ctx, "notesInfo", map[string]any{"notes": ids}, &out)
	return out, err
}

// AddNote creates a note and returns its id.
func (c *Client) AddNote(ctx context.Context, note NewNote) (int64, error) {
	var id int64
	err := c.Invoke(ctx, "addNote", map[string]any{"note": note}, &id)
	return id, err
}

// UpdateNoteFields overwrites the given fields of a note.
func (c *Client) UpdateNoteFields(ctx context.Context, id int64, fields map[string]string) error {
	return c.Invoke(ctx, "updateNoteFields", map[string]any{
		"note": map[string]any{"id": id, "fields": fields},
	}, nil)
}

// UpdateNoteTags replaces the tag list of a note.
func (c *Client) UpdateNoteTags(ctx context.Context, id int64, tags []string) error {
	return c.Invoke(ctx, "updateNoteTags", map[string]any{"note": id, "tags": tags}, nil)
}

// Suspend suspends cards.
func (c *Client) Suspend(ctx context.Context, cards []int64) error {
	return c.Invoke(ctx, "suspend", map[string]any{"cards": cards}, nil)
}

// Unsuspend unsuspends cards.
func (c *Client) Unsuspend(ctx context.Context, cards []int64) error {
	return c.Invoke(ctx, "unsuspend", map[string]any{"cards": cards}, nil)
}

// AreSuspended reports the suspension state of each card. Unknown cards
// report false.
func (c *Client) AreSuspended(ctx context.Context, cards []int64) ([]bool, error) {
	var raw []*bool
	if err := c.Invoke(ctx, "areSuspended", map[string]any{"cards": cards}, &raw); err != nil {
		return nil, err
	}
	out := make([]bool, len(raw))
	for i, v := range raw {
		out[i] = v != nil && *v
	}
	return out, nil
}

// DeleteNotes deletes notes and their cards.
func (c *Client) DeleteNotes(ctx context.Context, ids []int64) error {
	return c.Invoke(ctx, "deleteNotes", map[string]any{"notes": ids}, nil)
}
