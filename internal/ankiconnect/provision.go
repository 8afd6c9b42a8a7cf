package ankiconnect

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

// PresetName is the options group assigned to the sync deck.
const PresetName = "Readwise Learning"

// Learning steps in minutes (3d, 10d, 30d), graduating and easy interval in
// days, and the easy bonus of the preset.
var (
	presetDelays = []float64{4320, 14400, 43200}
	presetInts   = []float64{30, 30}
	presetEase4  = 1.3
)

// Provision prepares the store for a sync: it checks that AnkiConnect
// answers, creates the deck, applies the deck preset and creates or
// validates the note type. It returns the note type as the store exposes it.
// Only connection and deck failures are fatal.
func Provision(ctx context.Context, c *Client, deck string, want NoteType, logger *slog.Logger) (NoteType, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if _, err := c.Version(ctx); err != nil {
		return NoteType{}, fmt.Errorf("cannot connect to Anki (is it running with AnkiConnect installed?): %w", err)
	}
	if _, err := c.CreateDeck(ctx, deck); err != nil {
		return NoteType{}, fmt.Errorf("create deck %q: %w", deck, err)
	}

	if err := configurePreset(ctx, c, deck, logger); err != nil {
		logger.Debug("provision: deck preset not configured",
			slog.String("deck", deck),
			slog.String("error", err.Error()),
		)
	}

	return ensureNoteType(ctx, c, want, logger)
}

func configurePreset(ctx context.Context, c *Client, deck string, logger *slog.Logger) error {
	cfg, err := c.GetDeckConfig(ctx, deck)
	if err != nil {
		return err
	}
	if cfg == nil {
		return nil
	}

	if name, _ := cfg["name"].(string); name == PresetName {
		if delaysMatch(cfg) {
			return nil
		}
		if err := applyPreset(cfg); err != nil {
			return err
		}
		if err := c.SaveDeckConfig(ctx, cfg); err != nil {
			return err
		}
		logger.Info("provision: updated deck preset", slog.String("preset", PresetName))
		return nil
	}

	currentID, ok := cfg["id"].(float64)
	if !ok {
		return fmt.Errorf("deck config of %q has no id", deck)
	}
	newID, err := c.CloneDeckConfigID(ctx, PresetName, int64(currentID))
	if err != nil {
		return err
	}
	if err := c.SetDeckConfigID(ctx, []string{deck}, newID); err != nil {
		return err
	}
	cfg, err = c.GetDeckConfig(ctx, deck)
	if err != nil {
		return err
	}
	if cfg == nil {
		return fmt.Errorf("deck config of %q vanished after clone", deck)
	}
	if err := applyPreset(cfg); err != nil {
		return err
	}
	if err := c.SaveDeckConfig(ctx, cfg); err != nil {
		return err
	}
	logger.Info("provision: created deck preset",
		slog.String("preset", PresetName),
		slog.String("steps", "3d 10d 30d"),
	)
	return nil
}

func delaysMatch(cfg DeckConfig) bool {
	section, _ := cfg["new"].(map[string]any)
	raw, _ := section["delays"].([]any)
	if len(raw) != len(presetDelays) {
		return false
	}
	for i, v := range raw {
		f, ok := v.(float64)
		if !ok || f != presetDelays[i] {
			return false
		}
	}
	return true
}

func applyPreset(cfg DeckConfig) error {
	newSection, ok := cfg["new"].(map[string]any)
	if !ok {
		return fmt.Errorf("deck config has no new section")
	}
	revSection, ok := cfg["rev"].(map[string]any)
	if !ok {
		return fmt.Errorf("deck config has no rev section")
	}
	newSection["delays"] = slices.Clone(presetDelays)
	newSection["ints"] = slices.Clone(presetInts)
	revSection["ease4"] = presetEase4
	return nil
}

func ensureNoteType(ctx context.Context, c *Client, want NoteType, logger *slog.Logger) (NoteType, error) {
	names, err := c.ModelNames(ctx)
	if err != nil {
		return NoteType{}, fmt.Errorf("list note types: %w", err)
	}
	if !slices.Contains(names, want.Name) {
		if err := c.CreateModel(ctx, want); err != nil {
			return NoteType{}, fmt.Errorf("create note type %q: %w", want.Name, err)
		}
		logger.Info("provision: created note type", slog.String("note_type", want.Name))
		return want, nil
	}

	got := want
	fields, err := c.ModelFieldNames(ctx, want.Name)
	if err != nil {
		logger.Debug("provision: could not read note type fields",
			slog.String("note_type", want.Name),
			slog.String("error", err.Error()),
		)
		return got, nil
	}
	got.Fields = fields

	var missing []string
	for _, f := range want.Fields {
		if !slices.Contains(fields, f) {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		logger.Warn("provision: note type is missing fields; add them under Tools > Manage Note Types > Fields, existing notes keep them empty",
			slog.String("note_type", want.Name),
			slog.String("missing", strings.Join(missing, ", ")),
		)
	}

	checkTemplates(ctx, c, want, logger)
	checkStyling(ctx, c, want, logger)
	return got, nil
}

func checkTemplates(ctx context.Context, c *Client, want NoteType, logger *slog.Logger) {
	current, err := c.ModelTemplates(ctx, want.Name)
	if err != nil {
		logger.Debug("provision: could not read card templates", slog.String("error", err.Error()))
		return
	}
	for _, tmpl := range want.Templates {
		card := current[tmpl.Name]
		if !sameText(card["Front"], tmpl.Front) {
			logger.Warn("provision: card front template differs; update it under Tools > Manage Note Types > Cards",
				slog.String("note_type", want.Name),
				slog.String("card", tmpl.Name),
				slog.String("expected", strings.TrimSpace(tmpl.Front)),
			)
		}
		if !sameText(card["Back"], tmpl.Back) {
			logger.Warn("provision: card back template differs; update it under Tools > Manage Note Types > Cards",
				slog.String("note_type", want.Name),
				slog.String("card", tmpl.Name),
				slog.String("expected", strings.TrimSpace(tmpl.Back)),
			)
		}
	}
}

func checkStyling(ctx context.Context, c *Client, want NoteType, logger *slog.Logger) {
	css, err := c.ModelStyling(ctx, want.Name)
	if err != nil {
		logger.Debug("provision: could not read note type styling", slog.String("error", err.Error()))
		return
	}
	if !sameText(css, want.CSS) {
		logger.Warn("provision: note type CSS differs; update it under Tools > Manage Note Types > Cards > Styling",
			slog.String("note_type", want.Name),
			slog.String("expected", strings.TrimSpace(want.CSS)),
		)
	}
}

// sameText compares two snippets ignoring whitespace layout.
func sameText(a, b string) bool {
	return strings.Join(strings.Fields(a), " ") == strings.Join(strings.Fields(b), " ")
}
