package main

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/starford/readwise2anki/internal/apperr"
)

func TestErrorChain(t *testing.T) {
	err := fmt.Errorf("sync failed: %w", fmt.Errorf("provision: %w", apperr.ErrNoteStore))

	chain := errorChain(err)
	if len(chain) != 3 {
		t.Fatalf("chain = %q, want 3 entries", chain)
	}
	if !strings.HasPrefix(chain[0], "*fmt.wrapError: sync failed") {
		t.Errorf("chain[0] = %q", chain[0])
	}
	if !strings.HasSuffix(chain[2], apperr.ErrNoteStore.Error()) {
		t.Errorf("chain[2] = %q", chain[2])
	}
}

func TestErrorChain_Joined(t *testing.T) {
	a, b := errors.New("a"), errors.New("b")
	chain := errorChain(errors.Join(a, b))
	if len(chain) != 3 {
		t.Fatalf("chain = %q, want join plus both branches", chain)
	}
	if chain[1] != "*errors.errorString: a" || chain[2] != "*errors.errorString: b" {
		t.Errorf("chain = %q", chain)
	}
}

func TestErrorChain_Nil(t *testing.T) {
	if chain := errorChain(nil); chain != nil {
		t.Errorf("chain = %q, want nil", chain)
	}
}
