package markdown_test

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/mnemo-ai/mnemo-go-sdk/memory/store/markdown"
)

func TestStore_WriteCreatesArtifact(t *testing.T) {
	ctx := context.Background()
	store, err := markdown.New(t.TempDir())
	if err != nil {
		t.Fatalf("create store: %v", err)
	}

	id, err := store.Write(ctx, "Jack moved to London last spring.", map[string]string{
		"type":    "note",
		"subject": "jack",
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty record ID")
	}

	data, err := os.ReadFile(store.Path(id))
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "Jack moved to London") {
		t.Error("artifact missing content")
	}
	if !strings.Contains(text, "subject: jack") {
		t.Error("artifact missing front-matter metadata")
	}
}

func TestStore_WritesAreAppendOnly(t *testing.T) {
	ctx := context.Background()
	store, _ := markdown.New(t.TempDir())

	id1, err := store.Write(ctx, "first", nil)
	if err != nil {
		t.Fatal(err)
	}
	id2, err := store.Write(ctx, "first", nil)
	if err != nil {
		t.Fatal(err)
	}
	if id1 == id2 {
		t.Error("each write must produce a distinct artifact")
	}

	if _, err := os.Stat(store.Path(id1)); err != nil {
		t.Errorf("first artifact missing after second write: %v", err)
	}
}
