package state

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/yubzen/playground/internal/playground"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Connect(":memory:")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCatalogSeedsBuiltins(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	tools, err := db.ListDefinitions(context.Background(), playground.KindTool)
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	if len(tools) != 1 || tools[0].Name != "search_web" {
		t.Fatalf("unexpected builtin tools: %+v", tools)
	}
	schemas, err := db.ListDefinitions(context.Background(), playground.KindSchema)
	if err != nil {
		t.Fatalf("list schemas: %v", err)
	}
	if len(schemas) != 1 || schemas[0].Kind != playground.KindSchema {
		t.Fatalf("unexpected builtin schemas: %+v", schemas)
	}
}

func TestCatalogSaveListDelete(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := context.Background()

	def, err := playground.NewDefinition(playground.KindTool, "lookup", "Find a record", `{"type":"object"}`)
	if err != nil {
		t.Fatalf("new definition: %v", err)
	}
	if err := db.SaveDefinition(ctx, def); err != nil {
		t.Fatalf("save: %v", err)
	}
	def.Description = "Find one record"
	if err := db.SaveDefinition(ctx, def); err != nil {
		t.Fatalf("update: %v", err)
	}

	all, err := db.ListDefinitions(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 definitions, got %d", len(all))
	}
	last := all[len(all)-1]
	if last.ID != def.ID || last.Description != "Find one record" || string(last.Parameters) != `{"type":"object"}` {
		t.Fatalf("unexpected stored definition: %+v", last)
	}

	if err := db.DeleteDefinition(ctx, def.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := db.DeleteDefinition(ctx, def.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRunsRecordAndList(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for i, status := range []string{"succeeded", "failed"} {
		err := db.RecordRun(ctx, Run{
			ID:        "run-" + status,
			PanelID:   "panel",
			ProjectID: "proj",
			Provider:  "openai",
			Model:     "gpt-4o",
			Streaming: i == 1,
			Status:    status,
			Output:    "out",
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("record run: %v", err)
		}
	}

	runs, err := db.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-failed" || !runs[0].Streaming || runs[1].Streaming {
		t.Fatalf("unexpected runs: %+v", runs)
	}

	if runs, _ := db.ListRuns(ctx, 1); len(runs) != 1 {
		t.Fatalf("limit not applied, got %d", len(runs))
	}
}

func TestConnectCreatesDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "playground.db")
	db, err := Connect(path)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	db.Close()

	if _, err := Connect(" "); err == nil {
		t.Fatal("expected empty path to fail")
	}
}
