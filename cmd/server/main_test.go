package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Tyrowin/challengehub/internal/models"
	"github.com/Tyrowin/challengehub/internal/store"
)

func TestRootCommandHasSubcommands(t *testing.T) {
	root := buildRootCmd()
	for _, name := range []string{"serve", "seed", "version"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("expected subcommand %q, got %v (err %v)", name, cmd, err)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	root := buildRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out.String(), "challengehub dev") {
		t.Fatalf("unexpected version output %q", out.String())
	}
}

func TestSeedCommandCreatesChallengesOnce(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "hub.db")
	configPath := filepath.Join(dir, "challengehub.yaml")
	config := `
storage:
  driver: sqlite
  path: ` + dbPath + `
logging:
  level: error
challenges:
  - id: 42
    title: Reading sprint
    kind: collaborative
  - id: 43
    title: Solo kata
    kind: individual
`
	if err := os.WriteFile(configPath, []byte(config), 0o600); err != nil {
		t.Fatal(err)
	}

	for i, want := range []string{"created 2 of 2", "created 0 of 2"} {
		root := buildRootCmd()
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetErr(&bytes.Buffer{})
		root.SetArgs([]string{"seed", "--config", configPath})
		if err := root.Execute(); err != nil {
			t.Fatalf("seed run %d failed: %v", i, err)
		}
		if !strings.Contains(out.String(), want) {
			t.Fatalf("seed run %d: expected %q in %q", i, want, out.String())
		}
	}

	st, err := store.OpenSQLite(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	c, err := st.GetChallenge(context.Background(), 42)
	if err != nil {
		t.Fatalf("challenge 42 missing: %v", err)
	}
	if c.Kind != models.KindCollaborative || c.Title != "Reading sprint" {
		t.Fatalf("unexpected challenge %+v", c)
	}
	solo, err := st.GetChallenge(context.Background(), 43)
	if err != nil {
		t.Fatalf("challenge 43 missing: %v", err)
	}
	if solo.IsCollaborative() {
		t.Fatal("challenge 43 should be individual")
	}
}
