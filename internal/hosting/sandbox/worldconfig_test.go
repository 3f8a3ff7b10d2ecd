package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/ini.v1"
)

func readProps(t *testing.T, path string) map[string]string {
	t.Helper()
	f, err := ini.Load(path)
	if err != nil {
		t.Fatalf("load %s: %v", path, err)
	}
	out := map[string]string{}
	for _, key := range f.Section("").Keys() {
		out[key.Name()] = key.Value()
	}
	return out
}

func TestApplyWorldConfig_PreservesUnrelatedKeys(t *testing.T) {
	worldDir := t.TempDir()
	seed := "enable_damage = true\ncreative_mode = false\nbackend = dummy\n"
	if err := os.WriteFile(filepath.Join(worldDir, WorldDescriptorName), []byte(seed), 0o644); err != nil {
		t.Fatal(err)
	}

	err := ApplyWorldConfig(worldDir, WorldOptions{
		GameID:        "minetest_game",
		WorldName:     "alice_world",
		Backend:       "sqlite3",
		PlayerBackend: "sqlite3",
		AuthBackend:   "sqlite3",
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	got := readProps(t, filepath.Join(worldDir, WorldDescriptorName))
	if got["enable_damage"] != "true" || got["creative_mode"] != "false" {
		t.Fatalf("unrelated keys mutated: %v", got)
	}
	if got["gameid"] != "minetest_game" || got["world_name"] != "alice_world" {
		t.Fatalf("injected keys missing: %v", got)
	}
	if got["backend"] != "sqlite3" {
		t.Fatalf("backend not overwritten: %v", got)
	}
}

func TestApplyWorldConfig_MissingDescriptorFails(t *testing.T) {
	if err := ApplyWorldConfig(t.TempDir(), WorldOptions{GameID: "g"}); err == nil {
		t.Fatalf("expected error for missing %s", WorldDescriptorName)
	}
}

func TestApplyPortConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server", "config.30000.conf")

	if err := ApplyPortConfig(path, 30000, "w3itch"); err != nil {
		t.Fatalf("apply: %v", err)
	}
	got := readProps(t, path)
	if got["port"] != "30000" || got["name"] != "w3itch" {
		t.Fatalf("props = %v", got)
	}
}

func TestApplyPortConfig_KeepsOperatorKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.30001.conf")
	seed := "max_users = 15\nmotd = welcome\n"
	if err := os.WriteFile(path, []byte(seed), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ApplyPortConfig(path, 30001, "alice_world"); err != nil {
		t.Fatalf("apply: %v", err)
	}
	got := readProps(t, path)
	if got["max_users"] != "15" || got["motd"] != "welcome" {
		t.Fatalf("operator keys lost: %v", got)
	}
	if got["port"] != "30001" || got["name"] != "alice_world" {
		t.Fatalf("generated keys wrong: %v", got)
	}
}
