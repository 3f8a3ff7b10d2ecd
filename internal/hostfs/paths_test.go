package hostfs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnsure_CreatesFullTree(t *testing.T) {
	l := NewLayout(t.TempDir())
	if err := l.Ensure(); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	for _, dir := range []string{
		l.GamesDir(), l.TempDir(), l.RTPDir(),
		l.HTMLGamesDir(), l.HTMLTempDir(),
		l.WorldsDir(), l.WorldsTempDir(),
		l.ServerConfigDir(), l.DeployLogDir(),
	} {
		fi, err := os.Stat(dir)
		if err != nil || !fi.IsDir() {
			t.Fatalf("missing dir %s: %v", dir, err)
		}
	}
	// Idempotent.
	if err := l.Ensure(); err != nil {
		t.Fatalf("second ensure: %v", err)
	}
}

func TestLayout_PathShape(t *testing.T) {
	l := NewLayout("/srv/hostd")
	if got := l.Game("yume"); got != filepath.Join("/srv/hostd", "games", "yume") {
		t.Fatalf("game path = %s", got)
	}
	if got := l.ServerConfig(30001); filepath.Base(got) != "config.30001.conf" {
		t.Fatalf("server config path = %s", got)
	}
	if got := l.WorldTemp("alice"); got != filepath.Join("/srv/hostd", "worlds", ".temp", "alice") {
		t.Fatalf("world temp path = %s", got)
	}
}
