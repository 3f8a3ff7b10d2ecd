// Package hostfs defines the on-disk layout of the hosting data directory.
//
// Everything the server touches lives under a single base directory:
//
//	games/          live easyrpg game trees, one per game key
//	temp/           per-key scratch dirs used while staging easyrpg uploads
//	rtp/            shared read-only runtime resources for the easyrpg engine
//	html/games/     live static-html game trees
//	html/temp/      scratch dirs for html uploads
//	worlds/         live sandbox world trees, one per world name
//	worlds/.temp/   scratch dirs for sandbox uploads
//	server/         per-port sandbox server configs (config.<port>.conf)
//	deploys/        deployment audit log (jsonl.zst)
//	hostd.db        sqlite store (port bindings, deployment history)
package hostfs

import (
	"fmt"
	"os"
	"path/filepath"
)

type Layout struct {
	Base string
}

func NewLayout(base string) Layout {
	return Layout{Base: base}
}

// Ensure creates every directory of the layout that does not exist yet.
func (l Layout) Ensure() error {
	dirs := []string{
		l.GamesDir(),
		l.TempDir(),
		l.RTPDir(),
		l.HTMLGamesDir(),
		l.HTMLTempDir(),
		l.WorldsDir(),
		l.WorldsTempDir(),
		l.ServerConfigDir(),
		l.DeployLogDir(),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func (l Layout) GamesDir() string          { return filepath.Join(l.Base, "games") }
func (l Layout) Game(key string) string    { return filepath.Join(l.GamesDir(), key) }
func (l Layout) TempDir() string           { return filepath.Join(l.Base, "temp") }
func (l Layout) Temp(key string) string    { return filepath.Join(l.TempDir(), key) }
func (l Layout) RTPDir() string            { return filepath.Join(l.Base, "rtp") }
func (l Layout) HTMLGamesDir() string      { return filepath.Join(l.Base, "html", "games") }
func (l Layout) HTMLGame(key string) string { return filepath.Join(l.HTMLGamesDir(), key) }
func (l Layout) HTMLTempDir() string       { return filepath.Join(l.Base, "html", "temp") }
func (l Layout) HTMLTemp(key string) string { return filepath.Join(l.HTMLTempDir(), key) }
func (l Layout) WorldsDir() string         { return filepath.Join(l.Base, "worlds") }
func (l Layout) World(name string) string  { return filepath.Join(l.WorldsDir(), name) }
func (l Layout) WorldsTempDir() string     { return filepath.Join(l.WorldsDir(), ".temp") }
func (l Layout) WorldTemp(name string) string { return filepath.Join(l.WorldsTempDir(), name) }
func (l Layout) ServerConfigDir() string   { return filepath.Join(l.Base, "server") }
func (l Layout) DeployLogDir() string      { return filepath.Join(l.Base, "deploys") }
func (l Layout) DBPath() string            { return filepath.Join(l.Base, "hostd.db") }

// ServerConfig returns the per-port sandbox server config path.
func (l Layout) ServerConfig(port int) string {
	return filepath.Join(l.ServerConfigDir(), fmt.Sprintf("config.%d.conf", port))
}
