package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/ini.v1"
)

// WorldDescriptorName is the flat properties file at the root of every
// sandbox world directory. Its presence is what validates an upload as
// sandbox content.
const WorldDescriptorName = "world.mt"

// WorldOptions are the keys injected into a world descriptor before the
// world goes live. Empty fields leave the corresponding key alone.
type WorldOptions struct {
	GameID        string
	WorldName     string
	Backend       string
	PlayerBackend string
	AuthBackend   string
}

// ApplyWorldConfig rewrites worldDir/world.mt with the generated values,
// preserving every key it does not own. The file is reopened on each call;
// there is no in-memory cache to go stale.
func ApplyWorldConfig(worldDir string, o WorldOptions) error {
	path := filepath.Join(worldDir, WorldDescriptorName)
	f, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("load %s: %w", WorldDescriptorName, err)
	}
	sec := f.Section("")
	set := func(key, value string) {
		if value != "" {
			sec.Key(key).SetValue(value)
		}
	}
	set("gameid", o.GameID)
	set("world_name", o.WorldName)
	set("backend", o.Backend)
	set("player_backend", o.PlayerBackend)
	set("auth_backend", o.AuthBackend)

	if err := f.SaveTo(path); err != nil {
		return fmt.Errorf("write %s: %w", WorldDescriptorName, err)
	}
	return nil
}

// ApplyPortConfig creates or updates the per-port server config file,
// setting the listen port and display name while keeping any operator
// tuning keys already present.
func ApplyPortConfig(path string, port int, name string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	f, err := ini.LooseLoad(path)
	if err != nil {
		return fmt.Errorf("load port config: %w", err)
	}
	sec := f.Section("")
	sec.Key("port").SetValue(strconv.Itoa(port))
	sec.Key("name").SetValue(name)

	if err := f.SaveTo(path); err != nil {
		return fmt.Errorf("write port config: %w", err)
	}
	return nil
}
