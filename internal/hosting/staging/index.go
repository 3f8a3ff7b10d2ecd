package staging

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// IndexFileName is the resource index the external tool produces inside the
// target directory.
const IndexFileName = "index.json"

// IndexTool invokes the external resource-index generator against a staged
// game tree. The easyrpg player resolves case-insensitive asset lookups
// through the generated index.
type IndexTool struct {
	// Bin is the tool executable. Empty disables generation.
	Bin string
	// Depth is passed as the recursion-depth flag.
	Depth int
	// Strict turns tool failures into deploy failures; otherwise they are
	// logged and the deploy continues without an index.
	Strict bool

	Log *log.Logger
}

func (t IndexTool) Generate(ctx context.Context, dir string) error {
	if t.Bin == "" {
		if t.Strict {
			return fmt.Errorf("index tool not configured")
		}
		if t.Log != nil {
			t.Log.Printf("staging: index tool not configured, skipping")
		}
		return nil
	}

	depth := t.Depth
	if depth <= 0 {
		depth = 3
	}
	cmd := exec.CommandContext(ctx, t.Bin, "-r", strconv.Itoa(depth), dir)
	out, err := cmd.CombinedOutput()
	if err != nil {
		err = fmt.Errorf("index tool: %w (output: %s)", err, string(out))
	} else if _, statErr := os.Stat(filepath.Join(dir, IndexFileName)); statErr != nil {
		err = fmt.Errorf("index tool exited cleanly but produced no %s", IndexFileName)
	}
	if err != nil {
		if t.Strict {
			return err
		}
		if t.Log != nil {
			t.Log.Printf("staging: %v", err)
		}
	}
	return nil
}

// HasIndex reports whether dir already carries a generated resource index.
func HasIndex(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, IndexFileName))
	return err == nil
}
