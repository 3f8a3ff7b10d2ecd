// Package staging extracts validated archives and swaps them into the live
// serving tree.
package staging

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

type Options struct {
	// TempDir is the scratch directory for this deploy, unique per game
	// key. A stale dir from a failed prior attempt is overwritten.
	TempDir string
	// LiveDir is the publicly served directory the content ends up in.
	LiveDir string
	// EntryRoot is the slash-separated prefix inside the archive under
	// which real content starts (possibly empty).
	EntryRoot string
	// Finalize runs against the staged tree before the swap. Engine
	// handlers use it for resource-index generation and world descriptor
	// rewriting, so the live dir only ever appears fully prepared.
	Finalize func(ctx context.Context, stageDir string) error
}

type Extractor interface {
	Extract(dst string) error
}

type Deployer struct {
	log *log.Logger
}

func NewDeployer(logger *log.Logger) *Deployer {
	return &Deployer{log: logger}
}

// Deploy extracts the archive into opts.TempDir, finalizes the subtree at
// the entry root, and moves it over opts.LiveDir. Extraction failures leave
// the live dir untouched. The swap itself is a rename where the filesystem
// allows it; the delete-then-copy fallback keeps the documented
// partial-visibility limitation.
func (d *Deployer) Deploy(ctx context.Context, a Extractor, opts Options) error {
	if opts.TempDir == "" || opts.LiveDir == "" {
		return fmt.Errorf("staging: temp and live dirs are required")
	}

	if err := os.RemoveAll(opts.TempDir); err != nil {
		return fmt.Errorf("clear temp dir: %w", err)
	}
	if err := os.MkdirAll(opts.TempDir, 0o755); err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	if err := a.Extract(opts.TempDir); err != nil {
		_ = os.RemoveAll(opts.TempDir)
		return fmt.Errorf("extract archive: %w", err)
	}

	stage := filepath.Join(opts.TempDir, filepath.FromSlash(opts.EntryRoot))
	if fi, err := os.Stat(stage); err != nil || !fi.IsDir() {
		_ = os.RemoveAll(opts.TempDir)
		return fmt.Errorf("entry root %q not present after extraction", opts.EntryRoot)
	}

	if opts.Finalize != nil {
		if err := opts.Finalize(ctx, stage); err != nil {
			_ = os.RemoveAll(opts.TempDir)
			return err
		}
	}

	if err := d.swap(stage, opts.LiveDir); err != nil {
		return err
	}
	if err := os.RemoveAll(opts.TempDir); err != nil {
		d.log.Printf("staging: remove temp dir %s: %v", filepath.Base(opts.TempDir), err)
	}
	return nil
}

func (d *Deployer) swap(stage, live string) error {
	if err := os.MkdirAll(filepath.Dir(live), 0o755); err != nil {
		return fmt.Errorf("create live parent: %w", err)
	}

	old := live + ".old"
	if err := os.RemoveAll(old); err != nil {
		return fmt.Errorf("clear stale swap dir: %w", err)
	}
	hadLive := false
	if _, err := os.Stat(live); err == nil {
		hadLive = true
		if err := os.Rename(live, old); err != nil {
			return fmt.Errorf("move old live dir aside: %w", err)
		}
	}

	if err := os.Rename(stage, live); err != nil {
		// Cross-device temp dirs cannot be renamed into place. Fall back
		// to copying; readers can observe the partial tree during this
		// window.
		d.log.Printf("staging: rename swap unavailable (%v), copying", err)
		if copyErr := CopyDir(stage, live); copyErr != nil {
			if hadLive {
				_ = os.RemoveAll(live)
				_ = os.Rename(old, live)
			}
			return fmt.Errorf("copy into live dir: %w", copyErr)
		}
	}
	if hadLive {
		if err := os.RemoveAll(old); err != nil {
			d.log.Printf("staging: remove old live dir: %v", err)
		}
	}
	return nil
}

// Delete removes the live directory for a key. A missing directory is not
// an error.
func (d *Deployer) Delete(live string) error {
	if err := os.RemoveAll(live); err != nil {
		return fmt.Errorf("remove live dir: %w", err)
	}
	return nil
}
