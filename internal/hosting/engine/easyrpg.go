package engine

import (
	"context"

	"w3itch.games/internal/hostfs"
	"w3itch.games/internal/hosting/archive"
	"w3itch.games/internal/hosting/staging"
)

// easyRPGMarkers are the files every playable game of this engine ships.
// All three must sit in one shared archive root.
var easyRPGMarkers = []string{"RPG_RT.lmt", "RPG_RT.ldb", "RPG_RT.ini"}

// EasyRPGHandler stages legacy RPG games for the web player. Games without
// a prebuilt asset index get the shared runtime package merged in and an
// index generated before the swap.
type EasyRPGHandler struct {
	layout   hostfs.Layout
	deployer *staging.Deployer
	index    staging.IndexTool
}

func NewEasyRPGHandler(layout hostfs.Layout, deployer *staging.Deployer, index staging.IndexTool) *EasyRPGHandler {
	return &EasyRPGHandler{layout: layout, deployer: deployer, index: index}
}

func (h *EasyRPGHandler) UploadGame(ctx context.Context, req UploadRequest) (UploadResult, error) {
	a, err := archive.Open(req.Archive, req.Charset)
	if err != nil {
		return UploadResult{}, err
	}
	root, err := archive.FindRoot(a, easyRPGMarkers)
	if err != nil {
		return UploadResult{}, err
	}

	opts := staging.Options{
		TempDir:   h.layout.Temp(req.GameKey),
		LiveDir:   h.layout.Game(req.GameKey),
		EntryRoot: root,
		Finalize:  h.prepare,
	}
	if err := h.deployer.Deploy(ctx, a, opts); err != nil {
		return UploadResult{}, err
	}
	return UploadResult{}, nil
}

// prepare runs inside the staged tree. Games that ship their own index are
// taken as-is; everything else gets runtime assets merged in (never
// overwriting game files) and an index generated over the result.
func (h *EasyRPGHandler) prepare(ctx context.Context, stageDir string) error {
	if staging.HasIndex(stageDir) {
		return nil
	}
	if err := staging.MergeIfAbsent(h.layout.RTPDir(), stageDir); err != nil {
		return err
	}
	return h.index.Generate(ctx, stageDir)
}

func (h *EasyRPGHandler) DeleteGame(ctx context.Context, gameKey string) error {
	return h.deployer.Delete(h.layout.Game(gameKey))
}
