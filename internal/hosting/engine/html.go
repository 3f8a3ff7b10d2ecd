package engine

import (
	"context"

	"w3itch.games/internal/hostfs"
	"w3itch.games/internal/hosting/archive"
	"w3itch.games/internal/hosting/staging"
)

const htmlMarker = "index.html"

// HTMLHandler stages plain browser games. The only requirement on the
// archive is a single index.html root; content is served verbatim.
type HTMLHandler struct {
	layout   hostfs.Layout
	deployer *staging.Deployer
}

func NewHTMLHandler(layout hostfs.Layout, deployer *staging.Deployer) *HTMLHandler {
	return &HTMLHandler{layout: layout, deployer: deployer}
}

func (h *HTMLHandler) UploadGame(ctx context.Context, req UploadRequest) (UploadResult, error) {
	a, err := archive.Open(req.Archive, req.Charset)
	if err != nil {
		return UploadResult{}, err
	}
	root, err := archive.FindRoot(a, []string{htmlMarker})
	if err != nil {
		return UploadResult{}, err
	}

	opts := staging.Options{
		TempDir:   h.layout.HTMLTemp(req.GameKey),
		LiveDir:   h.layout.HTMLGame(req.GameKey),
		EntryRoot: root,
	}
	if err := h.deployer.Deploy(ctx, a, opts); err != nil {
		return UploadResult{}, err
	}
	return UploadResult{}, nil
}

func (h *HTMLHandler) DeleteGame(ctx context.Context, gameKey string) error {
	return h.deployer.Delete(h.layout.HTMLGame(gameKey))
}
