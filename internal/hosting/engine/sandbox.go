package engine

import (
	"context"
	"log"

	"w3itch.games/internal/hostfs"
	"w3itch.games/internal/hosting/archive"
	"w3itch.games/internal/hosting/sandbox"
	"w3itch.games/internal/hosting/staging"
	"w3itch.games/internal/protocol"
)

// SandboxHandler stages voxel worlds and (re)starts the server process
// that serves them. File deployment is the hard part of the contract: once
// the world directory is swapped in the upload has succeeded, and a server
// that then fails to come up is reported as a warning, not an error.
type SandboxHandler struct {
	layout   hostfs.Layout
	deployer *staging.Deployer
	ports    *sandbox.Allocator
	sup      *sandbox.Supervisor
	gameID   string
	log      *log.Logger
}

func NewSandboxHandler(layout hostfs.Layout, deployer *staging.Deployer, ports *sandbox.Allocator, sup *sandbox.Supervisor, gameID string, logger *log.Logger) *SandboxHandler {
	return &SandboxHandler{
		layout:   layout,
		deployer: deployer,
		ports:    ports,
		sup:      sup,
		gameID:   gameID,
		log:      logger,
	}
}

func (h *SandboxHandler) UploadGame(ctx context.Context, req UploadRequest) (UploadResult, error) {
	a, err := archive.Open(req.Archive, req.Charset)
	if err != nil {
		return UploadResult{}, err
	}
	root, err := archive.FindRoot(a, []string{sandbox.WorldDescriptorName})
	if err != nil {
		return UploadResult{}, err
	}

	worldName := req.GameKey
	opts := staging.Options{
		TempDir:   h.layout.WorldTemp(worldName),
		LiveDir:   h.layout.World(worldName),
		EntryRoot: root,
		Finalize: func(ctx context.Context, stageDir string) error {
			return sandbox.ApplyWorldConfig(stageDir, sandbox.WorldOptions{
				GameID:        h.gameID,
				WorldName:     worldName,
				Backend:       "sqlite3",
				PlayerBackend: "sqlite3",
				AuthBackend:   "sqlite3",
			})
		},
	}
	if err := h.deployer.Deploy(ctx, a, opts); err != nil {
		return UploadResult{}, err
	}

	port, err := h.ports.GetOrAssign(worldName)
	if err != nil {
		return UploadResult{}, err
	}
	cfgPath := h.layout.ServerConfig(port)
	if err := sandbox.ApplyPortConfig(cfgPath, port, worldName); err != nil {
		return UploadResult{}, err
	}
	if err := h.sup.Start(ctx, worldName, port, cfgPath); err != nil {
		h.log.Printf("[sandbox] world %s deployed but server restart failed on port %d: %v", worldName, port, err)
		return UploadResult{Warning: protocol.WarnServerRestartFailed}, nil
	}
	return UploadResult{}, nil
}

// DeleteGame stops the world's server before removing its directory so
// nothing holds open files inside the tree. The port binding is kept; a
// re-upload of the same key comes back on the same port.
func (h *SandboxHandler) DeleteGame(ctx context.Context, gameKey string) error {
	if port, ok := h.ports.Lookup(gameKey); ok {
		if err := h.sup.Stop(ctx, port); err != nil {
			h.log.Printf("[sandbox] stop world %s on port %d: %v", gameKey, port, err)
		}
	}
	return h.deployer.Delete(h.layout.World(gameKey))
}
