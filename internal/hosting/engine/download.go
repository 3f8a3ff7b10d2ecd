package engine

import "context"

// DownloadHandler serves the pass-through engine. Downloadable games are
// distributed as the uploaded archive itself; nothing is staged or run, so
// both operations succeed without touching disk.
type DownloadHandler struct{}

func NewDownloadHandler() *DownloadHandler { return &DownloadHandler{} }

func (*DownloadHandler) UploadGame(ctx context.Context, req UploadRequest) (UploadResult, error) {
	return UploadResult{}, nil
}

func (*DownloadHandler) DeleteGame(ctx context.Context, gameKey string) error {
	return nil
}
