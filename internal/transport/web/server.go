// Package web is the host daemon's HTTP surface: game uploads, static
// serving of deployed games, and loopback-only admin endpoints.
package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"w3itch.games/internal/hostfs"
	"w3itch.games/internal/hosting/archive"
	"w3itch.games/internal/hosting/deploylog"
	"w3itch.games/internal/hosting/engine"
	"w3itch.games/internal/hosting/hostdb"
	"w3itch.games/internal/hosting/sandbox"
	"w3itch.games/internal/protocol"
)

type Options struct {
	Layout     hostfs.Layout
	Dispatcher *engine.Dispatcher
	Store      *hostdb.Store
	DeployLog  *deploylog.Logger
	Ports      *sandbox.Allocator
	Supervisor *sandbox.Supervisor
	LogHub     *sandbox.LogHub
	// MaxUploadBytes caps the whole multipart request body.
	MaxUploadBytes int64
	Logger         *log.Logger
}

type Server struct {
	layout     hostfs.Layout
	dispatcher *engine.Dispatcher
	store      *hostdb.Store
	deploys    *deploylog.Logger
	ports      *sandbox.Allocator
	sup        *sandbox.Supervisor
	hub        *sandbox.LogHub
	maxUpload  int64
	log        *log.Logger
}

func NewServer(o Options) *Server {
	return &Server{
		layout:     o.Layout,
		dispatcher: o.Dispatcher,
		store:      o.Store,
		deploys:    o.DeployLog,
		ports:      o.Ports,
		sup:        o.Supervisor,
		hub:        o.LogHub,
		maxUpload:  o.MaxUploadBytes,
		log:        o.Logger,
	}
}

func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/upload", s.handleUpload)
	mux.HandleFunc("/api/v1/delete", s.handleDelete)
	mux.HandleFunc("/games/", s.handleGames)
	mux.HandleFunc("/html/", s.handleHTML)
	mux.HandleFunc("/admin/v1/ports", s.handlePorts)
	mux.HandleFunc("/admin/v1/deployments", s.handleDeployments)
	mux.HandleFunc("/admin/v1/logs", s.handleLogTail)
}

// handleUpload accepts a multipart POST: fields game_key, engine, optional
// charset, and the archive in the file part. The body is a uniform JSON
// envelope both on success and on error.
func (s *Server) handleUpload(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(rw, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "malformed multipart body")
		return
	}

	gameKey := strings.TrimSpace(r.FormValue("game_key"))
	if !validGameKey(gameKey) {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "invalid game_key")
		return
	}
	eng, err := engine.Parse(strings.TrimSpace(r.FormValue("engine")))
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrUnsupportedEngine, err.Error())
		return
	}
	handler, err := s.dispatcher.Dispatch(eng)
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrUnsupportedEngine, err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "archive file part is required")
		return
	}
	defer file.Close()
	if !zipMediaType(header.Header.Get("Content-Type"), header.Filename) {
		writeError(rw, http.StatusUnsupportedMediaType, protocol.ErrUnsupportedMedia, "upload must be a zip archive")
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "read archive")
		return
	}

	deployID := uuid.NewString()
	start := time.Now()
	res, err := handler.UploadGame(r.Context(), engine.UploadRequest{
		GameKey: gameKey,
		Archive: data,
		Charset: strings.TrimSpace(r.FormValue("charset")),
	})
	s.recordDeployment(deployID, gameKey, string(eng), res.Warning, err, time.Since(start))
	if err != nil {
		s.writeUploadError(rw, gameKey, err)
		return
	}

	writeJSON(rw, http.StatusOK, protocol.UploadResponse{
		Status:   "ok",
		DeployID: deployID,
		GameKey:  gameKey,
		Engine:   string(eng),
		Warning:  res.Warning,
	})
}

func (s *Server) handleDelete(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	gameKey := strings.TrimSpace(r.FormValue("game_key"))
	if !validGameKey(gameKey) {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "invalid game_key")
		return
	}
	eng, err := engine.Parse(strings.TrimSpace(r.FormValue("engine")))
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrUnsupportedEngine, err.Error())
		return
	}
	handler, err := s.dispatcher.Dispatch(eng)
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrUnsupportedEngine, err.Error())
		return
	}
	if err := handler.DeleteGame(r.Context(), gameKey); err != nil {
		s.log.Printf("[web] delete %s (%s): %v", gameKey, eng, err)
		writeError(rw, http.StatusInternalServerError, protocol.ErrInternal, "internal error")
		return
	}
	writeJSON(rw, http.StatusOK, map[string]string{"status": "ok", "game_key": gameKey})
}

// writeUploadError maps handler failures to client-facing codes. Internal
// details (paths, tool output) stay in the log.
func (s *Server) writeUploadError(rw http.ResponseWriter, gameKey string, err error) {
	var verr *archive.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(rw, http.StatusBadRequest, protocol.ErrorResponse{
			Code:      protocol.ErrValidation,
			Message:   verr.Error(),
			Missing:   verr.Missing,
			Conflicts: verr.Conflicts,
		})
	case errors.Is(err, archive.ErrBadArchive):
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
	default:
		s.log.Printf("[web] upload %s: %v", gameKey, err)
		writeError(rw, http.StatusInternalServerError, protocol.ErrInternal, "internal error")
	}
}

func (s *Server) recordDeployment(deployID, gameKey, eng, warning string, err error, took time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	if s.store != nil {
		if dbErr := s.store.RecordDeployment(hostdb.Deployment{
			ID:       deployID,
			GameKey:  gameKey,
			Engine:   eng,
			Outcome:  outcome,
			Warning:  warning,
			Duration: took,
		}); dbErr != nil {
			s.log.Printf("[web] record deployment: %v", dbErr)
		}
	}
	if s.deploys != nil {
		if logErr := s.deploys.Write(deploylog.Entry{
			DeployID:   deployID,
			GameKey:    gameKey,
			Engine:     eng,
			Outcome:    outcome,
			Warning:    warning,
			DurationMS: took.Milliseconds(),
			At:         time.Now().UTC().Format(time.RFC3339),
		}); logErr != nil {
			s.log.Printf("[web] deploy log: %v", logErr)
		}
	}
}

// validGameKey keeps keys usable as single path segments on disk and in
// URLs.
func validGameKey(key string) bool {
	if key == "" || len(key) > 128 {
		return false
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return key != "." && key != ".." && path.Clean(key) == key
}

func zipMediaType(contentType, filename string) bool {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mt {
		case "application/zip", "application/x-zip-compressed":
			return true
		case "application/octet-stream", "":
			// Browsers frequently fall back to octet-stream; trust the
			// extension then.
		default:
			return false
		}
	}
	return strings.HasSuffix(strings.ToLower(filename), ".zip")
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func writeError(rw http.ResponseWriter, status int, code, msg string) {
	writeJSON(rw, status, protocol.ErrorResponse{Code: code, Message: msg})
}

// WriteMetrics emits the minimal Prometheus exposition the daemon exports.
func (s *Server) WriteMetrics(rw http.ResponseWriter, _ *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

	running := 0
	bindings := map[string]int{}
	if s.ports != nil {
		bindings = s.ports.Bindings()
	}
	if s.sup != nil {
		running = len(s.sup.RunningPorts())
	}
	fmt.Fprintf(rw, "# HELP hostd_world_bindings Worlds with an assigned port.\n")
	fmt.Fprintf(rw, "# TYPE hostd_world_bindings gauge\n")
	fmt.Fprintf(rw, "hostd_world_bindings %d\n", len(bindings))

	fmt.Fprintf(rw, "# HELP hostd_world_servers_running Running world server processes.\n")
	fmt.Fprintf(rw, "# TYPE hostd_world_servers_running gauge\n")
	fmt.Fprintf(rw, "hostd_world_servers_running %d\n", running)
}
