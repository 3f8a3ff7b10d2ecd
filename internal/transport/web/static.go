package web

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// setIsolationHeaders marks served game content as embeddable under a
// cross-origin-isolated player page. The web runtime needs
// SharedArrayBuffer, which browsers only enable behind these headers.
func setIsolationHeaders(h http.Header) {
	h.Set("Cross-Origin-Embedder-Policy", "require-corp")
	h.Set("Cross-Origin-Opener-Policy", "same-origin")
	h.Set("Cross-Origin-Resource-Policy", "cross-origin")
}

// handleGames serves deployed game trees. A file missing from a game
// directory falls back to the shared runtime package, so games stripped of
// stock assets still resolve them.
func (s *Server) handleGames(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rel, ok := cleanStaticPath(strings.TrimPrefix(r.URL.Path, "/games/"))
	if !ok {
		http.NotFound(rw, r)
		return
	}
	setIsolationHeaders(rw.Header())

	target := filepath.Join(s.layout.GamesDir(), rel)
	if fileExists(target) {
		http.ServeFile(rw, r, target)
		return
	}

	// Fallback: same path minus the game key, resolved in the runtime
	// package.
	if key, rest, found := strings.Cut(rel, string(filepath.Separator)); found && key != "" && rest != "" {
		fallback := filepath.Join(s.layout.RTPDir(), rest)
		if fileExists(fallback) {
			http.ServeFile(rw, r, fallback)
			return
		}
	}
	http.NotFound(rw, r)
}

func (s *Server) handleHTML(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rel, ok := cleanStaticPath(strings.TrimPrefix(r.URL.Path, "/html/"))
	if !ok {
		http.NotFound(rw, r)
		return
	}
	setIsolationHeaders(rw.Header())

	target := filepath.Join(s.layout.HTMLGamesDir(), rel)
	if fi, err := os.Stat(target); err == nil && fi.IsDir() {
		target = filepath.Join(target, "index.html")
	}
	if !fileExists(target) {
		http.NotFound(rw, r)
		return
	}
	http.ServeFile(rw, r, target)
}

// cleanStaticPath converts a URL suffix into a safe relative filesystem
// path. Anything that escapes the serving root is rejected.
func cleanStaticPath(rel string) (string, bool) {
	rel = strings.TrimSuffix(rel, "/")
	if rel == "" {
		return "", false
	}
	rel = filepath.FromSlash(rel)
	if !filepath.IsLocal(rel) {
		return "", false
	}
	return rel, true
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}
