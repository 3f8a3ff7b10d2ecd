package web

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zip"

	"w3itch.games/internal/hostfs"
	"w3itch.games/internal/hosting/deploylog"
	"w3itch.games/internal/hosting/engine"
	"w3itch.games/internal/hosting/hostdb"
	"w3itch.games/internal/hosting/sandbox"
	"w3itch.games/internal/hosting/staging"
	"w3itch.games/internal/protocol"
)

type fixture struct {
	layout hostfs.Layout
	hub    *sandbox.LogHub
	ports  *sandbox.Allocator
	http   *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	layout := hostfs.NewLayout(t.TempDir())
	if err := layout.Ensure(); err != nil {
		t.Fatalf("ensure layout: %v", err)
	}
	store, err := hostdb.Open(layout.DBPath())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	ports, err := sandbox.NewAllocator(30000, store)
	if err != nil {
		t.Fatalf("allocator: %v", err)
	}
	deploys := deploylog.New(layout.DeployLogDir())
	t.Cleanup(func() { _ = deploys.Close() })

	logger := log.New(io.Discard, "", 0)
	deployer := staging.NewDeployer(logger)
	hub := sandbox.NewLogHub()
	dispatcher := engine.NewDispatcher(map[engine.Engine]engine.Handler{
		engine.EasyRPG:      engine.NewEasyRPGHandler(layout, deployer, staging.IndexTool{Log: logger}),
		engine.HTML:         engine.NewHTMLHandler(layout, deployer),
		engine.Downloadable: engine.NewDownloadHandler(),
	})

	srv := NewServer(Options{
		Layout:         layout,
		Dispatcher:     dispatcher,
		Store:          store,
		DeployLog:      deploys,
		Ports:          ports,
		LogHub:         hub,
		MaxUploadBytes: 64 << 20,
		Logger:         logger,
	})
	mux := http.NewServeMux()
	srv.Register(mux)
	mux.HandleFunc("/metrics", srv.WriteMetrics)

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return &fixture{layout: layout, hub: hub, ports: ports, http: ts}
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := f.Write([]byte(files[name])); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func uploadArchive(t *testing.T, f *fixture, gameKey, eng, filename, contentType string, data []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("game_key", gameKey)
	_ = mw.WriteField("engine", eng)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	_ = mw.Close()

	resp, err := http.Post(f.http.URL+"/api/v1/upload", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("post upload: %v", err)
	}
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestUpload_HTMLGameDeployedAndServed(t *testing.T) {
	f := newFixture(t)
	data := buildZip(t, map[string]string{"index.html": "<html>game</html>"})

	resp := uploadArchive(t, f, "tetris", "html", "tetris.zip", "application/zip", data)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decodeJSON[protocol.UploadResponse](t, resp)
	if body.Status != "ok" || body.DeployID == "" || body.Engine != "html" {
		t.Fatalf("body = %+v", body)
	}

	page, err := http.Get(f.http.URL + "/html/tetris/index.html")
	if err != nil {
		t.Fatalf("get page: %v", err)
	}
	defer page.Body.Close()
	if page.StatusCode != http.StatusOK {
		t.Fatalf("page status = %d", page.StatusCode)
	}
	if got := page.Header.Get("Cross-Origin-Embedder-Policy"); got != "require-corp" {
		t.Fatalf("COEP header = %q", got)
	}
	if got := page.Header.Get("Cross-Origin-Resource-Policy"); got != "cross-origin" {
		t.Fatalf("CORP header = %q", got)
	}
}

func TestUpload_DirectoryRequestServesIndex(t *testing.T) {
	f := newFixture(t)
	data := buildZip(t, map[string]string{"index.html": "<html>dir</html>"})
	resp := uploadArchive(t, f, "snake", "html", "snake.zip", "application/zip", data)
	resp.Body.Close()

	page, err := http.Get(f.http.URL + "/html/snake/")
	if err != nil {
		t.Fatalf("get dir: %v", err)
	}
	defer page.Body.Close()
	b, _ := io.ReadAll(page.Body)
	if page.StatusCode != http.StatusOK || !strings.Contains(string(b), "dir") {
		t.Fatalf("dir request = %d %q", page.StatusCode, b)
	}
}

func TestUpload_ValidationFailureListsEveryMarker(t *testing.T) {
	f := newFixture(t)
	data := buildZip(t, map[string]string{"data/RPG_RT.lmt": "lmt"})

	resp := uploadArchive(t, f, "broken", "easyrpg", "b.zip", "application/zip", data)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decodeJSON[protocol.ErrorResponse](t, resp)
	if body.Code != protocol.ErrValidation {
		t.Fatalf("code = %q", body.Code)
	}
	if len(body.Missing) != 2 {
		t.Fatalf("missing = %v", body.Missing)
	}
}

func TestUpload_RejectsUnknownEngine(t *testing.T) {
	f := newFixture(t)
	resp := uploadArchive(t, f, "g", "unity", "g.zip", "application/zip", buildZip(t, map[string]string{"a": "a"}))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body := decodeJSON[protocol.ErrorResponse](t, resp); body.Code != protocol.ErrUnsupportedEngine {
		t.Fatalf("code = %q", body.Code)
	}
}

func TestUpload_RejectsNonZipMedia(t *testing.T) {
	f := newFixture(t)
	resp := uploadArchive(t, f, "g", "html", "readme.txt", "text/plain", []byte("not a zip"))
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body := decodeJSON[protocol.ErrorResponse](t, resp); body.Code != protocol.ErrUnsupportedMedia {
		t.Fatalf("code = %q", body.Code)
	}
}

func TestUpload_RejectsCorruptZip(t *testing.T) {
	f := newFixture(t)
	resp := uploadArchive(t, f, "g", "html", "g.zip", "application/zip", []byte("garbage"))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body := decodeJSON[protocol.ErrorResponse](t, resp); body.Code != protocol.ErrBadRequest {
		t.Fatalf("code = %q", body.Code)
	}
}

func TestUpload_RejectsUnsafeGameKey(t *testing.T) {
	f := newFixture(t)
	for _, key := range []string{"", "..", "a/b", "a b", strings.Repeat("x", 200)} {
		resp := uploadArchive(t, f, key, "html", "g.zip", "application/zip", buildZip(t, map[string]string{"index.html": "x"}))
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("key %q: status = %d", key, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestGames_RuntimeAssetFallback(t *testing.T) {
	f := newFixture(t)
	if err := os.WriteFile(filepath.Join(f.layout.RTPDir(), "System.png"), []byte("stock"), 0o644); err != nil {
		t.Fatalf("seed rtp: %v", err)
	}
	data := buildZip(t, map[string]string{
		"RPG_RT.lmt": "lmt",
		"RPG_RT.ldb": "ldb",
		"RPG_RT.ini": "[RPG_RT]",
	})
	resp := uploadArchive(t, f, "yume", "easyrpg", "y.zip", "application/zip", data)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	own, err := http.Get(f.http.URL + "/games/yume/RPG_RT.lmt")
	if err != nil || own.StatusCode != http.StatusOK {
		t.Fatalf("game file = %v %d", err, own.StatusCode)
	}
	own.Body.Close()

	fb, err := http.Get(f.http.URL + "/games/yume/System.png")
	if err != nil {
		t.Fatalf("fallback get: %v", err)
	}
	defer fb.Body.Close()
	b, _ := io.ReadAll(fb.Body)
	if fb.StatusCode != http.StatusOK || string(b) != "stock" {
		t.Fatalf("fallback = %d %q", fb.StatusCode, b)
	}

	missing, err := http.Get(f.http.URL + "/games/yume/Nothing.png")
	if err != nil {
		t.Fatalf("missing get: %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("missing asset = %d", missing.StatusCode)
	}
}

func TestStatic_RejectsTraversal(t *testing.T) {
	f := newFixture(t)
	req, _ := http.NewRequest(http.MethodGet, f.http.URL+"/games/", nil)
	req.URL.Path = "/games/../hostd.db"
	req.URL.RawPath = "/games/..%2Fhostd.db"
	resp, err := http.DefaultTransport.RoundTrip(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		t.Fatalf("traversal must not succeed")
	}
}

func TestDelete_RemovesDeployedGame(t *testing.T) {
	f := newFixture(t)
	data := buildZip(t, map[string]string{"index.html": "x"})
	resp := uploadArchive(t, f, "doomed", "html", "d.zip", "application/zip", data)
	resp.Body.Close()

	del, err := http.PostForm(f.http.URL+"/api/v1/delete", map[string][]string{
		"game_key": {"doomed"},
		"engine":   {"html"},
	})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	del.Body.Close()
	if del.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", del.StatusCode)
	}

	page, _ := http.Get(f.http.URL + "/html/doomed/index.html")
	page.Body.Close()
	if page.StatusCode != http.StatusNotFound {
		t.Fatalf("deleted game still served: %d", page.StatusCode)
	}
}

func TestAdmin_PortsAndDeployments(t *testing.T) {
	f := newFixture(t)
	if _, err := f.ports.GetOrAssign("alice"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	resp := uploadArchive(t, f, "tetris", "html", "t.zip", "application/zip", buildZip(t, map[string]string{"index.html": "x"}))
	resp.Body.Close()

	pr, err := http.Get(f.http.URL + "/admin/v1/ports")
	if err != nil {
		t.Fatalf("ports: %v", err)
	}
	bindings := decodeJSON[[]protocol.PortBinding](t, pr)
	if len(bindings) != 1 || bindings[0].WorldName != "alice" || bindings[0].Port != 30000 {
		t.Fatalf("bindings = %+v", bindings)
	}

	dr, err := http.Get(f.http.URL + "/admin/v1/deployments")
	if err != nil {
		t.Fatalf("deployments: %v", err)
	}
	deps := decodeJSON[[]protocol.DeploymentRecord](t, dr)
	if len(deps) != 1 || deps[0].GameKey != "tetris" || deps[0].Outcome != "ok" {
		t.Fatalf("deployments = %+v", deps)
	}
}

func TestAdmin_LogTailStreamsLines(t *testing.T) {
	f := newFixture(t)
	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/admin/v1/logs?port=31111"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
				f.hub.Publish(31111, "world ready")
				time.Sleep(10 * time.Millisecond)
			}
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(msg) != "world ready" {
		t.Fatalf("line = %q", msg)
	}
}

func TestMetrics_Exposition(t *testing.T) {
	f := newFixture(t)
	if _, err := f.ports.GetOrAssign("alice"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	resp, err := http.Get(f.http.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(b), "hostd_world_bindings 1") {
		t.Fatalf("exposition missing gauge: %s", b)
	}
}
