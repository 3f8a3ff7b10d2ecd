package web

import (
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"w3itch.games/internal/protocol"
)

var adminUpgrader = websocket.Upgrader{
	ReadBufferSize:  16 * 1024,
	WriteBufferSize: 16 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // loopback only
}

func (s *Server) handlePorts(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !isLoopbackRemote(r.RemoteAddr) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}

	out := []protocol.PortBinding{}
	if s.ports != nil {
		for world, port := range s.ports.Bindings() {
			running := false
			if s.sup != nil {
				running = s.sup.Running(port)
			}
			out = append(out, protocol.PortBinding{WorldName: world, Port: port, Running: running})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Port < out[j].Port })
	writeJSON(rw, http.StatusOK, out)
}

func (s *Server) handleDeployments(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !isLoopbackRemote(r.RemoteAddr) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	recs, err := s.store.RecentDeployments(limit)
	if err != nil {
		s.log.Printf("[web] list deployments: %v", err)
		writeError(rw, http.StatusInternalServerError, protocol.ErrInternal, "internal error")
		return
	}
	out := make([]protocol.DeploymentRecord, 0, len(recs))
	for _, d := range recs {
		out = append(out, protocol.DeploymentRecord{
			DeployID:   d.ID,
			GameKey:    d.GameKey,
			Engine:     d.Engine,
			Outcome:    d.Outcome,
			Warning:    d.Warning,
			DurationMS: d.Duration.Milliseconds(),
			CreatedAt:  d.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(rw, http.StatusOK, out)
}

// handleLogTail streams a running world server's output lines over a
// websocket. Slow consumers miss lines rather than stall the process
// forwarder.
func (s *Server) handleLogTail(rw http.ResponseWriter, r *http.Request) {
	if !isLoopbackRemote(r.RemoteAddr) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}
	port, err := strconv.Atoi(r.URL.Query().Get("port"))
	if err != nil || port <= 0 {
		http.Error(rw, "port query parameter required", http.StatusBadRequest)
		return
	}

	conn, err := adminUpgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	lines, cancel := s.hub.Subscribe(port)
	defer cancel()

	// Reader loop only notices the peer going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case line, ok := <-lines:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				return
			}
		}
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
