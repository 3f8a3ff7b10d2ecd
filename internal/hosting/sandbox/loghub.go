package sandbox

import "sync"

// LogHub fans out server process output lines to per-port subscribers.
// Slow subscribers drop lines rather than stalling the supervisor.
type LogHub struct {
	mu   sync.RWMutex
	subs map[int]map[chan string]struct{}
}

func NewLogHub() *LogHub {
	return &LogHub{subs: map[int]map[chan string]struct{}{}}
}

func (h *LogHub) Publish(port int, line string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[port] {
		select {
		case ch <- line:
		default:
		}
	}
}

// Subscribe returns a channel of output lines for port and a cancel func
// that closes it.
func (h *LogHub) Subscribe(port int) (<-chan string, func()) {
	ch := make(chan string, 256)
	h.mu.Lock()
	if h.subs[port] == nil {
		h.subs[port] = map[chan string]struct{}{}
	}
	h.subs[port][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set := h.subs[port]; set != nil {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(h.subs, port)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}
