// Package engine routes game uploads to the handler for their runtime
// engine. The engine set is closed: four handlers, selected by a fixed
// table, never discovered.
package engine

import (
	"context"
	"fmt"
	"sort"
)

type Engine string

const (
	// EasyRPG hosts legacy static-resource games played in a web runtime.
	EasyRPG Engine = "easyrpg"
	// Sandbox hosts voxel-sandbox worlds served by a supervised server
	// process.
	Sandbox Engine = "sandbox"
	// HTML hosts plain static HTML games.
	HTML Engine = "html"
	// Downloadable is the pass-through engine: the upload is catalog
	// metadata only, nothing is staged or served.
	Downloadable Engine = "downloadable"
)

func Parse(s string) (Engine, error) {
	switch Engine(s) {
	case EasyRPG, Sandbox, HTML, Downloadable:
		return Engine(s), nil
	}
	return "", fmt.Errorf("unsupported engine %q", s)
}

// UploadRequest carries one upload through a handler. It is not persisted.
type UploadRequest struct {
	// GameKey is the stable slug of the game; for the sandbox engine it
	// doubles as the world name.
	GameKey string
	// Archive is the raw zip upload.
	Archive []byte
	// Charset optionally names the IANA character set of non-UTF-8 entry
	// names in legacy archives.
	Charset string
}

type UploadResult struct {
	// Warning is set when the deployment succeeded but a non-fatal step
	// failed (currently only a sandbox server (re)start).
	Warning string
}

type Handler interface {
	UploadGame(ctx context.Context, req UploadRequest) (UploadResult, error)
	DeleteGame(ctx context.Context, gameKey string) error
}

type Dispatcher struct {
	handlers map[Engine]Handler
}

func NewDispatcher(handlers map[Engine]Handler) *Dispatcher {
	d := &Dispatcher{handlers: make(map[Engine]Handler, len(handlers))}
	for e, h := range handlers {
		d.handlers[e] = h
	}
	return d
}

func (d *Dispatcher) Dispatch(e Engine) (Handler, error) {
	h, ok := d.handlers[e]
	if !ok {
		return nil, fmt.Errorf("unsupported engine %q", string(e))
	}
	return h, nil
}

func (d *Dispatcher) Engines() []Engine {
	out := make([]Engine, 0, len(d.handlers))
	for e := range d.handlers {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
