// Package telemetry broadcasts per-tick simulation stats to connected
// websocket clients, and serves the latest snapshot over plain HTTP.
//
// Grounded on the teacher's server package: the same gorilla/websocket
// ping/pong pump from tabular/server/server.go's publishEleUpdates, reusing
// channerics.NewTicker for the ping cadence. Unlike the teacher, there is
// no HTML view to assemble here, so routing goes through gorilla/mux
// instead of bare http.HandleFunc, and updates are raw JSON snapshots
// rather than SVG element deltas.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
)

const (
	writeWait        = 1 * time.Second
	pongWait         = 60 * time.Second
	pingResolution   = 500 * time.Millisecond
	publishThrottle  = 100 * time.Millisecond
	closeGracePeriod = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Snapshot is one published tick's worth of stats, shaped for direct JSON
// marshaling; Fields is whatever stats the caller wants observable this
// tick (tick counters, active agent counts, FL round state, and so on).
type Snapshot struct {
	Tick   uint64         `json:"tick"`
	Fields map[string]any `json:"fields"`
}

// Broadcaster fans a stream of Snapshots out to every connected websocket
// client, and answers GET /status with the most recently published one.
type Broadcaster struct {
	addr   string
	router *mux.Router

	mu       sync.Mutex
	last     Snapshot
	haveLast bool
	clients  map[chan Snapshot]struct{}
}

// NewBroadcaster builds a Broadcaster listening on addr, with routes not
// yet bound to a live server until Serve is called.
func NewBroadcaster(addr string) *Broadcaster {
	b := &Broadcaster{
		addr:    addr,
		router:  mux.NewRouter(),
		clients: make(map[chan Snapshot]struct{}),
	}
	b.router.HandleFunc("/status", b.serveStatus).Methods(http.MethodGet)
	b.router.HandleFunc("/ws", b.serveWebsocket)
	return b
}

// Serve blocks, running the HTTP server until ctx is cancelled.
func (b *Broadcaster) Serve(ctx context.Context) error {
	srv := &http.Server{Addr: b.addr, Handler: b.router}

	errs := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errs <- fmt.Errorf("telemetry: serve: %w", err)
			return
		}
		errs <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), closeGracePeriod)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errs:
		return err
	}
}

// Publish fans one tick's snapshot out to every connected client,
// non-blocking: a client too slow to keep up drops this update rather
// than stalling the simulation loop (teacher note in server.go: "taking
// too long here could block senders on the state chan").
func (b *Broadcaster) Publish(snap Snapshot) {
	b.mu.Lock()
	b.last = snap
	b.haveLast = true
	for ch := range b.clients {
		select {
		case ch <- snap:
		default:
		}
	}
	b.mu.Unlock()
}

func (b *Broadcaster) register() chan Snapshot {
	ch := make(chan Snapshot, 1)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broadcaster) unregister(ch chan Snapshot) {
	b.mu.Lock()
	delete(b.clients, ch)
	b.mu.Unlock()
	close(ch)
}

func (b *Broadcaster) serveStatus(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	snap, ok := b.last, b.haveLast
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		log.Println("telemetry: status:", err)
	}
}

func (b *Broadcaster) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		log.Println("telemetry: upgrade:", err)
		return
	}
	defer closeWebsocket(ws)

	updates := b.register()
	defer b.unregister(updates)

	b.pump(r.Context(), ws, updates)
}

// pump is the teacher's ping/pong publish loop (tabular/server/server.go
// publishEleUpdates), generalized from element-update deltas to Snapshots.
func (b *Broadcaster) pump(ctx context.Context, ws *websocket.Conn, updates chan Snapshot) {
	pubCtx, cancelPub := context.WithCancel(ctx)
	defer cancelPub()

	pinger := channerics.NewTicker(pubCtx.Done(), pingResolution)
	lastPong := time.Now()
	lastPublish := time.Now()

	pong := make(chan struct{})
	defer close(pong)
	ws.SetPongHandler(func(string) error {
		select {
		case pong <- struct{}{}:
		case <-pubCtx.Done():
		}
		return nil
	})

	go func() {
		for {
			select {
			case <-pubCtx.Done():
				return
			default:
				if _, _, err := ws.ReadMessage(); err != nil {
					cancelPub()
					return
				}
			}
		}
	}()

	for {
		select {
		case <-pubCtx.Done():
			return
		case <-pinger:
			if time.Since(lastPong) > pingResolution*2 {
				return
			}
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-pong:
			lastPong = time.Now()
		case snap := <-updates:
			if time.Since(lastPublish) < publishThrottle {
				continue
			}
			lastPublish = time.Now()
			if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := ws.WriteJSON(snap); err != nil {
				return
			}
		}
	}
}

func closeWebsocket(ws *websocket.Conn) {
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	_ = ws.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	ws.Close()
}
