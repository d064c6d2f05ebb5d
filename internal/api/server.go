// Package api provides the HTTP interface of the daemon.
// GET endpoints are public (read-only state observation).
// POST endpoints feed blocks and mempool moves; they require a bearer
// token when one is configured.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/talgya/outpost/internal/logic"
	"github.com/talgya/outpost/internal/moves"
	"github.com/talgya/outpost/internal/pending"
	"github.com/talgya/outpost/internal/statejson"
)

// Server serves the game state over HTTP and accepts the block feed.
type Server struct {
	Game *logic.Game
	Port int

	// FeedKey guards the POST endpoints. Empty disables the check;
	// that is only sane on regtest behind a firewall.
	FeedKey string

	// mu serializes block processing and pending updates; the engine
	// is strictly single-threaded per block.
	mu sync.Mutex

	pendingState *pending.State

	hub *wsHub

	httpServer *http.Server
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	s.pendingState = pending.NewState()
	s.hub = newWsHub()

	schema := compileBlockSchema()
	stateLimiter := NewRateLimiter(5, 10)

	mux := http.NewServeMux()

	// Public read-only endpoints.
	mux.HandleFunc("GET /state", stateLimiter.Middleware(s.handleState))
	mux.HandleFunc("GET /bootstrap", stateLimiter.Middleware(s.handleBootstrap))
	mux.HandleFunc("GET /trades", stateLimiter.Middleware(s.handleTrades))
	mux.HandleFunc("GET /pending", stateLimiter.Middleware(s.handlePending))
	mux.HandleFunc("GET /ws", s.handleWs)

	// Feed endpoints for the chain driver.
	mux.HandleFunc("POST /blocks", s.feedOnly(s.handleBlock(schema)))
	mux.HandleFunc("POST /moves/pending", s.feedOnly(s.handlePendingMove))

	addr := fmt.Sprintf(":%d", s.Port)
	s.httpServer = &http.Server{Addr: addr, Handler: mux}

	slog.Info("HTTP API starting", "addr", addr, "feed_auth", s.FeedKey != "")
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil &&
			err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Stop shuts the server down.
func (s *Server) Stop() {
	if s.httpServer != nil {
		s.httpServer.Close()
	}
}

// feedOnly enforces the bearer token on feed endpoints.
func (s *Server) feedOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.FeedKey != "" {
			auth := r.Header.Get("Authorization")
			if auth != "Bearer "+s.FeedKey {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

// withTables opens a read-only view of the confirmed state and hands
// it to fn. The transaction is always rolled back.
func (s *Server) withTables(fn func(t *moves.Tables)) error {
	tx, err := s.Game.DB.BeginBlock()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	height, _ := strconv.ParseUint(s.Game.DB.Meta("height"), 10, 64)
	t := s.Game.NewTables(tx, height, 0)
	defer t.Money.Release()

	fn(t)
	return nil
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var raw json.RawMessage
	err := s.withTables(func(t *moves.Tables) {
		if sinceStr := r.URL.Query().Get("regions_since"); sinceStr != "" {
			since, parseErr := strconv.ParseUint(sinceStr, 10, 64)
			if parseErr != nil {
				raw = nil
				return
			}
			raw = statejson.RegionsSince(t, since)
			return
		}
		raw = statejson.FullState(t)
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if raw == nil {
		http.Error(w, "invalid regions_since", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(raw)
}

// handleBootstrap serves the full state as a zstd-compressed snapshot
// for new nodes catching up.
func (s *Server) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var raw json.RawMessage
	if err := s.withTables(func(t *moves.Tables) {
		raw = statejson.FullState(t)
	}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	payload, err := json.Marshal(map[string]json.RawMessage{
		"height": json.RawMessage(s.heightJSON()),
		"state":  raw,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/zstd")
	enc, err := zstd.NewWriter(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer enc.Close()
	if _, err := enc.Write(payload); err != nil {
		slog.Error("bootstrap write failed", "error", err)
	}
}

func (s *Server) heightJSON() string {
	height := s.Game.DB.Meta("height")
	if height == "" {
		height = "0"
	}
	return height
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	item := r.URL.Query().Get("item")
	buildingStr := r.URL.Query().Get("building")
	building, err := strconv.ParseUint(buildingStr, 10, 64)
	if item == "" || err != nil {
		http.Error(w, "item and building required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var raw json.RawMessage
	if err := s.withTables(func(t *moves.Tables) {
		raw = statejson.TradeHistory(t, item, building)
	}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(raw)
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	raw := s.pendingState.ToJSON()
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.Write(raw)
}

// handleBlock validates the envelope, runs the block through the
// engine and broadcasts the new state.
func (s *Server) handleBlock(schema *jsonschema.Schema) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, 64<<20))
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}

		var generic interface{}
		if err := json.Unmarshal(body, &generic); err != nil {
			http.Error(w, "invalid JSON", http.StatusBadRequest)
			return
		}
		if err := schema.Validate(generic); err != nil {
			http.Error(w, "invalid block envelope: "+err.Error(),
				http.StatusBadRequest)
			return
		}

		var blk logic.BlockData
		if err := json.Unmarshal(body, &blk); err != nil {
			http.Error(w, "invalid block", http.StatusBadRequest)
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		if err := s.Game.ProcessBlock(&blk); err != nil {
			slog.Error("block processing failed", "error", err)
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}

		// Confirmed state advanced: the pending view restarts from
		// scratch and subscribers get the fresh state.
		s.pendingState.Clear()
		var raw json.RawMessage
		if err := s.withTables(func(t *moves.Tables) {
			raw = statejson.FullState(t)
		}); err == nil {
			s.hub.broadcast(wsMessage{
				Type:   "block",
				Height: blk.Block.Height,
				State:  raw,
			})
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// handlePendingMove feeds one mempool move into the pending
// projection.
func (s *Server) handlePendingMove(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	var entry moves.MoveEntry
	if err := json.Unmarshal(body, &entry); err != nil {
		http.Error(w, "invalid move", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.withTables(func(t *moves.Tables) {
		updater := pending.NewUpdater(s.pendingState, t)
		updater.ProcessMove(&entry)
	}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.hub.broadcast(wsMessage{
		Type:    "pending",
		Pending: s.pendingState.ToJSON(),
	})

	w.WriteHeader(http.StatusNoContent)
}
