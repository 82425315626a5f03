// Package webui serves the archive dashboard: an embedded single page,
// a JSON view of the current archive tree, and a WebSocket that announces
// new generations so the page can refetch.
package webui

import (
	"context"
	"embed"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/tobert/tracearc/internal/model"
)

//go:embed static/index.html
var staticFiles embed.FS

// Source is what the server renders: a rebuildable archive over a live
// record store.
type Source interface {
	// Archive returns the current archive. A no_root build failure is
	// returned as the error; the UI shows it instead of a tree.
	Archive() (*model.Archive, error)
	Generation() uint64
	RecordCount() int
	// Subscribe signals when new records arrive; see store.RecordStore.
	Subscribe() (<-chan struct{}, func())
}

// Server serves the embedded web UI and WebSocket updates.
type Server struct {
	source Source
}

func New(source Source) *Server {
	return &Server{source: source}
}

// RegisterRoutes attaches web UI routes to an existing ServeMux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ui/", s.handleUI)
	mux.HandleFunc("GET /ui", s.handleUIRedirect)
	mux.HandleFunc("GET /api/archive", s.handleArchive)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
}

// ListenAndServe starts a standalone HTTP server for the web UI.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// handleUIRedirect redirects /ui to /ui/ for consistent routing.
func (s *Server) handleUIRedirect(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/ui/", http.StatusMovedPermanently)
}

// handleUI serves the embedded index.html.
func (s *Server) handleUI(w http.ResponseWriter, r *http.Request) {
	data, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, "UI not found", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// archiveResponse is the JSON shape for /api/archive. Root is null when
// the build had no resolvable root; the error then appears in Errors.
type archiveResponse struct {
	Generation uint64         `json:"generation"`
	Root       *archiveNode   `json:"root"`
	Unlinked   []*archiveNode `json:"unlinked,omitempty"`
	Errors     []string       `json:"errors"`
}

type archiveNode struct {
	Type      string                    `json:"type"`
	ID        string                    `json:"id"`
	Metrics   map[string]any            `json:"metrics"`
	Artifacts map[string]model.Artifact `json:"artifacts"`
	Children  []*archiveNode            `json:"children,omitempty"`
}

func newArchiveNode(op *model.Operation) *archiveNode {
	n := &archiveNode{
		Type:      op.Type,
		ID:        op.ID,
		Metrics:   op.Metrics,
		Artifacts: op.Artifacts,
	}
	for _, child := range op.Children {
		n.Children = append(n.Children, newArchiveNode(child))
	}
	return n
}

// handleArchive returns the current archive tree as JSON.
func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	resp := archiveResponse{Generation: s.source.Generation()}

	arc, err := s.source.Archive()
	if err != nil {
		resp.Errors = []string{err.Error()}
		writeJSON(w, resp)
		return
	}

	resp.Root = newArchiveNode(arc.Root)
	for _, op := range arc.Unlinked {
		resp.Unlinked = append(resp.Unlinked, newArchiveNode(op))
	}
	resp.Errors = make([]string, len(arc.Errors))
	for i := range arc.Errors {
		resp.Errors[i] = arc.Errors[i].Error()
	}

	writeJSON(w, resp)
}

// statusResponse is the JSON shape for /api/status.
type statusResponse struct {
	Generation uint64 `json:"generation"`
	Records    int    `json:"records"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, statusResponse{
		Generation: s.source.Generation(),
		Records:    s.source.RecordCount(),
	})
}

// wsUpdate is the server-sent update message on the WebSocket. The page
// refetches /api/archive when the generation moves.
type wsUpdate struct {
	Generation uint64 `json:"generation"`
	Records    int    `json:"records"`
}

// handleWebSocket upgrades to WebSocket and announces generation bumps.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // Allow any origin for localhost dev
	})
	if err != nil {
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()

	notifyCh, unsubscribe := s.source.Subscribe()
	defer unsubscribe()

	// Send initial state immediately.
	s.sendUpdate(ctx, conn)

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "server shutting down")
			return
		case <-notifyCh:
			s.sendUpdate(ctx, conn)
		case <-keepalive.C:
			s.sendUpdate(ctx, conn)
		}
	}
}

func (s *Server) sendUpdate(ctx context.Context, conn *websocket.Conn) {
	data, err := json.Marshal(wsUpdate{
		Generation: s.source.Generation(),
		Records:    s.source.RecordCount(),
	})
	if err != nil {
		log.Printf("webui: failed to marshal update: %v", err)
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		// Connection closed; the main loop will handle cleanup.
		return
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("webui: failed to write JSON: %v", err)
	}
}
