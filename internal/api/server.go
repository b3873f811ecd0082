// Package api provides the local HTTP API used by the settings page to
// manage rules, the API key and the pause state.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"promptman/internal/enhance"
	"promptman/internal/protocol"
	"promptman/internal/rules"
	"promptman/internal/usage"
)

// Pauser toggles expansion.
type Pauser interface {
	SetPaused(paused bool)
	Paused() bool
}

// Rewriter is the reconfigurable enhancement backend.
type Rewriter interface {
	Configure(ctx context.Context, key string) error
	Configured() bool
	Model() string
}

// Options wires the server to the running service. Store is required.
type Options struct {
	Store    *rules.Store
	Tracker  *usage.Tracker
	Rewriter Rewriter
	Engine   Pauser

	// SaveAPIKey persists a key once the rewriter has accepted it.
	SaveAPIKey func(key string) error

	// Hooked and Enhancing feed /api/status.
	Hooked    func() bool
	Enhancing func() bool

	Token   string
	UI      http.Handler
	Version string
}

// Server provides the HTTP API
type Server struct {
	opts  Options
	wsMgr *WSManager
	log   *zap.Logger
}

// NewServer creates the server and starts its websocket hub. Close stops
// the hub.
func NewServer(opts Options, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Tracker == nil {
		opts.Tracker = usage.NewTracker(0)
	}
	s := &Server{opts: opts, log: log}
	s.wsMgr = newWSManager(s, log.Named("ws"))
	go s.wsMgr.start()

	opts.Store.OnChange(func(next []rules.Rule) {
		s.wsMgr.Broadcast(protocol.Message{
			Type:    protocol.TypeRules,
			Payload: protocol.RulesPayload{Prompts: toPrompts(next)},
		})
	})
	opts.Tracker.OnUse(func(e usage.Entry) {
		s.wsMgr.Broadcast(protocol.Message{
			Type:    protocol.TypeUsage,
			Payload: protocol.UsagePayload{Shortcut: e.Shortcut, Count: e.Count, LastUsed: e.LastUsed.UnixMilli()},
		})
	})
	return s
}

// Close disconnects websocket clients and stops the hub.
func (s *Server) Close() {
	s.wsMgr.stop()
}

// Handler returns the routed handler with auth, logging and recovery. Hosts
// are checked by name only; Serve also pins the listening port.
func (s *Server) Handler() http.Handler {
	return s.handler(0)
}

func (s *Server) handler(port int) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/prompts", s.handleListPrompts)
	mux.HandleFunc("POST /api/prompts", s.handleAddPrompt)
	mux.HandleFunc("DELETE /api/prompts/{shortcut}", s.handleDeletePrompt)
	mux.HandleFunc("GET /api/prompts/defaults", s.handleDefaults)
	mux.HandleFunc("POST /api/prompts/sync", s.handleSync)
	mux.HandleFunc("POST /api/prompts/track-usage", s.handleTrackUsage)
	mux.HandleFunc("GET /api/prompts/recent", s.handleRecent)
	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("POST /api/settings", s.handleSaveSettings)
	mux.HandleFunc("POST /api/listener", s.handleListener)
	mux.HandleFunc("GET /ws", s.wsMgr.handleWebSocket)
	if s.opts.UI != nil {
		mux.Handle("GET /", s.opts.UI)
	}
	return s.logMiddleware(s.guardMiddleware(port, s.authMiddleware(s.recoverMiddleware(mux))))
}

// ListenAndServe serves on 127.0.0.1:port until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	ln, err := net.Listen("tcp4", addr)
	if err != nil {
		s.Close()
		return fmt.Errorf("api: listen on %s: %w", addr, err)
	}
	s.log.Info("Starting API server", zap.String("addr", addr))
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	port := 0
	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		port = addr.Port
	}
	server := &http.Server{
		Handler:           s.handler(port),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- server.Serve(ln) }()

	select {
	case <-ctx.Done():
		s.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		<-errc
		s.log.Info("API server stopped")
		return err
	case err := <-errc:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// BroadcastEnhance reports an enhancement state change to the page.
func (s *Server) BroadcastEnhance(id string, state enhance.State) {
	s.wsMgr.Broadcast(protocol.Message{
		Type:    protocol.TypeEnhance,
		Payload: protocol.EnhancePayload{ID: id, State: state.String()},
	})
}

// BroadcastListener reports a pause state change to the page.
func (s *Server) BroadcastListener(paused bool) {
	s.wsMgr.Broadcast(protocol.Message{
		Type:    protocol.TypeListener,
		Payload: protocol.ListenerPayload{Paused: paused},
	})
}

func (s *Server) rulesMessage() protocol.Message {
	return protocol.Message{
		Type:    protocol.TypeRules,
		Payload: protocol.RulesPayload{Prompts: toPrompts(s.opts.Store.Snapshot())},
	}
}

// recoverMiddleware prevents panics from crashing the whole server
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.log.Error("Handler panic", zap.String("path", r.URL.Path), zap.Any("panic", err))
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authMiddleware checks the API token if configured. Browsers cannot set
// headers on websocket upgrades, so ?token= is accepted as well.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Token == "" || r.URL.Path == "/health" || !isProtected(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader != "Bearer "+s.opts.Token && r.URL.Query().Get("token") != s.opts.Token {
			writeResult(w, http.StatusUnauthorized, "error", "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// guardMiddleware rejects requests made on behalf of other web pages.
func (s *Server) guardMiddleware(port int, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !loopbackHost(r.Host, port) {
			writeResult(w, http.StatusForbidden, "error", "Host not allowed")
			return
		}
		if !sameHostOrigin(r) {
			writeResult(w, http.StatusForbidden, "error", "Cross-origin request rejected")
			return
		}
		if changesState(r.Method) && !isJSON(r.Header.Get("Content-Type")) {
			writeResult(w, http.StatusUnsupportedMediaType, "error", "Content-Type must be application/json")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loopbackHost accepts 127.0.0.1, localhost and [::1], on port when it is
// non-zero.
func loopbackHost(hostport string, port int) bool {
	host, p, err := net.SplitHostPort(hostport)
	if err != nil {
		host, p = hostport, ""
	}
	switch strings.ToLower(host) {
	case "127.0.0.1", "localhost", "::1":
	default:
		return false
	}
	return port == 0 || p == strconv.Itoa(port)
}

// changesState reports methods whose bodies are decoded as JSON. DELETE
// carries no body and already needs a CORS preflight, which is never granted.
func changesState(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "application/json"
}

func isProtected(path string) bool {
	return strings.HasPrefix(path, "/api/") || path == "/ws"
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("API request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("api: response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// handleHealth handles GET /health (for monitoring)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStatus handles GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := protocol.StatusResponse{
		Rules:   s.opts.Store.Len(),
		Version: s.opts.Version,
	}
	if s.opts.Engine != nil {
		status.Paused = s.opts.Engine.Paused()
	}
	if s.opts.Rewriter != nil {
		status.Configured = s.opts.Rewriter.Configured()
		status.Model = s.opts.Rewriter.Model()
	}
	if s.opts.Hooked != nil {
		status.Hooked = s.opts.Hooked()
	}
	if s.opts.Enhancing != nil {
		status.Enhancing = s.opts.Enhancing()
	}
	writeJSON(w, http.StatusOK, status)
}

// handleListPrompts handles GET /api/prompts
func (s *Server) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toPrompts(s.opts.Store.Snapshot()))
}

// handleAddPrompt handles POST /api/prompts, replacing an existing rule
// with the same shortcut in place.
func (s *Server) handleAddPrompt(w http.ResponseWriter, r *http.Request) {
	var p protocol.Prompt
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeResult(w, http.StatusBadRequest, "error", "Invalid prompt data")
		return
	}

	rule := rules.Rule{Shortcut: p.Shortcut, Prepend: p.Prepend, Postpend: p.Postpend, Text: p.Text}
	if err := s.opts.Store.Add(rule); err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPrompt(rule))
}

// handleDeletePrompt handles DELETE /api/prompts/{shortcut}
func (s *Server) handleDeletePrompt(w http.ResponseWriter, r *http.Request) {
	if err := s.opts.Store.Delete(r.PathValue("shortcut")); err != nil {
		s.storeError(w, err)
		return
	}
	writeResult(w, http.StatusOK, "success", "Prompt deleted")
}

// handleDefaults handles GET /api/prompts/defaults with the rules in the
// prompts.json object form.
func (s *Server) handleDefaults(w http.ResponseWriter, r *http.Request) {
	data, err := rules.EncodeMap(s.opts.Store.Snapshot())
	if err != nil {
		s.storeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// handleSync handles POST /api/prompts/sync, replacing every rule with the
// {"prompts": {...}} object in the body.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Prompts json.RawMessage `json:"prompts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Prompts) == 0 {
		writeResult(w, http.StatusBadRequest, "error", "No data provided")
		return
	}

	next, err := rules.DecodeMap(body.Prompts)
	if err != nil {
		writeResult(w, http.StatusBadRequest, "error", "Invalid prompts format")
		return
	}
	if err := s.opts.Store.Replace(next); err != nil {
		s.storeError(w, err)
		return
	}
	s.log.Info("Prompts synced", zap.Int("count", len(next)))
	writeResult(w, http.StatusOK, "success", "Prompts synced successfully")
}

// handleTrackUsage handles POST /api/prompts/track-usage
func (s *Server) handleTrackUsage(w http.ResponseWriter, r *http.Request) {
	var req protocol.TrackUsageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResult(w, http.StatusBadRequest, "error", "No data provided")
		return
	}
	if req.Shortcut == "" {
		writeResult(w, http.StatusBadRequest, "error", "Shortcut not provided")
		return
	}
	s.opts.Tracker.Record(req.Shortcut)
	writeResult(w, http.StatusOK, "success", "Usage tracked")
}

// handleRecent handles GET /api/prompts/recent
func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	recent := s.opts.Tracker.Recent()
	out := make([]protocol.UsagePayload, len(recent))
	for i, e := range recent {
		out[i] = protocol.UsagePayload{Shortcut: e.Shortcut, Count: e.Count, LastUsed: e.LastUsed.UnixMilli()}
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetSettings handles GET /api/settings
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	var resp protocol.SettingsResponse
	if s.opts.Rewriter != nil {
		resp.Configured = s.opts.Rewriter.Configured()
		resp.Model = s.opts.Rewriter.Model()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSaveSettings handles POST /api/settings
func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var req protocol.SettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.APIKey) == "" {
		writeResult(w, http.StatusBadRequest, "error", "Invalid API Key")
		return
	}
	key := strings.TrimSpace(req.APIKey)

	if s.opts.Rewriter != nil {
		if err := s.opts.Rewriter.Configure(r.Context(), key); err != nil {
			s.log.Warn("Rewriter rejected the new key", zap.Error(err))
			writeResult(w, http.StatusBadRequest, "error", "Invalid API Key")
			return
		}
	}
	if s.opts.SaveAPIKey != nil {
		if err := s.opts.SaveAPIKey(key); err != nil {
			s.log.Error("Failed to save API key", zap.Error(err))
			writeResult(w, http.StatusInternalServerError, "error", "Failed to save settings")
			return
		}
	}
	writeResult(w, http.StatusOK, "success", "Settings saved")
}

// handleListener handles POST /api/listener
func (s *Server) handleListener(w http.ResponseWriter, r *http.Request) {
	if s.opts.Engine == nil {
		writeResult(w, http.StatusServiceUnavailable, "error", "Listener not running")
		return
	}
	var req protocol.ListenerPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResult(w, http.StatusBadRequest, "error", "Invalid listener state")
		return
	}
	s.opts.Engine.SetPaused(req.Paused)
	s.BroadcastListener(req.Paused)
	writeJSON(w, http.StatusOK, protocol.ListenerPayload{Paused: s.opts.Engine.Paused()})
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rules.ErrInvalidShortcut):
		writeResult(w, http.StatusBadRequest, "error", err.Error())
	case errors.Is(err, rules.ErrNotFound):
		writeResult(w, http.StatusNotFound, "error", err.Error())
	default:
		s.log.Error("Rule store failure", zap.Error(err))
		writeResult(w, http.StatusInternalServerError, "error", "Failed to update prompts")
	}
}

func toPrompt(r rules.Rule) protocol.Prompt {
	return protocol.Prompt{
		Shortcut: r.Shortcut,
		Prepend:  r.Prepend,
		Postpend: r.Postpend,
		Text:     r.Text,
		Trigger:  r.Trigger(),
	}
}

func toPrompts(rs []rules.Rule) []protocol.Prompt {
	out := make([]protocol.Prompt, len(rs))
	for i, r := range rs {
		out[i] = toPrompt(r)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeResult(w http.ResponseWriter, status int, state, message string) {
	writeJSON(w, status, protocol.Result{Status: state, Message: message})
}
