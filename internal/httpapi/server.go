// Package httpapi implements the HTTP Surface (C7): the discovery,
// maintenance, and query API a tool-server process consumes, bound to
// loopback on the configured discovery port.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/console-mcp/broker/internal/config"
	"github.com/console-mcp/broker/internal/correlator"
	"github.com/console-mcp/broker/internal/export"
	"github.com/console-mcp/broker/internal/filter"
	"github.com/console-mcp/broker/internal/model"
	"github.com/console-mcp/broker/internal/search"
	"github.com/console-mcp/broker/internal/store"
	"github.com/console-mcp/broker/internal/tabs"
)

// ClientCounter reports the number of live WebSocket connections; satisfied
// by *hub.Hub without httpapi importing the hub package.
type ClientCounter interface {
	ClientCount() int
}

// Server wires the HTTP Surface to the stores, tab registry, and
// correlator it fronts.
type Server struct {
	log      *zap.SugaredLogger
	cfg      *config.Config
	serverID string
	started  time.Time

	logStore *store.Store[model.LogEntry]
	netStore *store.Store[model.NetEntry]
	tabs     *tabs.Registry
	corr     *correlator.Correlator
	clients  ClientCounter

	router chi.Router
}

// New builds the chi-routed HTTP Surface. corr may be nil, in which case
// the command-proxy endpoints answer 503 rather than panic — the same
// "not configured" policy the teacher's /api/stats handler uses for an
// unset stats tracker.
func New(log *zap.SugaredLogger, cfg *config.Config, serverID string, logStore *store.Store[model.LogEntry], netStore *store.Store[model.NetEntry], registry *tabs.Registry, corr *correlator.Correlator, clients ClientCounter) *Server {
	s := &Server{
		log:      log,
		cfg:      cfg,
		serverID: serverID,
		started:  time.Now(),
		logStore: logStore,
		netStore: netStore,
		tabs:     registry,
		corr:     corr,
		clients:  clients,
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)

	r.Get("/discover", s.handleDiscover)
	r.Get("/maintenance/stats", s.handleStats)
	r.Post("/maintenance/clear", s.handleClear)
	r.Post("/maintenance/export", s.handleExport)
	r.Post("/api/logs", s.handleLogsQuery)
	r.Post("/api/network", s.handleNetworkQuery)
	r.Get("/api/tabs", s.handleTabs)
	r.Post("/api/execute", s.handleExecute)
	r.Post("/api/query-dom", s.handleQueryDOM)
	r.Post("/api/snapshot", s.handleSnapshot)
	r.Post("/api/search", s.handleSearch)

	return r
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// decodeBody decodes r's JSON body into v, treating an empty body as {}.
// A malformed non-empty body is the caller's cue to answer 500 with the
// parse error, per §7's HTTP body parse error policy.
func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if err.Error() == "EOF" {
			return nil
		}
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	http.Error(w, err.Error(), status)
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"identifier": s.cfg.Identifier,
		"serverId":   s.serverID,
		"wsHost":     "127.0.0.1",
		"wsPort":     s.cfg.WSPort,
		"wsUrl":      wsURL(s.cfg.WSPort),
		"timestamp":  time.Now().UnixMilli(),
	})
}

func wsURL(port int) string {
	return "ws://127.0.0.1:" + strconv.Itoa(port)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	logStats := s.logStore.Stats()
	netStats := s.netStore.Stats()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"logs":        logStats,
		"network":     netStats,
		"tabs":        s.tabs.Len(),
		"connections": s.clientCount(),
	})
}

func (s *Server) clientCount() int {
	if s.clients == nil {
		return 0
	}
	return s.clients.ClientCount()
}

type clearRequest struct {
	TabID  *int   `json:"tabId"`
	Before string `json:"before"`
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	var req clearRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	var beforeMs *int64
	if req.Before != "" {
		if ms, ok := filter.ParseRelativeTime(req.Before, time.Now()); ok {
			beforeMs = &ms
		}
	}

	s.logStore.Clear(req.TabID, beforeMs)
	s.netStore.Clear(req.TabID, beforeMs)
	writeJSON(w, http.StatusOK, map[string]interface{}{"cleared": true})
}

type exportRequest struct {
	Format      string            `json:"format"`
	Filter      filter.Descriptor `json:"filter"`
	Fields      []string          `json:"fields"`
	PrettyPrint bool              `json:"prettyPrint"`
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if req.Format == "" {
		req.Format = "json"
	}

	compiled := filter.Compile(req.Filter, time.Now())
	entries := s.logStore.GetAll(compiled.MatchLog, nil)

	data, contentType, err := export.Encode(req.Format, entries, req.Fields, req.PrettyPrint)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type logsQueryRequest struct {
	Filter filter.Descriptor `json:"filter"`
}

func (s *Server) handleLogsQuery(w http.ResponseWriter, r *http.Request) {
	var req logsQueryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	compiled := filter.Compile(req.Filter, time.Now())
	var onlyTab *int
	if tab, ok := compiled.OnlyTabID(); ok {
		onlyTab = &tab
	}
	var match func(model.LogEntry) bool
	if onlyTab == nil {
		match = compiled.MatchLog
	}
	logs := s.logStore.GetAll(match, onlyTab)

	writeJSON(w, http.StatusOK, map[string]interface{}{"logs": logs, "count": len(logs)})
}

type networkQueryRequest struct {
	Action      string            `json:"action"`
	Filter      filter.Descriptor `json:"filter"`
	MinDuration *float64          `json:"minDuration"`
}

const defaultSlowThresholdMs = 1000.0

func (s *Server) handleNetworkQuery(w http.ResponseWriter, r *http.Request) {
	var req networkQueryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	desc := req.Filter
	switch req.Action {
	case "errors":
		isError := true
		desc.IsError = &isError
	case "slow":
		if req.MinDuration != nil {
			desc.MinDuration = req.MinDuration
		} else if desc.MinDuration == nil {
			threshold := defaultSlowThresholdMs
			desc.MinDuration = &threshold
		}
	}

	compiled := filter.Compile(desc, time.Now())
	var onlyTab *int
	if tab, ok := compiled.OnlyTabID(); ok {
		onlyTab = &tab
	}
	var match func(model.NetEntry) bool
	if onlyTab == nil {
		match = compiled.MatchNet
	}
	entries := s.netStore.GetAll(match, onlyTab)

	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries, "count": len(entries)})
}

func (s *Server) handleTabs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tabs":            s.tabs.All(),
		"connectionCount": s.clientCount(),
	})
}

type searchRequest struct {
	Action       string   `json:"action"`
	Pattern      string   `json:"pattern"`
	CaseSensitve bool     `json:"caseSensitive"`
	Fields       []string `json:"fields"`
	ContextLines int      `json:"contextLines"`
	Limit        int      `json:"limit"`
	Keywords     []string `json:"keywords"`
	Logic        string   `json:"logic"`
	Excludes     []string `json:"excludes"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	entries := s.logStore.GetAll(nil, nil)

	switch req.Action {
	case "regex":
		result, err := search.Regex(entries, search.RegexQuery{
			Pattern:      req.Pattern,
			CaseSensitve: req.CaseSensitve,
			Fields:       req.Fields,
			ContextLines: req.ContextLines,
			Limit:        req.Limit,
		})
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	case "keyword":
		result := search.Keyword(entries, search.KeywordQuery{
			Keywords: req.Keywords,
			Logic:    req.Logic,
			Excludes: req.Excludes,
			Limit:    req.Limit,
		})
		writeJSON(w, http.StatusOK, result)
	default:
		writeError(w, http.StatusBadRequest, errUnknownSearchAction(req.Action))
	}
}
