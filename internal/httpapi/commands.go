package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/console-mcp/broker/internal/model"
)

func errUnknownSearchAction(action string) error {
	return fmt.Errorf("unknown search action %q", action)
}

var errCorrelatorUnconfigured = errors.New("command correlator not configured")

type executeRequest struct {
	Code  string `json:"code"`
	TabID int    `json:"tabId"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, errors.New("missing required field: code"))
		return
	}

	s.proxyCommand(w, r, model.CommandExecuteJS, map[string]interface{}{
		"code":  req.Code,
		"tabId": req.TabID,
	}, s.cfg.CommandTimeout)
}

type queryDOMRequest struct {
	Selector string `json:"selector"`
	TabID    int    `json:"tabId"`
}

func (s *Server) handleQueryDOM(w http.ResponseWriter, r *http.Request) {
	var req queryDOMRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if req.Selector == "" {
		writeError(w, http.StatusBadRequest, errors.New("missing required field: selector"))
		return
	}

	s.proxyCommand(w, r, model.CommandQueryDOM, map[string]interface{}{
		"selector": req.Selector,
		"tabId":    req.TabID,
	}, s.cfg.CommandTimeout)
}

type snapshotRequest struct {
	TabID int `json:"tabId"`
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	var req snapshotRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.proxyCommand(w, r, model.CommandDOMSnapshot, map[string]interface{}{
		"tabId": req.TabID,
	}, s.cfg.SnapshotTimeout)
}

// proxyCommand runs a synchronous Correlator.Call and writes the result (or
// a 500 on timeout or JS-side error) as the HTTP response, minus the
// requestId framing field.
func (s *Server) proxyCommand(w http.ResponseWriter, r *http.Request, kind model.CommandKind, payload map[string]interface{}, timeout time.Duration) {
	if s.corr == nil {
		writeError(w, http.StatusServiceUnavailable, errCorrelatorUnconfigured)
		return
	}

	result, err := s.corr.Call(r.Context(), kind, payload, timeout)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	stripped, err := stripRequestID(result)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stripped)
}

func stripRequestID(payload json.RawMessage) (map[string]interface{}, error) {
	var m map[string]interface{}
	if len(payload) == 0 {
		return map[string]interface{}{}, nil
	}
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, err
	}
	delete(m, "requestId")
	delete(m, "error")
	return m, nil
}
