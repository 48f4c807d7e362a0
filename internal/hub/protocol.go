// Package hub implements the Client Hub (C5): the single WebSocket
// endpoint browser instrumentation connects to, frame validation, ingress
// dispatch into the stores and tab registry, liveness sweeps, and outbound
// broadcast of commands and server frames.
package hub

import "encoding/json"

// FrameType is the wire-level discriminator carried by every frame.
type FrameType string

const (
	// Inbound (client -> broker).
	FrameLog                 FrameType = "log"
	FrameNetworkEntry        FrameType = "network_entry"
	FrameTabOpened           FrameType = "tab_opened"
	FrameTabUpdated          FrameType = "tab_updated"
	FrameTabClosed           FrameType = "tab_closed"
	FrameHeartbeat           FrameType = "heartbeat"
	FrameInjectMarker        FrameType = "inject_marker"
	FrameExecuteJSResponse   FrameType = "execute_js_response"
	FramePageInfoResponse    FrameType = "page_info_response"
	FrameQueryDOMResponse    FrameType = "query_dom_response"
	FrameDOMSnapshotResponse FrameType = "dom_snapshot_response"

	// Outbound (broker -> client).
	FrameConfigure      FrameType = "configure"
	FramePing           FrameType = "ping"
	FrameExecuteJS      FrameType = "execute_js"
	FrameGetPageInfo    FrameType = "get_page_info"
	FrameQueryDOM       FrameType = "query_dom"
	FrameGetDOMSnapshot FrameType = "get_dom_snapshot"
)

// frame is the envelope both inbound and outbound payloads travel in: a
// discriminated union over Type with the variant's fields carried
// unparsed in Data until the type is known.
type frame struct {
	Type FrameType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// responseEnvelope is the framing every *_response inbound variant shares:
// the request id it answers and, optionally, an error description (used by
// execute_js_response to surface a JS-side exception).
type responseEnvelope struct {
	RequestID string `json:"requestId"`
	Error     string `json:"error,omitempty"`
}

// tabClosedData is the payload of a tab_closed frame.
type tabClosedData struct {
	TabID int `json:"tabId"`
}

// injectMarkerData is the payload of an inject_marker frame: enough
// identity to place a synthetic LogEntry where the caller asked.
type injectMarkerData struct {
	TabID     int    `json:"tabId"`
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
	Message   string `json:"message,omitempty"`
}

// markerMessage is the well-known message synthesized log entries carry
// when no explicit message is supplied in the inject_marker frame.
const markerMessage = "◆ marker"

// configureData is the payload the hub sends on every new connection.
type configureData struct {
	HeartbeatIntervalMs int64 `json:"heartbeatIntervalMs"`
}
