package hub

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/console-mcp/broker/internal/model"
	"github.com/console-mcp/broker/internal/store"
	"github.com/console-mcp/broker/internal/tabs"
)

// Resolver is the subset of the Request Correlator the hub needs: dispatch
// of response frames by request id. The hub has no import dependency on
// the correlator package; main wires the two together.
type Resolver func(requestID string, payload json.RawMessage, errMsg string)

// Hub is the Client Hub: one WebSocket endpoint, any number of concurrent
// clients, ingress dispatch into the stores and tab registry, and outbound
// broadcast of commands and server frames.
type Hub struct {
	log *zap.SugaredLogger

	logStore *store.Store[model.LogEntry]
	netStore *store.Store[model.NetEntry]
	tabs     *tabs.Registry
	resolve  Resolver

	heartbeatInterval time.Duration
	now               func() time.Time

	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]bool

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New creates a Hub wired to the given stores and tab registry. Inbound
// response frames are dropped until SetResolver installs a resolver, which
// lets the correlator be constructed after the hub (breaking the wiring
// cycle between the two).
func New(log *zap.SugaredLogger, logStore *store.Store[model.LogEntry], netStore *store.Store[model.NetEntry], registry *tabs.Registry, heartbeatInterval time.Duration) *Hub {
	return &Hub{
		log:               log,
		logStore:          logStore,
		netStore:          netStore,
		tabs:              registry,
		heartbeatInterval: heartbeatInterval,
		now:               time.Now,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]bool),
		stopCh:  make(chan struct{}),
	}
}

// SetResolver installs the callback used to dispatch inbound response
// frames, and must be called before any client connects.
func (h *Hub) SetResolver(resolve Resolver) {
	h.resolve = resolve
}

// Run starts the periodic heartbeat sweep; it returns when Close is called.
func (h *Hub) Run() {
	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.sweepHeartbeats()
		case <-h.stopCh:
			return
		}
	}
}

// ServeHTTP upgrades the request to a WebSocket connection and registers a
// new client, per browser tabs sharing one connection per extension
// instance.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("websocket upgrade failed", "err", err)
		return
	}

	c := newClient(conn)
	conn.SetPongHandler(func(string) error {
		c.markAlive()
		return nil
	})

	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	go c.writePump()
	h.sendConfigure(c)
	h.readLoop(c)
}

func (h *Hub) sendConfigure(c *client) {
	data, _ := json.Marshal(configureData{HeartbeatIntervalMs: h.heartbeatInterval.Milliseconds()})
	h.send(c, frame{Type: FrameConfigure, Data: data})
}

// readLoop is the client's single-threaded reader: frames are processed in
// arrival order until the socket errors or closes.
func (h *Hub) readLoop(c *client) {
	defer h.removeClient(c)
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		h.dispatch(c, raw)
	}
}

func (h *Hub) removeClient(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
}

func (h *Hub) dispatch(c *client, raw []byte) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		h.log.Infow("dropping malformed frame", "err", err)
		return
	}

	switch f.Type {
	case FrameLog:
		h.handleLog(f.Data)
	case FrameNetworkEntry:
		h.handleNetworkEntry(f.Data)
	case FrameTabOpened, FrameTabUpdated:
		h.handleTabUpsert(f.Data)
	case FrameTabClosed:
		h.handleTabClosed(f.Data)
	case FrameHeartbeat:
		c.markAlive()
	case FrameInjectMarker:
		h.handleInjectMarker(f.Data)
	case FrameExecuteJSResponse, FramePageInfoResponse, FrameQueryDOMResponse, FrameDOMSnapshotResponse:
		h.handleResponse(f.Data)
	default:
		h.log.Infow("dropping frame with unknown type", "type", f.Type)
	}
}

func (h *Hub) handleLog(data json.RawMessage) {
	var entry model.LogEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		h.log.Infow("dropping malformed log frame", "err", err)
		return
	}
	h.tabs.EnsureMinimal(entry.TabID, entry.SessionID)
	h.logStore.Add(entry)
}

func (h *Hub) handleNetworkEntry(data json.RawMessage) {
	var entry model.NetEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		h.log.Infow("dropping malformed network_entry frame", "err", err)
		return
	}
	h.tabs.EnsureMinimal(entry.TabID, entry.SessionID)
	h.netStore.Add(entry)
}

func (h *Hub) handleTabUpsert(data json.RawMessage) {
	var info model.TabInfo
	if err := json.Unmarshal(data, &info); err != nil {
		h.log.Infow("dropping malformed tab frame", "err", err)
		return
	}
	h.tabs.Upsert(info)
}

func (h *Hub) handleTabClosed(data json.RawMessage) {
	var d tabClosedData
	if err := json.Unmarshal(data, &d); err != nil {
		h.log.Infow("dropping malformed tab_closed frame", "err", err)
		return
	}
	h.tabs.Remove(d.TabID)
}

func (h *Hub) handleInjectMarker(data json.RawMessage) {
	var d injectMarkerData
	if err := json.Unmarshal(data, &d); err != nil {
		h.log.Infow("dropping malformed inject_marker frame", "err", err)
		return
	}
	msg := d.Message
	if msg == "" {
		msg = markerMessage
	}
	h.logStore.Add(model.LogEntry{
		ID:        uuid.NewString(),
		Timestamp: h.now().UnixMilli(),
		Level:     model.LevelInfo,
		Message:   msg,
		TabID:     d.TabID,
		URL:       d.URL,
		SessionID: d.SessionID,
	})
}

func (h *Hub) handleResponse(data json.RawMessage) {
	var env responseEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		h.log.Infow("dropping malformed response frame", "err", err)
		return
	}
	if env.RequestID == "" {
		h.log.Infow("dropping response frame with no requestId")
		return
	}
	if h.resolve == nil {
		return
	}
	h.resolve(env.RequestID, data, env.Error)
}

// Broadcast sends f to every connected client; a client whose send buffer
// is full is treated as unresponsive and disconnected.
func (h *Hub) Broadcast(f frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}

	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if !c.enqueue(data) {
			h.log.Warnw("client too slow, disconnecting")
			h.removeClient(c)
		}
	}
	return nil
}

func (h *Hub) send(c *client, f frame) {
	data, err := json.Marshal(f)
	if err != nil {
		h.log.Errorw("marshal frame failed", "err", err)
		return
	}
	if !c.enqueue(data) {
		h.removeClient(c)
	}
}

// SendCommand implements correlator.Broadcast: it wraps payload with the
// request id and broadcasts it as a kind-typed outbound frame.
func (h *Hub) SendCommand(kind model.CommandKind, requestID string, payload interface{}) error {
	data, err := mergeRequestID(payload, requestID)
	if err != nil {
		return err
	}
	return h.Broadcast(frame{Type: FrameType(kind), Data: data})
}

func mergeRequestID(payload interface{}, requestID string) (json.RawMessage, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	m := map[string]interface{}{}
	if len(b) > 0 && string(b) != "null" {
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, err
		}
	}
	m["requestId"] = requestID
	return json.Marshal(m)
}

// sweepHeartbeats terminates clients that missed the previous sweep and
// pings survivors, per §4.4's liveness protocol.
func (h *Hub) sweepHeartbeats() {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	pingData, _ := json.Marshal(frame{Type: FramePing})

	for _, c := range clients {
		if !c.alive.Load() {
			h.removeClient(c)
			continue
		}
		c.alive.Store(false)
		_ = c.conn.WriteControl(websocket.PingMessage, nil, h.now().Add(5*time.Second))
		c.enqueue(pingData)
	}
}

// ClientCount returns the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close terminates the heartbeat sweep and every connected client. The
// correlator's own Shutdown, which rejects pending commands, is driven
// separately by the caller (main wires Close and correlator.Shutdown
// together on process shutdown).
func (h *Hub) Close() {
	h.stopOnce.Do(func() { close(h.stopCh) })

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.close()
		delete(h.clients, c)
	}
}
