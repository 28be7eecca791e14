package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ayusman/holovis/internal/gesture"
	"github.com/ayusman/holovis/internal/input"
	"github.com/ayusman/holovis/internal/interaction"
	"github.com/ayusman/holovis/internal/metrics"
	"github.com/ayusman/holovis/internal/scene"
)

// Client message types.
const (
	MsgSourceDetected = "source_detected"
	MsgSourceLost     = "source_lost"
	MsgInputDown      = "input_down"
	MsgInputUp        = "input_up"
	MsgGaze           = "gaze"
	MsgKeyword        = "keyword"
)

// Server message types.
const (
	MsgGesture = "gesture"
	MsgPose    = "pose"
	MsgActive  = "active"
	MsgError   = "error"
)

const (
	sendBuffer = 64
	writeWait  = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// inMessage is any client message. Fields not used by the type are ignored.
type inMessage struct {
	Type    string                   `json:"type"`
	Source  string                   `json:"source,omitempty"`
	Kind    input.SourceKind         `json:"kind,omitempty"`
	Keyword interaction.Keyword      `json:"keyword,omitempty"`
	Target  interaction.Interactable `json:"target,omitempty"`
	// A gaze message without a position clears the gaze.
	Position *scene.Vec3 `json:"position,omitempty"`
	Normal   scene.Vec3  `json:"normal"`
	Surface  bool        `json:"surface,omitempty"`
}

type gestureMessage struct {
	Type   string       `json:"type"`
	Kind   gesture.Kind `json:"kind"`
	Code   uint8        `json:"code"`
	Source string       `json:"source,omitempty"`
}

type poseMessage struct {
	Type     string         `json:"type"`
	Object   scene.ObjectID `json:"object"`
	Position scene.Vec3     `json:"position"`
	Up       scene.Vec3     `json:"up"`
}

type activeMessage struct {
	Type   string         `json:"type"`
	Object scene.ObjectID `json:"object"`
	Active bool           `json:"active"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// HubConfig configures an InputHub.
type HubConfig struct {
	Sink     input.Sink
	Gaze     *scene.Gaze
	Keywords *interaction.KeywordState
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

type client struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	sources map[string]*input.Source
}

// InputHub is the WebSocket input transport. Each connection names its own
// sources; when it closes, every source it detected is lost. Classified
// gestures and scene changes are broadcast to every connection.
type InputHub struct {
	cfg     HubConfig
	log     *zap.Logger
	clients map[*client]struct{}
	mu      sync.RWMutex
}

// NewInputHub creates an InputHub. Sink is required.
func NewInputHub(cfg HubConfig) *InputHub {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &InputHub{
		cfg:     cfg,
		log:     cfg.Logger,
		clients: make(map[*client]struct{}),
	}
}

// Clients returns the number of open connections.
func (h *InputHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *InputHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade error", zap.Error(err))
		return
	}

	c := &client{
		id:      uuid.New().String(),
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		sources: make(map[string]*input.Source),
	}
	h.register(c)
	log := h.log.With(zap.String("client", c.id))
	log.Info("input client connected", zap.String("remote", r.RemoteAddr))

	done := make(chan struct{})
	go h.writePump(c, done)

	defer func() {
		h.unregister(c)
		close(done)
		conn.Close()
		for _, src := range c.sources {
			h.cfg.Sink.Submit(input.Event{Type: input.EventLost, Source: src, Time: time.Now()})
		}
		log.Info("input client disconnected", zap.Int("sources_lost", len(c.sources)))
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("websocket read error", zap.Error(err))
			}
			return
		}

		var msg inMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.reply(c, "invalid message")
			h.count("in", "invalid")
			continue
		}
		h.count("in", inLabel(msg.Type))
		if errText := h.handle(c, msg); errText != "" {
			h.reply(c, errText)
		}
	}
}

// handle applies one client message and returns an error text for the
// client, if any.
func (h *InputHub) handle(c *client, msg inMessage) string {
	now := time.Now()

	switch msg.Type {
	case MsgSourceDetected:
		if msg.Source == "" {
			return "source is required"
		}
		if _, ok := c.sources[msg.Source]; ok {
			return "source already detected: " + msg.Source
		}
		kind := msg.Kind
		if kind == "" {
			kind = input.SourceController
		}
		src := input.NewSource(msg.Source, kind)
		c.sources[msg.Source] = src
		h.cfg.Sink.Submit(input.Event{Type: input.EventDetected, Source: src, Time: now})

	case MsgSourceLost:
		src, ok := c.sources[msg.Source]
		if !ok {
			return "unknown source: " + msg.Source
		}
		delete(c.sources, msg.Source)
		h.cfg.Sink.Submit(input.Event{Type: input.EventLost, Source: src, Time: now})

	case MsgInputDown, MsgInputUp:
		typ := input.EventDown
		if msg.Type == MsgInputUp {
			typ = input.EventUp
		}
		src, ok := c.sources[msg.Source]
		if !ok {
			// The pipeline refuses and counts presses from untracked sources.
			src = input.NewSource(msg.Source, input.SourceController)
		}
		h.cfg.Sink.Submit(input.Event{Type: typ, Source: src, Time: now})

	case MsgGaze:
		if h.cfg.Gaze == nil {
			return "gaze is not supported"
		}
		if msg.Position == nil {
			h.cfg.Gaze.Clear()
			return ""
		}
		h.cfg.Gaze.Update(scene.Hit{
			Position: *msg.Position,
			Normal:   msg.Normal,
			Target:   msg.Target,
			Surface:  msg.Surface,
		})

	case MsgKeyword:
		if h.cfg.Keywords == nil {
			return "keywords are not supported"
		}
		h.cfg.Keywords.Set(msg.Keyword)

	default:
		return "unknown message type: " + msg.Type
	}
	return ""
}

// OnGesture broadcasts a classified gesture. It matches gesture.Handler.
func (h *InputHub) OnGesture(ev gesture.Event) {
	msg := gestureMessage{Type: MsgGesture, Kind: ev.Kind, Code: uint8(ev.Code)}
	if ev.Source != nil {
		msg.Source = ev.Source.ID
	}
	h.Broadcast(MsgGesture, msg)
}

// OnSceneChange broadcasts a scene mutation as pose and active messages.
func (h *InputHub) OnSceneChange(c scene.Change) {
	if c.Pose != nil {
		h.Broadcast(MsgPose, poseMessage{Type: MsgPose, Object: c.Object, Position: c.Pose.Position, Up: c.Pose.Up})
	}
	if c.Active != nil {
		h.Broadcast(MsgActive, activeMessage{Type: MsgActive, Object: c.Object, Active: *c.Active})
	}
}

// Broadcast sends v to every client. Clients whose send buffer is full miss
// the message.
func (h *InputHub) Broadcast(typ string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Error("failed to encode message", zap.String("type", typ), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
			h.count("out", typ)
		default:
			h.log.Debug("client send buffer full", zap.String("client", c.id), zap.String("type", typ))
		}
	}
}

func (h *InputHub) reply(c *client, text string) {
	data, _ := json.Marshal(errorMessage{Type: MsgError, Error: text})
	select {
	case c.send <- data:
		h.count("out", MsgError)
	default:
	}
}

func (h *InputHub) writePump(c *client, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.log.Debug("websocket write error", zap.String("client", c.id), zap.Error(err))
				c.conn.Close()
				return
			}
		}
	}
}

func (h *InputHub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	if h.cfg.Metrics != nil {
		h.cfg.Metrics.WSConnections.Inc()
	}
}

func (h *InputHub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	if h.cfg.Metrics != nil {
		h.cfg.Metrics.WSConnections.Dec()
	}
}

// inLabel bounds the metric label values clients can produce.
func inLabel(typ string) string {
	switch typ {
	case MsgSourceDetected, MsgSourceLost, MsgInputDown, MsgInputUp, MsgGaze, MsgKeyword:
		return typ
	default:
		return "unknown"
	}
}

func (h *InputHub) count(direction, typ string) {
	if h.cfg.Metrics != nil {
		h.cfg.Metrics.WSMessages.WithLabelValues(direction, typ).Inc()
	}
}
