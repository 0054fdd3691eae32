package playback

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/reelfeed/reelfeed/internal/auth"
)

// SocketHandler drives one playback Session per connected device over a
// WebSocket. The connection's read loop is the single event stream mutating
// the session, mirroring the UI event loop the coordinator was designed for.
type SocketHandler struct {
	recorder *Recorder
	prefs    *PreferenceStore
	identity *auth.Identity
	upgrader websocket.Upgrader
}

func NewSocketHandler(recorder *Recorder, prefs *PreferenceStore, identity *auth.Identity) *SocketHandler {
	return &SocketHandler{
		recorder: recorder,
		prefs:    prefs,
		identity: identity,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type         string  `json:"type"`
	VideoID      string  `json:"videoId,omitempty"`
	NextVideoID  string  `json:"nextVideoId,omitempty"`
	ScrollOffset float64 `json:"scrollOffset,omitempty"`
	ViewCount    int64   `json:"viewCount,omitempty"`
	CurrentTime  float64 `json:"currentTime,omitempty"`
	Duration     float64 `json:"duration,omitempty"`
}

type outboundMessage struct {
	Type      string  `json:"type"`
	VideoID   string  `json:"videoId,omitempty"`
	Offset    float64 `json:"offset,omitempty"`
	ViewCount int64   `json:"viewCount,omitempty"`
	Message   string  `json:"message,omitempty"`

	Preferences *Preferences `json:"preferences,omitempty"`
}

// card is what the session knows about one registered video beyond its handle.
type card struct {
	nextID string
	offset float64
}

type conn struct {
	ws   *websocket.Conn
	out  chan outboundMessage
	once sync.Once
	done chan struct{}
}

// send never blocks: a full buffer means the device stopped draining frames,
// and the connection is dropped rather than wedging the session's caller.
func (c *conn) send(msg outboundMessage) {
	select {
	case c.out <- msg:
	case <-c.done:
	default:
		c.close()
	}
}

func (c *conn) close() {
	c.once.Do(func() { close(c.done) })
}

// wsHandle implements Handle by telling the device to pause a specific card.
type wsHandle struct {
	conn    *conn
	videoID string
}

func (h wsHandle) Pause() {
	h.conn.send(outboundMessage{Type: "pause", VideoID: h.videoID})
}

// wsScroll and wsNavigate carry auto-advance output back to the device.
type wsScroll struct{ conn *conn }

func (s wsScroll) SetScrollOffset(offset float64) {
	s.conn.send(outboundMessage{Type: "scroll", Offset: offset})
}

type wsNavigate struct{ conn *conn }

func (n wsNavigate) Navigate(videoID string) {
	n.conn.send(outboundMessage{Type: "navigate", VideoID: videoID})
}

// ServeHTTP upgrades the request and owns the session arena: everything
// created here is torn down when the connection closes.
func (h *SocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device")
	if deviceID == "" {
		deviceID = uuid.NewString()
	}
	viewerID := h.identity.ViewerIDFromToken(r.URL.Query().Get("token"))
	viewport := 1.0
	if v := r.URL.Query().Get("viewport"); v != "" {
		var parsed float64
		if err := json.Unmarshal([]byte(v), &parsed); err == nil && parsed > 0 {
			viewport = parsed
		}
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("playback: websocket upgrade failed", "error", err)
		return
	}

	c := &conn{ws: ws, out: make(chan outboundMessage, 64), done: make(chan struct{})}
	go writeLoop(c)

	prefs := h.prefs.Load(r.Context(), deviceID)
	c.send(outboundMessage{Type: "preferences", Preferences: &prefs})

	session := NewSession(viewerID, h.recorder.Bind(ViewMetaFromRequest(r)),
		WithNotifier(func(message string) {
			c.send(outboundMessage{Type: "error", Message: message})
		}),
		WithCountListener(func(videoID string, count int64) {
			c.send(outboundMessage{Type: "view_count", VideoID: videoID, ViewCount: count})
		}),
	)
	controller := NewController(AdvanceConfig{
		Threshold:      prefs.ScrollThreshold,
		ScrollDuration: time.Duration(prefs.ScrollSpeed) * time.Millisecond,
		Viewport:       viewport,
	}, wsScroll{conn: c}, wsNavigate{conn: c})

	h.readLoop(c, session, controller, prefs)

	controller.Stop()
	c.close()
	_ = ws.Close()
}

func (h *SocketHandler) readLoop(c *conn, session *Session, controller *Controller, prefs Preferences) {
	cards := make(map[string]card)
	for {
		var msg inboundMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "register":
			session.Register(msg.VideoID, wsHandle{conn: c, videoID: msg.VideoID})
			session.SeedViewCount(msg.VideoID, msg.ViewCount)
			cards[msg.VideoID] = card{nextID: msg.NextVideoID, offset: msg.ScrollOffset}

		case "unregister":
			session.Unregister(msg.VideoID)
			delete(cards, msg.VideoID)

		case "play":
			session.NotifyPlayStarted(msg.VideoID)
			info := cards[msg.VideoID]
			controller.Arm(wsHandle{conn: c, videoID: msg.VideoID}, info.nextID, info.offset, prefs.AutoScroll)

		case "scrolled":
			info := cards[msg.VideoID]
			info.offset = msg.ScrollOffset
			cards[msg.VideoID] = info
			if session.CurrentlyPlaying() == msg.VideoID {
				controller.UpdateOffset(msg.ScrollOffset)
			}

		case "timeupdate":
			if session.CurrentlyPlaying() == msg.VideoID {
				controller.HandleTimeUpdate(msg.CurrentTime, msg.Duration)
			}

		default:
			c.send(outboundMessage{Type: "error", Message: "unknown message type"})
		}
	}
}

func writeLoop(c *conn) {
	for {
		select {
		case msg := <-c.out:
			if err := c.ws.WriteJSON(msg); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}
