package status

import (
	"bytes"
	"image"
	"image/png"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	xdraw "golang.org/x/image/draw"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  512,
	WriteBufferSize: 4096,
}

type client struct {
	notify chan struct{}
	done   chan struct{}
	once   sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// wake flags a new frame; pending notifications coalesce
func (c *client) wake() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// Hub keeps the last committed frame and streams it to websocket clients as
// PNG. Frames are encoded lazily, on the goroutine that asks for them.
type Hub struct {
	scale  int
	logger *slog.Logger

	mu      sync.Mutex
	frame   *image.RGBA
	seq     uint64
	encoded []byte
	clients map[*client]struct{}
}

// NewHub creates a preview hub. Frames are enlarged scale times so single
// pixels stay visible in a browser.
func NewHub(scale int, logger *slog.Logger) *Hub {
	if scale < 1 {
		scale = 1
	}
	return &Hub{
		scale:   scale,
		logger:  logger.With("component", "preview"),
		clients: make(map[*client]struct{}),
	}
}

// Publish records a committed frame and wakes every client. The hub takes
// ownership of frame.
func (h *Hub) Publish(frame *image.RGBA) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frame = frame
	h.seq++
	h.encoded = nil
	for c := range h.clients {
		c.wake()
	}
}

// Latest returns the last frame as PNG, or nil before the first frame
func (h *Hub) Latest() []byte {
	h.mu.Lock()
	frame, seq, data := h.frame, h.seq, h.encoded
	h.mu.Unlock()
	if data != nil || frame == nil {
		return data
	}

	data, err := h.encode(frame)
	if err != nil {
		h.logger.Error("failed to encode frame", "error", err)
		return nil
	}

	h.mu.Lock()
	if h.seq == seq {
		h.encoded = data
	}
	h.mu.Unlock()
	return data
}

func (h *Hub) encode(frame *image.RGBA) ([]byte, error) {
	var img image.Image = frame
	if h.scale > 1 {
		b := frame.Bounds()
		big := image.NewRGBA(image.Rect(0, 0, b.Dx()*h.scale, b.Dy()*h.scale))
		xdraw.NearestNeighbor.Scale(big, big.Bounds(), frame, b, xdraw.Src, nil)
		img = big
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Clients returns the number of connected websocket clients
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.close()
		delete(h.clients, c)
	}
}

func (h *Hub) register() *client {
	c := &client{notify: make(chan struct{}, 1), done: make(chan struct{})}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	if h.frame != nil {
		c.wake()
	}
	return c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
	c.close()
}

// ServeWS upgrades the request and streams PNG frames until the client goes
// away
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := h.register()
	h.logger.Debug("preview client connected", "remote", r.RemoteAddr)
	go h.writePump(conn, c)
	h.readPump(conn, c)
}

// readPump discards client messages and keeps the read deadline fresh
func (h *Hub) readPump(conn *websocket.Conn, c *client) {
	defer func() {
		h.unregister(c)
		conn.Close()
	}()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("preview client error", "error", err)
			}
			return
		}
	}
}

// writePump sends frames and pings until the client is closed
func (h *Hub) writePump(conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-c.done:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case <-c.notify:
			frame := h.Latest()
			if frame == nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
