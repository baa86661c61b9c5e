package status

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/fkcurrie/led-matrix-display/internal/display"
	"github.com/fkcurrie/led-matrix-display/internal/logging"
	"github.com/fkcurrie/led-matrix-display/internal/metrics"
	"github.com/fkcurrie/led-matrix-display/internal/mode"
	"github.com/fkcurrie/led-matrix-display/internal/transport"
	"github.com/fkcurrie/led-matrix-display/internal/types"
)

var testNow = time.Date(2024, 6, 3, 10, 7, 55, 0, time.UTC)

type fakeEngine struct{ st mode.Status }

func (f fakeEngine) Status() mode.Status { return f.st }

type fakeStream struct{ h transport.Health }

func (f fakeStream) Health() transport.Health { return f.h }

type fakeWeather struct {
	snap  types.Snapshot
	ok    bool
	fresh bool
}

func (f fakeWeather) Latest() (types.Snapshot, bool) { return f.snap, f.ok }

func (f fakeWeather) Fresh(time.Time) (types.Snapshot, bool) { return f.snap, f.fresh }

type fakeDisplay struct{ s display.Scheme }

func (f fakeDisplay) Scheme() display.Scheme { return f.s }

func newTestServer(t *testing.T, src Sources) (*Server, *Hub, *bytes.Buffer) {
	t.Helper()
	if src.Engine == nil {
		src.Engine = fakeEngine{}
	}
	if src.Stream == nil {
		src.Stream = fakeStream{}
	}
	if src.Display == nil {
		src.Display = fakeDisplay{}
	}
	hub := NewHub(2, logging.Discard())
	var access bytes.Buffer
	s := NewServer(types.StatusConfig{Listen: "127.0.0.1:0"}, src, hub, metrics.New(),
		clockwork.NewFakeClockAt(testNow), logging.Discard(), &access)
	return s, hub, &access
}

func TestHealth(t *testing.T) {
	s, _, access := newTestServer(t, Sources{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("GET /health = %d %q", rec.Code, rec.Body.String())
	}
	if !strings.Contains(access.String(), `"GET /health HTTP/1.1" 200`) {
		t.Errorf("access log = %q", access.String())
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /health = %d", rec.Code)
	}
}

func TestStatus(t *testing.T) {
	last := types.Instruction{
		Kind:       types.KindPreset,
		Preset:     "BUSY",
		Source:     types.SourcePull,
		Sequence:   4,
		ReceivedAt: testNow.Add(-time.Minute),
	}
	src := Sources{
		Engine: fakeEngine{mode.Status{
			Mode:            "carousel",
			Intent:          types.Intent{Version: 7, Kind: types.IntentForecast, Panels: types.PanelsDaily, Panel: 2},
			Armed:           []string{"flip", "boundary"},
			NextDeadline:    testNow.Add(5 * time.Second),
			LastInstruction: &last,
			Received:        3,
		}},
		Stream:    fakeStream{transport.Health{PushConnected: false, PushDegraded: true, Queued: 1}},
		Weather:   fakeWeather{snap: types.Snapshot{FetchedAt: testNow.Add(-20 * time.Minute)}, ok: true, fresh: false},
		Display:   fakeDisplay{display.Scheme{Night: true, Brightness: 20}},
		Addresses: func() []string { return []string{"192.168.1.42"} },
	}
	s, _, _ := newTestServer(t, src)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var got statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Mode != "carousel" || got.Intent != "forecast" || got.Version != 7 {
		t.Errorf("mode = %q intent = %q version = %d", got.Mode, got.Intent, got.Version)
	}
	if got.Panel == nil || got.Panel.Set != "daily" || got.Panel.Index != 2 {
		t.Errorf("panel = %+v", got.Panel)
	}
	if len(got.Armed) != 2 || got.NextDeadline == nil || !got.NextDeadline.Equal(testNow.Add(5*time.Second)) {
		t.Errorf("timers = %v next = %v", got.Armed, got.NextDeadline)
	}
	if got.LastInstruction == nil || got.LastInstruction.Summary != "preset(BUSY)" || got.LastInstruction.Source != "pull" {
		t.Errorf("last instruction = %+v", got.LastInstruction)
	}
	if !got.Push.Degraded || got.Push.Connected || got.Push.Queued != 1 {
		t.Errorf("push = %+v", got.Push)
	}
	if !got.Weather.Available || got.Weather.Fresh || got.Weather.FetchedAt == nil {
		t.Errorf("weather = %+v", got.Weather)
	}
	if !got.Night || got.Brightness != 20 {
		t.Errorf("night = %v brightness = %d", got.Night, got.Brightness)
	}
	if len(got.Addresses) != 1 || got.Addresses[0] != "192.168.1.42" {
		t.Errorf("addresses = %v", got.Addresses)
	}
}

func TestStatusWithoutWeather(t *testing.T) {
	s, _, _ := newTestServer(t, Sources{Engine: fakeEngine{mode.Status{Mode: "off"}}})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	var got map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"panel", "next_deadline", "last_instruction", "addresses"} {
		if _, ok := got[key]; ok {
			t.Errorf("unexpected key %q", key)
		}
	}
	if armed, ok := got["armed_timers"].([]interface{}); !ok || len(armed) != 0 {
		t.Errorf("armed_timers = %v", got["armed_timers"])
	}
}

func TestMetrics(t *testing.T) {
	s, _, _ := newTestServer(t, Sources{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "matrixd_frames_committed_total") {
		t.Error("metrics output missing service counters")
	}
}

func testFrame(c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 64, 32))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func decodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("invalid PNG: %v", err)
	}
	return img
}

func TestPreviewPNG(t *testing.T) {
	s, hub, _ := newTestServer(t, Sources{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/preview.png", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("before first frame: %d", rec.Code)
	}

	hub.Publish(testFrame(color.RGBA{255, 0, 0, 255}))
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/preview.png", nil))
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("GET /preview.png = %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	img := decodePNG(t, rec.Body.Bytes())
	if b := img.Bounds(); b.Dx() != 128 || b.Dy() != 64 {
		t.Errorf("preview size = %v, want 128x64", b)
	}
	if r, g, b, _ := img.At(100, 50).RGBA(); r>>8 != 255 || g != 0 || b != 0 {
		t.Errorf("preview pixel = %d,%d,%d", r>>8, g, b)
	}
}

func TestPreviewWebsocket(t *testing.T) {
	s, hub, _ := newTestServer(t, Sources{})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	hub.Publish(testFrame(color.RGBA{0, 255, 0, 255}))

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/preview/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	read := func() image.Image {
		t.Helper()
		typ, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if typ != websocket.BinaryMessage {
			t.Fatalf("message type = %d", typ)
		}
		return decodePNG(t, data)
	}

	// The latest frame is sent on connect
	if _, g, _, _ := read().At(0, 0).RGBA(); g>>8 != 255 {
		t.Error("first frame is not the latest committed frame")
	}

	hub.Publish(testFrame(color.RGBA{0, 0, 255, 255}))
	if _, _, b, _ := read().At(0, 0).RGBA(); b>>8 != 255 {
		t.Error("second frame is not the published frame")
	}

	hub.Close()
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("read after hub close = %v, want going away", err)
	}
}

func TestClientWakeCoalesces(t *testing.T) {
	c := &client{notify: make(chan struct{}, 1), done: make(chan struct{})}
	c.wake()
	c.wake()
	<-c.notify
	select {
	case <-c.notify:
		t.Error("second wake was not coalesced")
	default:
	}
}

func TestHubEncodesOnDemand(t *testing.T) {
	hub := NewHub(2, logging.Discard())
	if hub.Latest() != nil {
		t.Fatal("Latest() before first frame should be nil")
	}

	hub.Publish(testFrame(color.RGBA{255, 0, 0, 255}))
	hub.mu.Lock()
	pending := hub.encoded
	hub.mu.Unlock()
	if pending != nil {
		t.Fatal("Publish() encoded the frame")
	}

	first := hub.Latest()
	if first == nil {
		t.Fatal("Latest() = nil after Publish()")
	}
	if again := hub.Latest(); !bytes.Equal(again, first) || &again[0] != &first[0] {
		t.Error("Latest() re-encoded an unchanged frame")
	}

	hub.Publish(testFrame(color.RGBA{0, 0, 255, 255}))
	if _, _, b, _ := decodePNG(t, hub.Latest()).At(0, 0).RGBA(); b>>8 != 255 {
		t.Error("Latest() did not follow the newest frame")
	}
}
