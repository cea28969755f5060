package gemini_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/talandis/cadenza/pkg/live"
	"github.com/talandis/cadenza/pkg/live/gemini"
)

// wsURL converts an httptest server HTTP URL to a WebSocket URL.
func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// startGeminiServer launches a test WebSocket server. The handler function
// receives the accepted *websocket.Conn. The server is automatically closed
// when the test finishes.
func startGeminiServer(t *testing.T, handler func(conn *websocket.Conn, r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")
		handler(conn, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// readJSON reads one WebSocket text frame and decodes it into v.
func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("readJSON: %v", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("readJSON unmarshal: %v", err)
	}
}

// writeJSON marshals v and sends it as a text frame.
func writeJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	data, _ := json.Marshal(v)
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Logf("writeJSON: %v (may be expected on close)", err)
	}
}

// sendSetupComplete sends the server-side setupComplete ack.
func sendSetupComplete(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	writeJSON(t, conn, map[string]any{"setupComplete": map[string]any{}})
}

func nextEvent(t *testing.T, c live.Conn) live.Event {
	t.Helper()
	select {
	case ev, ok := <-c.Events():
		if !ok {
			t.Fatal("events channel closed while waiting for event")
		}
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for event")
		panic("unreachable")
	}
}

func TestDialSendsSetup(t *testing.T) {
	t.Parallel()
	setupCh := make(chan map[string]any, 1)

	srv := startGeminiServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var msg map[string]any
		readJSON(t, conn, &msg)
		setupCh <- msg
		sendSetupComplete(t, conn)
		<-conn.CloseRead(context.Background()).Done()
	})

	d := gemini.New("test-api-key", gemini.WithBaseURL(wsURL(srv)))
	c, err := d.Dial(context.Background(), live.SessionConfig{
		Voice:        "Kore",
		Instructions: "Be concise.",
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	select {
	case msg := <-setupCh:
		setup := msg["setup"].(map[string]any)
		if got, want := setup["model"], "models/gemini-2.0-flash-live-001"; got != want {
			t.Errorf("model = %v; want %v", got, want)
		}
		gc := setup["generationConfig"].(map[string]any)
		mods := gc["responseModalities"].([]any)
		if len(mods) != 1 || mods[0] != "audio" {
			t.Errorf("responseModalities = %v; want [audio]", mods)
		}
		voice := gc["speechConfig"].(map[string]any)["voiceConfig"].(map[string]any)["prebuiltVoiceConfig"].(map[string]any)
		if voice["voiceName"] != "Kore" {
			t.Errorf("voiceName = %v; want Kore", voice["voiceName"])
		}
		si := setup["systemInstruction"].(map[string]any)["parts"].([]any)
		if si[0].(map[string]any)["text"] != "Be concise." {
			t.Errorf("systemInstruction = %v", si)
		}
		// Transcription of both directions is always requested.
		if _, ok := setup["inputAudioTranscription"]; !ok {
			t.Error("setup missing inputAudioTranscription")
		}
		if _, ok := setup["outputAudioTranscription"]; !ok {
			t.Error("setup missing outputAudioTranscription")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for setup message")
	}
}

func TestDialModelOverrides(t *testing.T) {
	t.Parallel()
	modelCh := make(chan string, 2)

	srv := startGeminiServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var msg struct {
			Setup struct {
				Model string `json:"model"`
			} `json:"setup"`
		}
		readJSON(t, conn, &msg)
		modelCh <- msg.Setup.Model
		sendSetupComplete(t, conn)
		<-conn.CloseRead(context.Background()).Done()
	})

	d := gemini.New("key", gemini.WithModel("custom-default"), gemini.WithBaseURL(wsURL(srv)))

	c, err := d.Dial(context.Background(), live.SessionConfig{})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if got, want := <-modelCh, "models/custom-default"; got != want {
		t.Errorf("default model = %q; want %q", got, want)
	}
	c.Close()

	c, err = d.Dial(context.Background(), live.SessionConfig{Model: "per-session"})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()
	if got, want := <-modelCh, "models/per-session"; got != want {
		t.Errorf("per-session model = %q; want %q", got, want)
	}
}

func TestSendAudioFraming(t *testing.T) {
	t.Parallel()
	frameCh := make(chan map[string]any, 1)

	srv := startGeminiServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var setup map[string]any
		readJSON(t, conn, &setup)
		sendSetupComplete(t, conn)

		var msg map[string]any
		readJSON(t, conn, &msg)
		frameCh <- msg
		<-conn.CloseRead(context.Background()).Done()
	})

	d := gemini.New("key", gemini.WithBaseURL(wsURL(srv)))
	c, err := d.Dial(context.Background(), live.SessionConfig{})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	pcmFrame := []byte{0x01, 0x02, 0x03, 0x04}
	if err := c.SendAudio(pcmFrame); err != nil {
		t.Fatalf("SendAudio: %v", err)
	}

	select {
	case msg := <-frameCh:
		chunks := msg["realtimeInput"].(map[string]any)["mediaChunks"].([]any)
		if len(chunks) != 1 {
			t.Fatalf("got %d media chunks, want 1", len(chunks))
		}
		chunk := chunks[0].(map[string]any)
		if got, want := chunk["mimeType"], "audio/pcm;rate=16000"; got != want {
			t.Errorf("mimeType = %v; want %v", got, want)
		}
		decoded, err := base64.StdEncoding.DecodeString(chunk["data"].(string))
		if err != nil {
			t.Fatalf("decoding chunk data: %v", err)
		}
		if string(decoded) != string(pcmFrame) {
			t.Errorf("frame data = %v; want %v", decoded, pcmFrame)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for media chunk")
	}
}

func TestInboundDemultiplexing(t *testing.T) {
	t.Parallel()
	audioPayload := base64.StdEncoding.EncodeToString([]byte{0x10, 0x20, 0x30, 0x40})

	srv := startGeminiServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var setup map[string]any
		readJSON(t, conn, &setup)
		sendSetupComplete(t, conn)

		writeJSON(t, conn, map[string]any{"serverContent": map[string]any{
			"inputTranscription": map[string]any{"text": "hello"},
		}})
		writeJSON(t, conn, map[string]any{"serverContent": map[string]any{
			"outputTranscription": map[string]any{"text": "hi there"},
			"modelTurn": map[string]any{"parts": []any{
				map[string]any{"inlineData": map[string]any{
					"mimeType": "audio/pcm;rate=24000",
					"data":     audioPayload,
				}},
			}},
		}})
		writeJSON(t, conn, map[string]any{"serverContent": map[string]any{
			"turnComplete": true,
		}})
		<-conn.CloseRead(context.Background()).Done()
	})

	d := gemini.New("key", gemini.WithBaseURL(wsURL(srv)))
	c, err := d.Dial(context.Background(), live.SessionConfig{})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	ev := nextEvent(t, c)
	if ev.Kind != live.KindInputDelta || ev.Text != "hello" {
		t.Errorf("event 1 = %+v; want input delta 'hello'", ev)
	}
	ev = nextEvent(t, c)
	if ev.Kind != live.KindOutputDelta || ev.Text != "hi there" {
		t.Errorf("event 2 = %+v; want output delta 'hi there'", ev)
	}
	ev = nextEvent(t, c)
	if ev.Kind != live.KindAudio || ev.Audio != audioPayload {
		t.Errorf("event 3 = %+v; want audio payload", ev)
	}
	ev = nextEvent(t, c)
	if ev.Kind != live.KindTurnComplete {
		t.Errorf("event 4 = %+v; want turn complete", ev)
	}
}

func TestServerErrorBecomesErrorEvent(t *testing.T) {
	t.Parallel()
	srv := startGeminiServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var setup map[string]any
		readJSON(t, conn, &setup)
		writeJSON(t, conn, map[string]any{"error": map[string]any{
			"code":    429,
			"message": "quota exceeded",
		}})
		<-conn.CloseRead(context.Background()).Done()
	})

	d := gemini.New("key", gemini.WithBaseURL(wsURL(srv)))
	c, err := d.Dial(context.Background(), live.SessionConfig{})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	ev := nextEvent(t, c)
	if ev.Kind != live.KindError {
		t.Fatalf("event = %+v; want error event", ev)
	}
	if ev.Err == nil || !strings.Contains(ev.Err.Error(), "quota exceeded") {
		t.Errorf("err = %v; want quota message", ev.Err)
	}
}

func TestServerCloseClosesEvents(t *testing.T) {
	t.Parallel()
	srv := startGeminiServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var setup map[string]any
		readJSON(t, conn, &setup)
		sendSetupComplete(t, conn)
		conn.Close(websocket.StatusNormalClosure, "bye")
	})

	d := gemini.New("key", gemini.WithBaseURL(wsURL(srv)))
	c, err := d.Dial(context.Background(), live.SessionConfig{})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	deadline := time.After(3 * time.Second)
	for {
		select {
		case _, ok := <-c.Events():
			if !ok {
				return // channel closed as expected
			}
		case <-deadline:
			t.Fatal("events channel never closed after server close")
		}
	}
}

func TestCloseIdempotent(t *testing.T) {
	t.Parallel()
	srv := startGeminiServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var setup map[string]any
		readJSON(t, conn, &setup)
		sendSetupComplete(t, conn)
		<-conn.CloseRead(context.Background()).Done()
	})

	d := gemini.New("key", gemini.WithBaseURL(wsURL(srv)))
	c, err := d.Dial(context.Background(), live.SessionConfig{})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := c.SendAudio([]byte{1, 2}); err == nil {
		t.Error("SendAudio after Close succeeded, want error")
	}
}

func TestDialFailure(t *testing.T) {
	t.Parallel()
	d := gemini.New("key", gemini.WithBaseURL("ws://127.0.0.1:1"))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := d.Dial(ctx, live.SessionConfig{}); err == nil {
		t.Error("Dial to dead endpoint succeeded, want error")
	}
}
