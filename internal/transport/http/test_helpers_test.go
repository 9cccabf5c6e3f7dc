package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/chatme/relay-server/internal/config"
	"github.com/chatme/relay-server/internal/core"
	"github.com/chatme/relay-server/internal/proto"
	"github.com/chatme/relay-server/internal/store/sqlite"
)

// outboundFrame mirrors proto.Outbound with raw data for assertions.
type outboundFrame struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func startTestServer(t *testing.T, ringTimeout time.Duration) (*httptest.Server, *core.Hub, *sqlite.SQLiteStore) {
	t.Helper()

	logger := zerolog.Nop()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("init store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	hub := core.NewHub(st, ringTimeout, &logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	server := NewServer(hub, st, config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
	}, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return ts, hub, st
}

func dialWS(t *testing.T, ctx context.Context, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func sendFrame(t *testing.T, ctx context.Context, conn *websocket.Conn, frameType string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal frame data: %v", err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: frameType, Data: payload}); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func readFrame(t *testing.T, ctx context.Context, conn *websocket.Conn) outboundFrame {
	t.Helper()

	var frame outboundFrame
	if err := wsjson.Read(ctx, conn, &frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return frame
}

// awaitFrame reads frames until one of the wanted type arrives, skipping
// interleaved presence traffic.
func awaitFrame(t *testing.T, ctx context.Context, conn *websocket.Conn, frameType string) outboundFrame {
	t.Helper()

	for i := 0; i < 16; i++ {
		frame := readFrame(t, ctx, conn)
		if frame.Type == frameType {
			return frame
		}
	}
	t.Fatalf("frame %q not received", frameType)
	return outboundFrame{}
}

func registerWS(t *testing.T, ctx context.Context, conn *websocket.Conn, username string) {
	t.Helper()

	sendFrame(t, ctx, conn, proto.InboundTypeRegister, proto.RegisterData{Username: username})
	frame := awaitFrame(t, ctx, conn, proto.OutboundTypeRegistered)

	var data proto.RegisteredData
	if err := json.Unmarshal(frame.Data, &data); err != nil || data.Username != username {
		t.Fatalf("unexpected registered frame: %s", frame.Data)
	}
}
