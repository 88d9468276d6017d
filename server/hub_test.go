package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"arenarelay/config"
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type testClient struct {
	t    *testing.T
	conn *websocket.Conn
	id   PlayerID
}

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	// 读写协程可能在测试结束后才退出，只保留错误级别
	logger := zaptest.NewLogger(t, zaptest.Level(zap.ErrorLevel))
	hub := NewHub(config.Default(), HubOptions{Logger: logger})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	srv := httptest.NewServer(NewRouter(hub, ""))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *testClient {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	c := &testClient{t: t, conn: conn}
	var welcome Welcome
	c.decode(c.next(), EventWelcome, &welcome)
	require.NotEmpty(t, welcome.ID)
	c.id = welcome.ID
	return c
}

func (c *testClient) send(event string, data any) {
	c.t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteJSON(Envelope{Event: event, Data: raw}))
}

func (c *testClient) next() frame {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var f frame
	require.NoError(c.t, c.conn.ReadJSON(&f))
	return f
}

// until 跳过其他事件，直到收到 event
func (c *testClient) until(event string) frame {
	c.t.Helper()
	for {
		f := c.next()
		if f.Event == event {
			return f
		}
	}
}

func (c *testClient) decode(f frame, event string, v any) {
	c.t.Helper()
	require.Equal(c.t, event, f.Event)
	require.NoError(c.t, json.Unmarshal(f.Data, v))
}

// join 读取认证结果以及紧随其后的全量列表
func (c *testClient) join(name string) (bool, PublicView) {
	c.t.Helper()
	c.send(EventJoin, map[string]any{"name": name})
	var granted bool
	c.decode(c.until(EventAuthResult), EventAuthResult, &granted)
	var view PublicView
	c.decode(c.next(), EventPlayerList, &view)
	return granted, view
}

func (c *testClient) mustJoin(name string, admin bool) {
	c.t.Helper()
	granted, _ := c.join(name)
	require.Equal(c.t, admin, granted)
}

func TestHubJoinPublishesPublicView(t *testing.T) {
	_, srv := startHub(t)
	a := dial(t, srv)
	b := dial(t, srv)
	b.mustJoin("Bob", false)

	a.send(EventJoin, map[string]any{"name": "!!!Zed"})
	var granted bool
	a.decode(a.until(EventAuthResult), EventAuthResult, &granted)
	assert.True(t, granted)

	// B 收到的列表里看不到 A 的权限
	f := b.until(EventPlayerList)
	assert.NotContains(t, string(f.Data), "isAdmin")
	assert.NotContains(t, string(f.Data), "IsAdmin")
	assert.NotContains(t, string(f.Data), "!!!")

	var view PublicView
	b.decode(f, EventPlayerList, &view)
	require.Contains(t, view, a.id)
	assert.Equal(t, "Zed", view[a.id].Name)
}

func TestHubMoveSkipsSender(t *testing.T) {
	_, srv := startHub(t)
	a := dial(t, srv)
	b := dial(t, srv)
	a.mustJoin("Alice", false)
	b.mustJoin("Bob", false)
	a.until(EventPlayerList) // Bob 加入后的全量广播

	a.send(EventMove, map[string]any{"x": 10, "y": 20, "angle": 1})

	var moved PlayerMoved
	b.decode(b.until(EventPlayerMoved), EventPlayerMoved, &moved)
	assert.Equal(t, PlayerMoved{ID: a.id, X: 10, Y: 20, Angle: 1}, moved)

	// A 的下一帧是 B 重新加入触发的列表，而不是自己的移动
	b.send(EventJoin, map[string]any{"name": "Bob"})
	assert.Equal(t, EventPlayerList, a.next().Event)
}

func TestHubKickTerminatesTarget(t *testing.T) {
	hub, srv := startHub(t)
	a := dial(t, srv)
	b := dial(t, srv)
	a.mustJoin("!!!Zed", true)
	b.mustJoin("Bob", false)
	a.until(EventPlayerList)

	a.send(EventCommand, map[string]any{"type": "kick", "targetId": string(b.id)})

	var effect Effect
	b.decode(b.until(EventEffect), EventEffect, &effect)
	assert.Equal(t, CmdKick, effect.Type)

	// 踢出后连接被服务端关闭
	require.NoError(t, b.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, _, err := b.conn.ReadMessage()
		if err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
			break
		}
	}

	var view PublicView
	a.decode(a.until(EventPlayerList), EventPlayerList, &view)
	assert.NotContains(t, view, b.id)
	assert.Contains(t, view, a.id)

	snap := hub.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap["kicks"])
}

func TestHubNonAdminCommandIsIgnored(t *testing.T) {
	_, srv := startHub(t)
	a := dial(t, srv)
	b := dial(t, srv)
	a.mustJoin("Alice", false)
	b.mustJoin("Bob", false)
	a.until(EventPlayerList)

	a.send(EventCommand, map[string]any{"type": "freeze", "targetId": string(b.id)})
	a.send(EventCommand, map[string]any{"type": "announce", "payload": "hi"})
	// 作为屏障：B 下一条收到的应当是 A 的移动，而不是效果或公告
	a.send(EventMove, map[string]any{"x": 1})

	assert.Equal(t, EventPlayerMoved, b.next().Event)
}

func TestHubDisconnectRebroadcasts(t *testing.T) {
	_, srv := startHub(t)
	a := dial(t, srv)
	b := dial(t, srv)
	a.mustJoin("Alice", false)
	b.mustJoin("Bob", false)
	a.until(EventPlayerList)

	require.NoError(t, b.conn.Close())

	var view PublicView
	a.decode(a.until(EventPlayerList), EventPlayerList, &view)
	assert.NotContains(t, view, b.id)
}

func TestHubIgnoresMalformedFrames(t *testing.T) {
	hub, srv := startHub(t)
	a := dial(t, srv)

	require.NoError(t, a.conn.WriteMessage(websocket.TextMessage, []byte("garbage")))
	a.send("dance", map[string]any{})
	a.mustJoin("Alice", false)

	assert.Equal(t, int64(2), hub.Metrics().Snapshot()["malformed_inputs"])
}

func TestHTTPEndpoints(t *testing.T) {
	_, srv := startHub(t)
	a := dial(t, srv)
	a.mustJoin("Alice", false)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	resp, err = http.Get(srv.URL + "/players")
	require.NoError(t, err)
	var view PublicView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	_ = resp.Body.Close()
	assert.Equal(t, "Alice", view[a.id].Name)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	var payload struct {
		Metrics map[string]int64 `json:"metrics"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	_ = resp.Body.Close()
	assert.Equal(t, int64(1), payload.Metrics["connections"])
	assert.Equal(t, int64(1), payload.Metrics["joins"])
}

func TestHubDoAfterStop(t *testing.T) {
	hub := NewHub(config.Default(), HubOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	hub.Run(ctx)

	err := hub.Do(context.Background(), func() {})
	assert.ErrorIs(t, err, ErrHubStopped)
}
