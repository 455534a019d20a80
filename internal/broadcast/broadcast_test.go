// internal/broadcast/broadcast_test.go
package broadcast

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingGateway struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingGateway) Publish(channel string, msg Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, channel+":"+msg.Instruction.String())
}

func TestMessageEncodesLowerCase(t *testing.T) {
	data, err := Message{Instruction: UpdateLobbyList, Message: "[]"}.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"instruction":"update_lobby_list","message":"[]"}`, string(data))

	var decoded Message
	require.NoError(t, json.Unmarshal([]byte(`{"instruction":"STOP","message":"Time is up!"}`), &decoded))
	assert.Equal(t, Stop, decoded.Instruction)

	assert.Error(t, json.Unmarshal([]byte(`{"instruction":"explode"}`), &decoded))
	assert.Equal(t, "Instruction(42)", Instruction(42).String())
}

func TestChannels(t *testing.T) {
	assert.Equal(t, "lobbies/1234", LobbyChannel(1234))
	assert.Equal(t, "fusion.lobbies.1234", Subject("fusion", LobbyChannel(1234)))
	assert.Equal(t, "lobbies", Subject("", LobbyListChannel))
}

func TestMultiSkipsNil(t *testing.T) {
	a, b := &recordingGateway{}, &recordingGateway{}
	Multi{a, nil, b}.Publish("lobbies/1", Message{Instruction: Kick})

	assert.Equal(t, []string{"lobbies/1:KICK"}, a.sent)
	assert.Equal(t, []string{"lobbies/1:KICK"}, b.sent)
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	logger, hook := test.NewNullLogger()
	h := NewHub(logger)
	h.Buffer = 1

	s := h.Subscribe("lobbies/1", "test")
	h.Publish("lobbies/1", Message{Instruction: Start, Message: "60"})
	h.Publish("lobbies/1", Message{Instruction: Stop})

	assert.Len(t, s.OutChan, 1)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "subscriber buffer full, dropped message", hook.LastEntry().Message)

	h.Unsubscribe(s)
	h.Unsubscribe(s)
	assert.Equal(t, 0, h.Subscribers("lobbies/1"))
}

func TestHubServeDeliversToWebSocket(t *testing.T) {
	logger, _ := test.NewNullLogger()
	h := NewHub(logger)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		h.Serve(r.Context(), c, LobbyChannel(4321), r.RemoteAddr)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer c.CloseNow()

	require.Eventually(t, func() bool { return h.Subscribers(LobbyChannel(4321)) == 1 }, 2*time.Second, 10*time.Millisecond)

	h.Publish(LobbyChannel(4321), Message{Instruction: Stop, Message: "Time is up!"})
	h.Publish(LobbyChannel(9999), Message{Instruction: Kick})

	_, data, err := c.Read(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"instruction":"stop","message":"Time is up!"}`, string(data))

	c.Close(websocket.StatusNormalClosure, "")
	require.Eventually(t, func() bool { return h.Subscribers(LobbyChannel(4321)) == 0 }, 2*time.Second, 10*time.Millisecond)
}

// TestNATSPublish needs a running server; set NATS_URL to enable it.
func TestNATSPublish(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set")
	}
	logger, _ := test.NewNullLogger()

	gw, err := ConnectNATS(url, "fusiontest", logger)
	require.NoError(t, err)
	defer gw.Close()

	nc, err := nats.Connect(url)
	require.NoError(t, err)
	defer nc.Close()

	sub, err := nc.SubscribeSync("fusiontest.lobbies.*")
	require.NoError(t, err)
	require.NoError(t, nc.Flush())

	gw.Publish(LobbyChannel(1234), Message{Instruction: UpdateTimer, Message: "30"})

	msg, err := sub.NextMsg(3 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "fusiontest.lobbies.1234", msg.Subject)
	assert.JSONEq(t, `{"instruction":"update_timer","message":"30"}`, string(msg.Data))
}
