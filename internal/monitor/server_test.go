package monitor

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"stageq/internal/metrics"
	"stageq/internal/runner"
)

func startServer(t *testing.T, snap SnapshotFunc) (addr string, stop func() error) {
	t.Helper()
	m := metrics.New()
	m.SetActiveVUs(3)
	s := New("", snap, m, zaptest.NewLogger(t))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx, ln, 20*time.Millisecond) }()

	return ln.Addr().String(), func() error {
		cancel()
		select {
		case err := <-errCh:
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("monitor did not shut down")
			return nil
		}
	}
}

func fixedSnapshot() runner.StatsSnapshot {
	return runner.StatsSnapshot{
		State:      runner.StateHolding,
		Stage:      1,
		TargetVUs:  10,
		ActiveVUs:  10,
		Iterations: 42,
	}
}

func TestSummaryEndpoint(t *testing.T) {
	addr, stop := startServer(t, fixedSnapshot)

	resp, err := http.Get("http://" + addr + "/summary")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var got map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "holding", got["state"])
	assert.EqualValues(t, 42, got["iterations"])
	assert.EqualValues(t, 10, got["target_vus"])

	require.NoError(t, stop())
}

func TestMetricsEndpoint(t *testing.T) {
	addr, stop := startServer(t, fixedSnapshot)

	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "stageq_active_vus 3")

	resp, err = http.Post("http://"+addr+"/metrics", "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	require.NoError(t, stop())
}

func TestLiveFeed(t *testing.T) {
	addr, stop := startServer(t, fixedSnapshot)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/live", nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var snap runner.StatsSnapshot
	require.NoError(t, json.Unmarshal(msg, &snap))
	assert.Equal(t, uint64(42), snap.Iterations)
	assert.Equal(t, 1, snap.Stage)

	require.NoError(t, stop())

	// the feed closes once the monitor stops
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
