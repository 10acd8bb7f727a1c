package main

import (
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/weightfusion/internal/backend/cpu"
	"github.com/born-ml/weightfusion/internal/trainer"
	"github.com/born-ml/weightfusion/internal/visualizer"
)

func newTestServer(t *testing.T) (*server, *httptest.Server) {
	t.Helper()
	cfg := trainer.DefaultConfig()
	cfg.Epochs = 2
	cfg.YieldDelay = 0
	cfg.Seed = 7

	ctl := trainer.NewController(cpu.New(), cfg)
	t.Cleanup(ctl.Close)

	s := &server{
		ctx:      context.Background(),
		ctl:      ctl,
		renderer: visualizer.NewRenderer(),
		width:    96,
		height:   64,
	}
	ts := httptest.NewServer(s.routes())
	t.Cleanup(ts.Close)
	return s, ts
}

func TestServe_FrameBeforeSession(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/frame/merged.png")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 96, img.Bounds().Dx())
	assert.Equal(t, 64, img.Bounds().Dy())
}

func TestServe_UnknownFrame(t *testing.T) {
	_, ts := newTestServer(t)

	for _, path := range []string{"/frame/division.png", "/frame/add.jpg"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
}

func TestServe_Start(t *testing.T) {
	s, ts := newTestServer(t)
	events, unsubscribe := s.ctl.Subscribe()
	defer unsubscribe()

	resp, err := http.Post(ts.URL+"/start", "application/json", nil)
	require.NoError(t, err)
	var body map[string]bool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.True(t, body["started"])

	timeout := time.After(30 * time.Second)
	for done := false; !done; {
		select {
		case ev := <-events:
			done = ev.Done
		case <-timeout:
			t.Fatal("session did not finish")
		}
	}
	assert.Len(t, s.ctl.Histories()[trainer.RoleAdd], 2)

	resp, err = http.Get(ts.URL + "/frame/add.png")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Empty(t, resp.Header.Get("X-Render-Fault"))
}

func TestEventMessage(t *testing.T) {
	msg := eventMessage(trainer.Event{
		Epoch: 3,
		Add:   trainer.EpochStat{Epoch: 3, Loss: 1, Accuracy: 0.5},
	})
	assert.Equal(t, "epoch", msg.Type)
	assert.Equal(t, 3, msg.Stats["add"].Epoch)
	assert.Contains(t, msg.Stats, "merged")

	msg = eventMessage(trainer.Event{Epoch: 2, Done: true, Err: errors.New("boom")})
	assert.Equal(t, "done", msg.Type)
	assert.Equal(t, "boom", msg.Error)

	data, err := json.Marshal(historyMessage(map[trainer.Role][]trainer.EpochStat{trainer.RoleMult: nil}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"history","histories":{"mult":null}}`, string(data))
}
