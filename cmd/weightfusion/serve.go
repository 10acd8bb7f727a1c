package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"image/png"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"golang.org/x/net/websocket"

	"github.com/born-ml/weightfusion/internal/backend/cpu"
	"github.com/born-ml/weightfusion/internal/network"
	"github.com/born-ml/weightfusion/internal/trainer"
	"github.com/born-ml/weightfusion/internal/visualizer"
)

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", ":8080", "Listen address")
	epochs := fs.Int("epochs", 50, "Number of training epochs per session")
	width := fs.Int("width", 480, "Diagram width in pixels")
	height := fs.Int("height", 320, "Diagram height in pixels")
	_ = fs.Parse(args)

	cfg := trainer.DefaultConfig()
	cfg.Epochs = *epochs

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ctl := trainer.NewController(cpu.New(), cfg)
	defer ctl.Close()

	s := &server{
		ctx:      ctx,
		ctl:      ctl,
		renderer: visualizer.NewRenderer(),
		width:    *width,
		height:   *height,
	}
	srv := &http.Server{
		Addr:              *addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	banner()
	fmt.Printf("🌐 Dashboard listening on %s\n", *addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
}

// server exposes one Controller over HTTP.
type server struct {
	ctx      context.Context
	ctl      *trainer.Controller
	renderer *visualizer.Renderer
	width    int
	height   int
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /start", s.handleStart)
	mux.HandleFunc("GET /frame/{file}", s.handleFrame)
	mux.Handle("GET /ws", websocket.Handler(s.handleWS))
	return mux
}

func (s *server) handleStart(w http.ResponseWriter, _ *http.Request) {
	started := s.ctl.StartSession()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{
		"started":  started,
		"training": s.ctl.IsTraining(),
	})
}

func (s *server) handleFrame(w http.ResponseWriter, r *http.Request) {
	name, ok := strings.CutSuffix(r.PathValue("file"), ".png")
	if !ok {
		http.NotFound(w, r)
		return
	}
	role, err := trainer.ParseRole(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	props := visualizer.Props{
		Source: func() *network.Snapshot { return s.ctl.Snapshot(role) },
		Color:  roleColors[role],
		Width:  s.width,
		Height: s.height,
		Active: s.ctl.IsTraining(),
	}
	var activations [][]float64
	if props.Active {
		activations = visualizer.NewSimulatedActivation(network.Architecture).Frame()
	}
	frame := s.renderer.Render(props, activations)
	if frame.Fault != nil {
		w.Header().Set("X-Render-Fault", frame.Fault.Error())
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_ = png.Encode(w, frame.Image)
}

// wireMessage is the JSON sent over /ws.
type wireMessage struct {
	Type      string                         `json:"type"` // "history", "epoch" or "done"
	Epoch     int                            `json:"epoch,omitempty"`
	Stats     map[string]trainer.EpochStat   `json:"stats,omitempty"`
	Histories map[string][]trainer.EpochStat `json:"histories,omitempty"`
	Error     string                         `json:"error,omitempty"`
}

func historyMessage(h map[trainer.Role][]trainer.EpochStat) wireMessage {
	msg := wireMessage{Type: "history", Histories: make(map[string][]trainer.EpochStat, len(h))}
	for role, stats := range h {
		msg.Histories[role.String()] = stats
	}
	return msg
}

func eventMessage(ev trainer.Event) wireMessage {
	if ev.Done {
		msg := wireMessage{Type: "done", Epoch: ev.Epoch}
		if ev.Err != nil {
			msg.Error = ev.Err.Error()
		}
		return msg
	}
	return wireMessage{
		Type:  "epoch",
		Epoch: ev.Epoch,
		Stats: map[string]trainer.EpochStat{
			trainer.RoleAdd.String():    ev.Add,
			trainer.RoleMult.String():   ev.Mult,
			trainer.RoleMerged.String(): ev.Merged,
		},
	}
}

func (s *server) handleWS(ws *websocket.Conn) {
	defer ws.Close()

	events, unsubscribe := s.ctl.Subscribe()
	defer unsubscribe()

	// The client never sends anything we act on; reading only detects
	// the disconnect.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		var discard string
		for {
			if err := websocket.Message.Receive(ws, &discard); err != nil {
				if !errors.Is(err, io.EOF) {
					fmt.Printf("⚠️ WS read error: %v\n", err)
				}
				return
			}
		}
	}()

	if err := websocket.JSON.Send(ws, historyMessage(s.ctl.Histories())); err != nil {
		return
	}
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-gone:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := websocket.JSON.Send(ws, eventMessage(ev)); err != nil {
				return
			}
		}
	}
}

func (s *server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, indexHTML)
}

const indexHTML = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>weightfusion</title>
<style>
body { background: #0f172a; color: #e2e8f0; font-family: sans-serif; margin: 2em; }
.panels { display: flex; gap: 1em; flex-wrap: wrap; }
.panel img { display: block; border: 1px solid #334155; }
pre { height: 16em; overflow: auto; background: #020617; padding: 0.5em; }
</style>
</head>
<body>
<h1>weightfusion</h1>
<p>A learns addition, B learns multiplication, C averages their weights and is tested on division.</p>
<button id="start">Start session</button>
<div class="panels">
  <div class="panel"><h3>A · add</h3><img id="add" src="/frame/add.png"></div>
  <div class="panel"><h3>B · mult</h3><img id="mult" src="/frame/mult.png"></div>
  <div class="panel"><h3>C · merged</h3><img id="merged" src="/frame/merged.png"></div>
</div>
<pre id="log"></pre>
<script>
const log = document.getElementById("log");
const roles = ["add", "mult", "merged"];
function refresh() {
  for (const r of roles) document.getElementById(r).src = "/frame/" + r + ".png?t=" + Date.now();
}
document.getElementById("start").onclick = () => fetch("/start", {method: "POST"});
const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
ws.onmessage = (e) => {
  const m = JSON.parse(e.data);
  if (m.type === "epoch") {
    const s = m.stats;
    log.textContent += "epoch " + m.epoch +
      "  add " + (s.add.accuracy * 100).toFixed(1) + "%" +
      "  mult " + (s.mult.accuracy * 100).toFixed(1) + "%" +
      "  merged/div " + (s.merged.accuracy * 100).toFixed(1) + "%\n";
  } else if (m.type === "done") {
    log.textContent += m.error ? "failed: " + m.error + "\n" : "done\n";
  }
  log.scrollTop = log.scrollHeight;
  refresh();
};
setInterval(refresh, 1000);
</script>
</body>
</html>
`
