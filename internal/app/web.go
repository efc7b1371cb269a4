package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/walking_synth/internal/config"
	"github.com/relabs-tech/walking_synth/internal/pipeline"
	"github.com/relabs-tech/walking_synth/internal/signals"
	"github.com/relabs-tech/walking_synth/internal/step"
	"github.com/relabs-tech/walking_synth/internal/transport"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

const wsWriteTimeout = 2 * time.Second

// webServer mirrors stepd's status for browsers and turns REST calls into
// control commands.
type webServer struct {
	send func(transport.Command) error

	mu        sync.RWMutex
	last      transport.Status
	haveLast  bool
	threshold *step.Threshold // slider mapping; follows stepd's value

	statusB *pipeline.Broadcaster[transport.Status]
	signalB *pipeline.Broadcaster[signals.Value]

	lastSignal signals.Value
	haveSignal bool
}

func newWebServer(cfg *config.Config, send func(transport.Command) error) *webServer {
	return &webServer{
		send:      send,
		threshold: step.NewThreshold(cfg.ThresholdMin, cfg.ThresholdMax, cfg.ThresholdInit),
		statusB:   pipeline.NewBroadcaster[transport.Status](),
		signalB:   pipeline.NewBroadcaster[signals.Value](),
	}
}

func (ws *webServer) onStatus(st transport.Status) {
	ws.mu.Lock()
	ws.last = st
	ws.haveLast = true
	ws.mu.Unlock()
	ws.threshold.Set(st.Threshold)
	ws.statusB.Publish(st)
}

func (ws *webServer) onSignal(v signals.Value) {
	ws.mu.Lock()
	ws.lastSignal = v
	ws.haveSignal = true
	ws.mu.Unlock()
	ws.signalB.Publish(v)
}

func (ws *webServer) status() (transport.Status, bool) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.last, ws.haveLast
}

func (ws *webServer) signal() (signals.Value, bool) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.lastSignal, ws.haveSignal
}

type thresholdView struct {
	Threshold float64 `json:"threshold"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Progress  int     `json:"progress"`
	Span      int     `json:"span"`
}

func (ws *webServer) thresholdView() thresholdView {
	return thresholdView{
		Threshold: ws.threshold.Get(),
		Min:       ws.threshold.Min(),
		Max:       ws.threshold.Max(),
		Progress:  ws.threshold.Progress(),
		Span:      ws.threshold.Span(),
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}

// command forwards cmd to stepd and answers 202, or 502 if it could not be sent.
func (ws *webServer) command(w http.ResponseWriter, cmd transport.Command) bool {
	if err := ws.send(cmd); err != nil {
		log.Printf("web: %s: %v", cmd.Cmd, err)
		http.Error(w, "step service unreachable", http.StatusBadGateway)
		return false
	}
	return true
}

func (ws *webServer) routes(static http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/tempo", func(w http.ResponseWriter, r *http.Request) {
		st, ok := ws.status()
		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, st)
	})

	mux.HandleFunc("GET /api/threshold", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, ws.thresholdView())
	})

	mux.HandleFunc("POST /api/threshold", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Threshold *float64 `json:"threshold"`
			Progress  *int     `json:"progress"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("bad request: %v", err), http.StatusBadRequest)
			return
		}

		var v float64
		switch {
		case req.Threshold != nil:
			v = ws.threshold.Set(*req.Threshold)
		case req.Progress != nil:
			v = ws.threshold.SetProgress(*req.Progress)
		default:
			http.Error(w, "threshold or progress required", http.StatusBadRequest)
			return
		}

		if !ws.command(w, transport.Command{Cmd: transport.CmdThreshold, Value: v}) {
			return
		}
		writeJSON(w, http.StatusAccepted, ws.thresholdView())
	})

	mux.HandleFunc("POST /api/threshold/save", func(w http.ResponseWriter, r *http.Request) {
		if ws.command(w, transport.Command{Cmd: transport.CmdSave}) {
			w.WriteHeader(http.StatusAccepted)
		}
	})

	for path, name := range map[string]string{
		"POST /api/reset": transport.CmdReset,
		"POST /api/start": transport.CmdStart,
		"POST /api/stop":  transport.CmdStop,
	} {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			if ws.command(w, transport.Command{Cmd: name}) {
				w.WriteHeader(http.StatusAccepted)
			}
		})
	}

	mux.HandleFunc("GET /api/kinds", func(w http.ResponseWriter, r *http.Request) {
		st, _ := ws.status()
		writeJSON(w, http.StatusOK, map[string]signals.Kinds{"kinds": st.Kinds})
	})

	mux.HandleFunc("POST /api/kinds", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Kinds string `json:"kinds"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("bad request: %v", err), http.StatusBadRequest)
			return
		}
		k, err := signals.ParseKinds(req.Kinds)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if ws.command(w, transport.Command{Cmd: transport.CmdKinds, Kinds: k.String()}) {
			writeJSON(w, http.StatusAccepted, map[string]signals.Kinds{"kinds": k})
		}
	})

	mux.HandleFunc("/ws/tempo", func(w http.ResponseWriter, r *http.Request) {
		serveStream(w, r, ws.statusB, ws.status)
	})
	mux.HandleFunc("/ws/signal", func(w http.ResponseWriter, r *http.Request) {
		serveStream(w, r, ws.signalB, ws.signal)
	})

	if static != nil {
		mux.Handle("/", static)
	}
	return mux
}

// serveStream pushes every value from b to a websocket client, starting with
// the latest known one.
func serveStream[T any](w http.ResponseWriter, r *http.Request, b *pipeline.Broadcaster[T], latest func() (T, bool)) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	ch, cancel := b.Subscribe(8)
	defer cancel()
	log.Printf("web: %s client connected (%d streaming)", r.URL.Path, b.Len())

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("web: websocket error: %v", err)
				}
				return
			}
		}
	}()

	write := func(v T) bool {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteJSON(v) == nil
	}

	if v, ok := latest(); ok && !write(v) {
		return
	}
	for {
		select {
		case <-closed:
			return
		case v, ok := <-ch:
			if !ok || !write(v) {
				return
			}
		}
	}
}

// RunWeb serves the walking dashboard: REST control, live websocket streams
// and static files from ./web.
func RunWeb() error {
	cfg := config.Get()

	client, err := transport.ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDWeb)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	ws := newWebServer(cfg, func(cmd transport.Command) error {
		return transport.SendCommand(client, cfg.TopicControl, cmd)
	})

	sub, err := subscribeStatus(cfg, client, cfg.MQTTClientIDWeb, ws.onStatus)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	if cfg.TopicSignal != "" {
		sig, err := transport.SubscribeSignal(client, cfg.TopicSignal, ws.onSignal)
		if err != nil {
			return err
		}
		defer sig.Unsubscribe()
		log.Printf("web: subscribed to %s", cfg.TopicSignal)
	}

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web server listening on %s", addr)
	return http.ListenAndServe(addr, ws.routes(http.FileServer(http.Dir("web"))))
}
