package broadcast

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"

	"golang.org/x/net/websocket"
)

type wsFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	GameID string `json:"game_id"`
	Region int    `json:"region"`
}

type joinedPayload struct {
	GameID string `json:"game_id"`
	Region int    `json:"region"`
}

// NewHandler exposes the hub: GET /ws upgrades to a subscription connection,
// /up answers health probes.
func (h *Hub) NewHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	wsHandler := websocket.Handler(h.handleConn)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		wsHandler.ServeHTTP(w, r)
	})
	return mux
}

// handleConn runs one connection's read loop. A client follows its region:
// it sends a join frame after connecting and again after each movement
// resolution; joining a new room leaves the previous one.
func (h *Hub) handleConn(conn *websocket.Conn) {
	p := newPeer(conn)
	var current roomKey
	joined := false
	defer func() {
		if joined {
			h.drop(current, p)
		}
		_ = conn.Close()
	}()

	decoder := json.NewDecoder(conn)
	for {
		var frame wsFrame
		if err := decoder.Decode(&frame); err != nil {
			if err != io.EOF {
				log.Printf("broadcast: read frame: %v", err)
			}
			return
		}
		switch frame.Type {
		case "join":
			var join joinPayload
			if err := json.Unmarshal(frame.Payload, &join); err != nil {
				log.Printf("broadcast: bad join payload: %v", err)
				return
			}
			if strings.TrimSpace(join.GameID) == "" || join.Region < 0 {
				return
			}
			next := roomKey{gameID: join.GameID, region: join.Region}
			if joined && next != current {
				h.drop(current, p)
			}
			h.room(next).join(p)
			current, joined = next, true
			if err := p.send(envelope{Type: "joined", Payload: joinedPayload{GameID: join.GameID, Region: join.Region}}); err != nil {
				return
			}
		case "leave":
			if joined {
				h.drop(current, p)
				joined = false
			}
		default:
			// Unknown frames are ignored so older clients stay compatible.
		}
	}
}
