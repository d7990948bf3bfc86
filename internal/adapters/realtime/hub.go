package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"medication-adherence/internal/domain/medications"
	"medication-adherence/internal/middleware"
	"medication-adherence/internal/platform/querycache"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

const TypeMedicationsUpdated = "medications_updated"

// Message es lo que se empuja por el socket. Si Invalidated es true el cliente
// debe volver a pedir GET /medications.
type Message struct {
	Type        string                           `json:"type"`
	Version     uint64                           `json:"version"`
	Invalidated bool                             `json:"invalidated,omitempty"`
	Medications []medications.MedicationResponse `json:"medications,omitempty"`
}

type client struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte
}

// Hub reparte los cambios del cache de medicaciones a los sockets abiertos
// del dueño de cada clave.
type Hub struct {
	log      zerolog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}

	unsubscribe func()
}

func NewHub(cache *medications.Cache, log zerolog.Logger) *Hub {
	h := &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Auth va por token, no por cookie: no hay CSRF que cuidar.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[string]map[*client]struct{}),
	}
	h.unsubscribe = cache.Subscribe(h.onEvent)
	return h
}

// Close corta la suscripción al cache y cierra todas las conexiones.
func (h *Hub) Close() {
	h.unsubscribe()

	h.mu.Lock()
	defer h.mu.Unlock()
	for uid, set := range h.clients {
		for c := range set {
			close(c.send)
		}
		delete(h.clients, uid)
	}
}

// Connections devuelve cuántos sockets tiene abiertos el usuario.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) onEvent(ev querycache.Event[[]medications.MedicationWithLogs]) {
	msg := Message{Type: TypeMedicationsUpdated, Version: ev.Version, Invalidated: ev.Invalidated}
	if !ev.Invalidated {
		msg.Medications = make([]medications.MedicationResponse, 0, len(ev.Value))
		for _, m := range ev.Value {
			msg.Medications = append(msg.Medications, medications.ToMedicationResponse(m))
		}
	}

	h.mu.RLock()
	set := h.clients[ev.Key]
	if len(set) == 0 {
		h.mu.RUnlock()
		return
	}
	h.mu.RUnlock()

	payload, err := json.Marshal(msg)
	if err != nil {
		h.log.Error().Err(err).Msg("marshal realtime message")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[ev.Key] {
		select {
		case c.send <- payload:
		default:
			// cliente lento: se corta y que reconecte
			h.log.Warn().Str("user_id", c.userID).Msg("realtime client too slow, dropping")
			h.removeLocked(c)
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	set, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
}

// ServeWS godoc
// @Summary      Push de cambios en tiempo real
// @Description  Abre un websocket que recibe "medications_updated" cada vez que cambia la lista del usuario. Los navegadores pueden mandar el token en ?access_token=.
// @Tags         realtime
// @Param        access_token query string false "Access token (alternativa al header Authorization)"
// @Param        X-Debug-User-ID header string false "Dev only: simula usuario autenticado"
// @Success      101
// @Failure      401 {string} string "unauthorized"
// @Router       /ws [get]
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade ya respondió con el error HTTP
		zerolog.Ctx(r.Context()).Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{userID: userID, conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(c)
	h.log.Debug().Str("user_id", userID).Msg("realtime client connected")

	go h.writePump(c)
	h.readPump(c)
}

// readPump solo procesa control frames (pong/close); el cliente no manda datos.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
		h.log.Debug().Str("user_id", c.userID).Msg("realtime client disconnected")
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump es el único escritor de la conexión.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
