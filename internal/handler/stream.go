package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"taxi/internal/domain"
	"taxi/internal/middleware"
	"taxi/internal/service"
)

const (
	// streamWriteWait bounds a single write to a client that stopped reading.
	streamWriteWait = 5 * time.Second
	// maxViewportBytes caps an incoming viewport message.
	maxViewportBytes = 1024
)

// StreamHandler pushes nearby-driver markers over a WebSocket as the
// client pans and zooms its map.
type StreamHandler struct {
	proximity *service.ProximityEngine
	upgrader  websocket.Upgrader
	log       logrus.FieldLogger
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(proximity *service.ProximityEngine, log logrus.FieldLogger) *StreamHandler {
	return &StreamHandler{
		proximity: proximity,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// ViewportMessage is sent by the client whenever its map moves.
type ViewportMessage struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	RadiusKm float64 `json:"radius_km"`
	Zoom     float64 `json:"zoom"`
}

// MarkersMessage is pushed to the client for the latest viewport.
type MarkersMessage struct {
	OK      bool            `json:"ok"`
	Message string          `json:"message,omitempty"`
	Markers []domain.Marker `json:"markers"`
}

// Nearby handles GET /v1/drivers/nearby/ws
func (h *StreamHandler) Nearby(c *gin.Context) {
	log := middleware.Logger(c, h.log)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxViewportBytes)

	key := uuid.NewString()
	log = log.WithField("stream", key)
	defer h.proximity.Cancel(key)

	var writeMu sync.Mutex
	send := func(msg MarkersMessage) {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteJSON(msg); err != nil {
			// Closing unblocks the read loop so the stream is torn down.
			log.WithError(err).Debug("websocket write failed")
			conn.Close()
		}
	}

	for {
		var vp ViewportMessage
		if err := conn.ReadJSON(&vp); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Debug("websocket closed")
			}
			return
		}

		zoom := vp.Zoom
		if zoom <= 0 {
			zoom = defaultZoom
		}
		q := service.NearbyQuery{
			Center:   domain.Coordinates{Lat: vp.Lat, Lon: vp.Lon},
			RadiusKm: vp.RadiusKm,
			Zoom:     zoom,
		}
		h.proximity.Submit(key, q, func(markers []domain.Marker, err error) {
			if err != nil {
				log.WithError(err).Warn("nearby lookup failed")
				send(MarkersMessage{OK: false, Message: "Could not load nearby drivers.", Markers: []domain.Marker{}})
				return
			}
			send(MarkersMessage{OK: true, Markers: markers})
		})
	}
}
