package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Freeeeeet/felanocare/internal/api/middleware"
	"github.com/Freeeeeet/felanocare/internal/ledger"
	"github.com/Freeeeeet/felanocare/internal/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Frame - сообщение потока: полный текущий снимок или ошибка перед закрытием
type Frame struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

const (
	FrameSnapshot = "snapshot"
	FrameError    = "error"
)

// StreamSlots - GET /ws/owners/{ownerID}/slots?date=
func (h *Handler) StreamSlots(w http.ResponseWriter, r *http.Request) {
	sess := session(r)
	ownerID := chi.URLParam(r, "ownerID")
	date := r.URL.Query().Get("date")

	serveStream(h, w, r, func(ctx context.Context) (*ledger.Stream[[]model.Slot], error) {
		if date != "" {
			return h.ledger.ListSlotsForDate(ctx, sess, ownerID, date)
		}
		return h.ledger.ListAvailableSlots(ctx, sess, ownerID)
	})
}

// StreamDates - GET /ws/owners/{ownerID}/dates
func (h *Handler) StreamDates(w http.ResponseWriter, r *http.Request) {
	sess := session(r)
	ownerID := chi.URLParam(r, "ownerID")

	serveStream(h, w, r, func(ctx context.Context) (*ledger.Stream[[]string], error) {
		return h.ledger.ListAvailableDates(ctx, sess, ownerID)
	})
}

// StreamBooking - GET /ws/owners/{ownerID}/booking
func (h *Handler) StreamBooking(w http.ResponseWriter, r *http.Request) {
	sess := session(r)
	ownerID := chi.URLParam(r, "ownerID")
	patientID := r.URL.Query().Get("patient_id")
	if patientID == "" {
		patientID = sess.UserID
	}

	serveStream(h, w, r, func(ctx context.Context) (*ledger.Stream[*model.Slot], error) {
		return h.ledger.FindActiveBookingForPatient(ctx, sess, ownerID, patientID)
	})
}

// serveStream открывает поток до апгрейда, чтобы ошибки доступа и валидации
// вернулись обычным HTTP ответом, затем пересылает снимки в сокет.
func serveStream[T any](h *Handler, w http.ResponseWriter, r *http.Request, open func(context.Context) (*ledger.Stream[T], error)) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	stream, err := open(ctx)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer stream.Close()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	log := h.logger.With(
		zap.String("path", r.URL.Path),
		zap.String("uid", session(r).UserID),
		zap.String("request_id", middleware.GetRequestID(r.Context())),
	)
	log.Debug("Stream opened")

	go readPump(conn, cancel)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case v, ok := <-stream.C():
			if !ok {
				if err := stream.Err(); err != nil {
					log.Warn("Stream failed", zap.Error(err))
					_ = writeFrame(conn, Frame{Type: FrameError, Error: "stream interrupted, please reconnect"})
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "stream failed"),
						time.Now().Add(writeWait))
				}
				return
			}
			if err := writeFrame(conn, Frame{Type: FrameSnapshot, Data: v}); err != nil {
				log.Debug("Stream write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, f Frame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(f)
}

// readPump нужен только для pong и обнаружения закрытия клиентом
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
