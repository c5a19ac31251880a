package ws

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"FinCast/internal/domain/models"
	domsvc "FinCast/internal/domain/service"
	"FinCast/internal/service/metrics"
	xhttp "FinCast/pkg/http"
	applogger "FinCast/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Message is one frame pushed to stream clients.
type Message struct {
	Type    string               `json:"type"`
	Symbol  string               `json:"symbol"`
	Data    *models.ForecastView `json:"data,omitempty"`
	Code    string               `json:"code,omitempty"`
	Message string               `json:"message,omitempty"`
	SentAt  time.Time            `json:"sent_at"`
}

const (
	TypeForecast = "forecast"
	TypeError    = "error"
)

// ForecastStreamHandler pushes a fresh forecast to each websocket client on
// a fixed interval until the client goes away.
type ForecastStreamHandler struct {
	forecaster domsvc.Forecaster
	upgrader   websocket.Upgrader
	l          *applogger.Logger
}

func NewForecastStreamHandler(forecaster domsvc.Forecaster, allowedOrigins []string, l *applogger.Logger) *ForecastStreamHandler {
	metrics.Register()
	if l == nil {
		l = applogger.Nop()
	}
	return &ForecastStreamHandler{
		forecaster: forecaster,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		l: l.With("ws"),
	}
}

func (h *ForecastStreamHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/forecast", h.Stream)
}

func (h *ForecastStreamHandler) Stream(c echo.Context) error {
	req := &models.StreamRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	interval := time.Duration(req.Interval) * time.Second

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.l.Warn("ws upgrade failed", applogger.Error(err))
		return nil
	}
	id := uuid.NewString()
	metrics.StreamClients.Inc()
	h.l.Info("ws client connected",
		applogger.String("client", id),
		applogger.String("symbol", symbol),
		applogger.Duration("interval_ms", interval),
	)

	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request().Context()))
	go h.readPump(conn, cancel)
	h.writePump(ctx, conn, symbol, interval)

	cancel()
	metrics.StreamClients.Dec()
	h.l.Info("ws client disconnected", applogger.String("client", id))
	return nil
}

// readPump drains client frames so pongs and close frames are processed.
func (h *ForecastStreamHandler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				h.l.Debug("ws read error", applogger.Error(err))
			}
			return
		}
	}
}

func (h *ForecastStreamHandler) writePump(ctx context.Context, conn *websocket.Conn, symbol string, interval time.Duration) {
	push := time.NewTicker(interval)
	ping := time.NewTicker(pingPeriod)
	defer func() {
		push.Stop()
		ping.Stop()
		_ = conn.Close()
	}()

	if !h.push(ctx, conn, symbol) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-push.C:
			if !h.push(ctx, conn, symbol) {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// push sends one forecast frame. Errors that retrying cannot fix end the
// stream after the error frame is delivered.
func (h *ForecastStreamHandler) push(ctx context.Context, conn *websocket.Conn, symbol string) bool {
	msg := Message{Type: TypeForecast, Symbol: symbol, SentAt: time.Now().UTC()}
	view, err := h.forecaster.Forecast(ctx, symbol)
	keep := true
	if err != nil {
		kind := models.KindOf(err)
		msg.Type, msg.Code, msg.Message = TypeError, string(kind), err.Error()
		keep = kind == models.KindDataUnavailable || kind == models.KindInternal
	} else {
		msg.Data = &view
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		h.l.Debug("ws write failed", applogger.String("symbol", symbol), applogger.Error(err))
		return false
	}
	if !keep {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, msg.Code))
	}
	return keep
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}
