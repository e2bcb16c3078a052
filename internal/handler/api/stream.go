package api

import (
	"context"
	"net/http"
	"time"

	"MarketLens/internal/domain/models"
	"MarketLens/internal/usecase"
	xhttp "MarketLens/pkg/http"
	xlogger "MarketLens/pkg/logger"
	"MarketLens/pkg/util"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// AnomalyStream pushes newly detected anomalies to websocket clients by
// polling the latest-anomalies query and advancing its cursor.
type AnomalyStream struct {
	facade   *usecase.QueryFacade
	interval time.Duration
	upgrader websocket.Upgrader
	logger   *xlogger.Logger
}

func NewAnomalyStream(facade *usecase.QueryFacade, interval time.Duration, logger *xlogger.Logger) *AnomalyStream {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &AnomalyStream{
		facade:   facade,
		interval: interval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Serve handles GET /ws/anomalies?since=&symbols=. Without since the feed
// starts at connection time.
func (s *AnomalyStream) Serve(c echo.Context) error {
	since := time.Now().UTC()
	if raw := c.QueryParam("since"); raw != "" {
		t, err := util.ParseTimeStrict(raw)
		if err != nil {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError("since", err.Error()))
		}
		since = t
	}
	symbols := util.SplitCSV(c.QueryParam("symbols"))

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", xlogger.Error(err))
		return nil
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.readPump(conn, cancel)

	s.logger.Debug("anomaly stream opened", xlogger.Time("since", since), xlogger.Strings("symbols", symbols))
	s.writePump(ctx, conn, since, symbols)
	return nil
}

// readPump discards client frames and cancels the feed once the peer goes
// away.
func (s *AnomalyStream) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
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

func (s *AnomalyStream) writePump(ctx context.Context, conn *websocket.Conn, since time.Time, symbols []string) {
	poll := time.NewTicker(s.interval)
	ping := time.NewTicker(pingPeriod)
	defer poll.Stop()
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-poll.C:
			next, err := s.push(ctx, conn, since, symbols)
			if err != nil {
				s.logger.Warn("anomaly stream stopped", xlogger.Error(err))
				return
			}
			since = next
		}
	}
}

// push sends everything newer than since, oldest first, and returns the new
// cursor. A failed query keeps the cursor and is retried on the next tick;
// only write failures end the stream.
func (s *AnomalyStream) push(ctx context.Context, conn *websocket.Conn, since time.Time, symbols []string) (time.Time, error) {
	rows, err := s.facade.AnomaliesSince(ctx, since, symbols)
	if err != nil {
		s.logger.Warn("anomaly stream poll failed", xlogger.Error(err))
		return since, nil
	}
	if len(rows) == usecase.LatestCap {
		s.logger.Warn("anomaly stream poll hit the cap; older rows in this window are skipped",
			xlogger.Time("since", since))
	}
	for i := len(rows) - 1; i >= 0; i-- {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(rows[i]); err != nil {
			return since, err
		}
	}
	return advance(since, rows), nil
}

func advance(since time.Time, rows []models.AnomalyView) time.Time {
	for _, r := range rows {
		if r.DetectedAt.After(since) {
			since = r.DetectedAt
		}
	}
	return since
}
