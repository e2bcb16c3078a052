package api

import (
	"time"

	"MarketLens/internal/domain/models"
	"MarketLens/internal/service/metrics"
	"MarketLens/internal/usecase"
	xhttp "MarketLens/pkg/http"
	xlogger "MarketLens/pkg/logger"

	"github.com/labstack/echo/v4"
)

// QueryEchoHandler exposes the query facade over HTTP.
type QueryEchoHandler struct {
	logger *xlogger.Logger
	facade *usecase.QueryFacade
	stream *AnomalyStream
}

func NewQueryEchoHandler(logger *xlogger.Logger, facade *usecase.QueryFacade, stream *AnomalyStream) *QueryEchoHandler {
	metrics.Register()
	return &QueryEchoHandler{logger: logger, facade: facade, stream: stream}
}

func (h *QueryEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.GET("/prices/:symbol/latest", h.LatestPrice)
	g.GET("/prices/:symbol/history", h.PriceHistory)

	g.GET("/thresholds", h.Thresholds)
	g.GET("/thresholds/:symbol", h.Threshold)
	g.POST("/thresholds/reload", h.ReloadThresholds)

	g.GET("/anomalies", h.Anomalies)
	g.GET("/anomalies/latest", h.LatestAnomalies)
	g.GET("/anomalies/stats", h.AnomalyStats)
	g.GET("/anomalies/:id", h.Anomaly)

	if h.stream != nil {
		e.GET("/ws/anomalies", h.stream.Serve)
	}
}

func (h *QueryEchoHandler) fail(c echo.Context, endpoint string, err error) error {
	metrics.RecordError(endpoint)
	appErr := toAppError(err)
	if appErr.Status >= 500 {
		h.logger.Error(endpoint+" usecase error", xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func (h *QueryEchoHandler) LatestPrice(c echo.Context) error {
	defer metrics.Observe("price_latest", time.Now())
	req := &models.LatestPriceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.facade.LatestPrice(c.Request().Context(), req.Symbol)
	if err != nil {
		return h.fail(c, "price_latest", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *QueryEchoHandler) PriceHistory(c echo.Context) error {
	defer metrics.Observe("price_history", time.Now())
	req := &models.PriceHistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.facade.PriceHistory(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "price_history", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *QueryEchoHandler) Thresholds(c echo.Context) error {
	defer metrics.Observe("thresholds", time.Now())
	res, err := h.facade.Thresholds(c.Request().Context())
	if err != nil {
		return h.fail(c, "thresholds", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, res)
}

func (h *QueryEchoHandler) Threshold(c echo.Context) error {
	defer metrics.Observe("threshold", time.Now())
	req := &models.ThresholdRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.facade.Threshold(c.Request().Context(), req.Symbol)
	if err != nil {
		return h.fail(c, "threshold", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *QueryEchoHandler) ReloadThresholds(c echo.Context) error {
	defer metrics.Observe("thresholds_reload", time.Now())
	res, err := h.facade.ReloadThresholds(c.Request().Context())
	if err != nil {
		return h.fail(c, "thresholds_reload", err)
	}
	h.logger.Info("threshold config reloaded via api", xlogger.Int("symbols", len(res)))
	return xhttp.SuccessResponse(c, res)
}

func (h *QueryEchoHandler) Anomalies(c echo.Context) error {
	defer metrics.Observe("anomalies", time.Now())
	req := &models.AnomalyListRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.facade.Anomalies(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "anomalies", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *QueryEchoHandler) LatestAnomalies(c echo.Context) error {
	defer metrics.Observe("anomalies_latest", time.Now())
	req := &models.LatestAnomaliesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.facade.LatestAnomalies(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "anomalies_latest", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *QueryEchoHandler) AnomalyStats(c echo.Context) error {
	defer metrics.Observe("anomalies_stats", time.Now())
	req := &models.AnomalyStatsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.facade.AnomalyStats(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "anomalies_stats", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *QueryEchoHandler) Anomaly(c echo.Context) error {
	defer metrics.Observe("anomaly", time.Now())
	req := &models.AnomalyIDRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.facade.Anomaly(c.Request().Context(), req.ID)
	if err != nil {
		return h.fail(c, "anomaly", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *QueryEchoHandler) Health(c echo.Context) error {
	if err := h.facade.Health(c.Request().Context()); err != nil {
		h.logger.Warn("health check failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError(err.Error()))
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}
