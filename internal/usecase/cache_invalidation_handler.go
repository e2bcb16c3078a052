package usecase

import (
	"context"
	"encoding/json"

	domrepo "MarketLens/internal/domain/repository"
	pkgkafka "MarketLens/pkg/kafka"
	applogger "MarketLens/pkg/logger"
)

// AnomalyEventsHandler drops cached stats whenever the detector reports new
// anomalies.
type AnomalyEventsHandler struct {
	topic     string
	anomalies *AnomalyQueryUseCase
	metrics   domrepo.Metrics
	l         *applogger.Logger
}

func NewAnomalyEventsHandler(topic string, anomalies *AnomalyQueryUseCase, metrics domrepo.Metrics, l *applogger.Logger) *AnomalyEventsHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &AnomalyEventsHandler{topic: topic, anomalies: anomalies, metrics: metrics, l: l}
}

func (h *AnomalyEventsHandler) Topic() string { return h.topic }

// incoming message schema: {id, symbol, detectedAt}; any payload invalidates.
func (h *AnomalyEventsHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		ID     string `json:"id"`
		Symbol string `json:"symbol"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
	}
	if err := h.anomalies.InvalidateStats(ctx); err != nil {
		h.metrics.RecordError("cache_invalidate")
		return err
	}
	h.l.Debug("stats cache invalidated", applogger.String("anomaly", m.ID), applogger.String("symbol", m.Symbol))
	return nil
}

// ThresholdEventsHandler reloads the threshold document when another
// replica announces a reload. Events this instance published are skipped.
type ThresholdEventsHandler struct {
	topic      string
	instanceID string
	thresholds *ThresholdsUseCase
	l          *applogger.Logger
}

func NewThresholdEventsHandler(topic, instanceID string, thresholds *ThresholdsUseCase, l *applogger.Logger) *ThresholdEventsHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &ThresholdEventsHandler{topic: topic, instanceID: instanceID, thresholds: thresholds, l: l}
}

func (h *ThresholdEventsHandler) Topic() string { return h.topic }

func (h *ThresholdEventsHandler) Handle(ctx context.Context, b []byte) error {
	origin := pkgkafka.OriginFromContext(ctx)
	if origin != "" && origin == h.instanceID {
		return nil
	}
	if err := h.thresholds.ApplyRemoteReload(ctx); err != nil {
		return err
	}
	h.l.Info("threshold config reloaded by remote event", applogger.String("origin", origin))
	return nil
}

var (
	_ pkgkafka.MessageHandler = (*AnomalyEventsHandler)(nil)
	_ pkgkafka.MessageHandler = (*ThresholdEventsHandler)(nil)
)
