package usecase

import (
	"context"
	"time"

	"MarketLens/internal/domain/models"
	domrepo "MarketLens/internal/domain/repository"
	applogger "MarketLens/pkg/logger"
)

// ThresholdProvider is the cached threshold document.
type ThresholdProvider interface {
	Resolve(symbol string) (models.AssetThresholds, error)
	ResolveAll() ([]models.AssetThresholds, error)
	Reload() error
}

// ThresholdsUseCase exposes threshold resolution and explicit reloads.
type ThresholdsUseCase struct {
	provider ThresholdProvider
	notifier domrepo.ReloadNotifier
	metrics  domrepo.Metrics
	l        *applogger.Logger
}

// NewThresholdsUseCase accepts a nil notifier for single-replica setups.
func NewThresholdsUseCase(provider ThresholdProvider, notifier domrepo.ReloadNotifier, metrics domrepo.Metrics, l *applogger.Logger) *ThresholdsUseCase {
	if l == nil {
		l = applogger.Nop()
	}
	return &ThresholdsUseCase{provider: provider, notifier: notifier, metrics: metrics, l: l}
}

func (uc *ThresholdsUseCase) List(ctx context.Context) ([]models.AssetThresholds, error) {
	defer uc.observe("thresholds_list", time.Now())
	out, err := uc.provider.ResolveAll()
	if err != nil {
		uc.metrics.RecordError("thresholds_list")
		return nil, err
	}
	return out, nil
}

func (uc *ThresholdsUseCase) Get(ctx context.Context, symbol string) (models.AssetThresholds, error) {
	defer uc.observe("thresholds_get", time.Now())
	t, err := uc.provider.Resolve(symbol)
	if err != nil {
		uc.metrics.RecordError("thresholds_get")
		return models.AssetThresholds{}, err
	}
	return t, nil
}

// Reload re-reads the document and tells other replicas. A failed
// notification is logged; the local reload still stands.
func (uc *ThresholdsUseCase) Reload(ctx context.Context) ([]models.AssetThresholds, error) {
	if err := uc.provider.Reload(); err != nil {
		uc.metrics.RecordError("thresholds_reload")
		return nil, err
	}
	if uc.notifier != nil {
		if err := uc.notifier.NotifyReload(ctx); err != nil {
			uc.l.Warn("threshold reload notification failed", applogger.Error(err))
		}
	}
	return uc.provider.ResolveAll()
}

// ApplyRemoteReload handles a reload announced by another replica.
func (uc *ThresholdsUseCase) ApplyRemoteReload(ctx context.Context) error {
	if err := uc.provider.Reload(); err != nil {
		uc.metrics.RecordError("thresholds_remote_reload")
		return err
	}
	return nil
}

func (uc *ThresholdsUseCase) observe(op string, start time.Time) {
	uc.metrics.RecordQuery(op, time.Since(start).Seconds())
}
