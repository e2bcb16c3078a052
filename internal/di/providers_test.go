package di

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"MarketLens/internal/domain/models"
	"MarketLens/pkg/cache"
	pkgch "MarketLens/pkg/clickhouse"
	"MarketLens/pkg/config"
	applogger "MarketLens/pkg/logger"
	pkgpg "MarketLens/pkg/postgres"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestProvideStoresMemoryBackendLoadsFixtures(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.Backend = config.BackendMemory
	cfg.Storage.Fixtures = writeFile(t, "fixtures.json", `{
  "prices": [{"symbol": "BTC-USD", "timestamp": "2024-06-01T00:00:00Z", "price": 70000}],
  "anomalies": [{"id": "a1", "symbol": "BTC-USD", "detectedAt": "2024-06-01T00:00:00Z", "type": "PRICE_SPIKE"}]
}`)

	stores, cleanup, err := ProvideStores(cfg, applogger.Nop())
	require.NoError(t, err)
	defer cleanup()

	a, err := stores.Anomalies.FindByID(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusNotGenerated, a.ValidationStatus())

	p, err := stores.Prices.Latest(context.Background(), "BTC-USD")
	require.NoError(t, err)
	assert.Equal(t, 70000.0, p.Price)
}

func TestProvideThresholdProviderFailsFast(t *testing.T) {
	cfg := &config.Config{}
	cfg.Thresholds.Path = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := ProvideThresholdProvider(cfg, applogger.Nop())
	var cle *models.ConfigLoadError
	require.ErrorAs(t, err, &cle)
}

func TestProvideThresholdProviderLoadsEagerly(t *testing.T) {
	cfg := &config.Config{}
	cfg.Thresholds.Path = writeFile(t, "thresholds.yaml", `globalDefaults:
  zScoreThreshold: 3
  volumeZThreshold: 2.5
  bollingerStdMultiplier: 2
`)

	p, err := ProvideThresholdProvider(cfg, applogger.Nop())
	require.NoError(t, err)
	assert.True(t, p.Loaded())
}

func TestProvideCacheSelection(t *testing.T) {
	cfg := &config.Config{}
	c, _, err := ProvideCache(cfg, applogger.Nop())
	require.NoError(t, err)
	assert.Nil(t, c)

	// a TTL alone is not enough: nothing would evict stale stats
	cfg.Query.StatsCacheTTL = time.Minute
	c, _, err = ProvideCache(cfg, applogger.Nop())
	require.NoError(t, err)
	assert.Nil(t, c)

	cfg.Kafka.Enabled = true
	c, _, err = ProvideCache(cfg, applogger.Nop())
	require.NoError(t, err)
	require.NotNil(t, c)
	defer c.Close()
	_, isMemory := c.(*cache.MemoryCache)
	assert.True(t, isMemory)

	cfg.Query.StatsCacheTTL = 0
	c, _, err = ProvideCache(cfg, applogger.Nop())
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestKafkaProvidersDisabled(t *testing.T) {
	cfg := &config.Config{}

	producer, cleanup, err := ProvideKafkaProducer(cfg, applogger.Nop())
	require.NoError(t, err)
	assert.Nil(t, producer)
	cleanup()
	assert.Nil(t, ProvideReloadNotifier(producer, cfg))

	consumer, err := ProvideKafkaConsumer(cfg, applogger.Nop(), nil, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, consumer)
}

func TestStoresCloseReleasesBothPools(t *testing.T) {
	chDB, chMock, err := sqlmock.New()
	require.NoError(t, err)
	pgDB, pgMock, err := sqlmock.New()
	require.NoError(t, err)
	chMock.ExpectClose()
	pgMock.ExpectClose()

	stores := &Stores{ch: pkgch.NewClientFromDB(chDB), pg: pkgpg.NewClientFromDB(pgDB)}
	require.NoError(t, stores.Close())
	assert.NoError(t, chMock.ExpectationsWereMet())
	assert.NoError(t, pgMock.ExpectationsWereMet())
}

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Storage.Backend = config.BackendMemory
	cfg.Thresholds.Path = writeFile(t, "thresholds.yaml", `globalDefaults:
  zScoreThreshold: 3
  volumeZThreshold: 2.5
  bollingerStdMultiplier: 2
`)
	return cfg
}

func TestInitializeAppReturnsCleanup(t *testing.T) {
	app, cleanup, err := InitializeApp(memoryConfig(t))
	require.NoError(t, err)
	require.NotNil(t, app)
	require.NotNil(t, cleanup)
	cleanup()
}

func TestInitializeAppFailsAfterOpeningResources(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Kafka.Enabled = true
	cfg.Kafka.Brokers = []string{"127.0.0.1:9"}
	cfg.Query.StatsCacheTTL = time.Minute
	cfg.Thresholds.Path = filepath.Join(t.TempDir(), "missing.yaml")

	app, cleanup, err := InitializeApp(cfg)
	var cle *models.ConfigLoadError
	require.ErrorAs(t, err, &cle)
	assert.Nil(t, app)
	assert.Nil(t, cleanup)
}
