package metrics

import (
	"time"

	"github.com/cactus/go-statsd-client/statsd"
	"go.uber.org/zap"
)

// statter is the subset of statsd.Statter the bot reports through.
type statter interface {
	Inc(stat string, value int64, rate float32) error
	TimingDuration(stat string, d time.Duration, rate float32) error
}

// StatsdClient implements domain.Metrics. A failed init leaves it disabled and
// every call becomes a no-op.
type StatsdClient struct {
	client statter
	log    *zap.Logger
}

func NewStatsdClient(address, prefix string, flush time.Duration, log *zap.Logger) *StatsdClient {
	if log == nil {
		log = zap.NewNop()
	}
	sd := &StatsdClient{log: log}
	if address == "" {
		log.Info("StatsD address not set, disabling stats")
		return sd
	}
	if flush <= 0 {
		flush = time.Second
	}

	client, err := statsd.NewClientWithConfig(&statsd.ClientConfig{
		Address:       address,
		Prefix:        prefix,
		FlushInterval: flush,
	})
	if err != nil {
		log.Error("StatsD init error, disabling stats", zap.Error(err))
		return sd
	}
	sd.client = client
	log.Info("StatsD init successful", zap.String("address", address), zap.String("prefix", prefix))
	return sd
}

func (sd *StatsdClient) Enabled() bool {
	return sd.client != nil
}

func (sd *StatsdClient) Inc(stat string) {
	if sd.client == nil {
		return
	}
	if err := sd.client.Inc(stat, 1, 1.0); err != nil {
		sd.log.Debug("Error on StatsD Inc", zap.String("stat", stat), zap.Error(err))
	}
}

func (sd *StatsdClient) Timing(stat string, d time.Duration) {
	if sd.client == nil {
		return
	}
	if err := sd.client.TimingDuration(stat, d, 1.0); err != nil {
		sd.log.Debug("Error on StatsD TimingDuration", zap.String("stat", stat), zap.Error(err))
	}
}

func (sd *StatsdClient) Close() error {
	if c, ok := sd.client.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
