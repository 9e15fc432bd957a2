package config

import (
	"github.com/sugartom/nexus/internal/kcommon"
)

// SchedulerConfig carries all tunables of the scheduler. Values come from
// env vars; defaults follow the original deployment (10s beacon, 30s
// epoch).
type SchedulerConfig struct {
	BeaconIntervalSec int
	EpochIntervalSec  int
	HistoryLen        int
	// a model session shrinks only when supply > demand * (1 + ShrinkHysteresis)
	ShrinkHysteresis float64

	ApiPort     int
	MetricsPort int

	// optional static workload description file, empty = none
	WorkloadFile string
}

func NewSchedulerConfigFromEnv() *SchedulerConfig {
	cfg := &SchedulerConfig{
		BeaconIntervalSec: kcommon.GetEnvInt("NEXUS_BEACON_INTERVAL_SEC", 10),
		EpochIntervalSec:  kcommon.GetEnvInt("NEXUS_EPOCH_INTERVAL_SEC", 30),
		HistoryLen:        kcommon.GetEnvInt("NEXUS_HISTORY_LEN", 20),
		ShrinkHysteresis:  kcommon.GetEnvFloat("NEXUS_SHRINK_HYSTERESIS", 0.1),
		ApiPort:           kcommon.GetEnvInt("API_PORT", 8080),
		MetricsPort:       kcommon.GetEnvInt("METRICS_PORT", 9090),
		WorkloadFile:      kcommon.GetEnvString("NEXUS_WORKLOAD_FILE", ""),
	}
	if cfg.EpochIntervalSec <= cfg.BeaconIntervalSec {
		// the epoch pass must be strictly slower than the beacon pass
		cfg.EpochIntervalSec = cfg.BeaconIntervalSec * 3
	}
	return cfg
}

// NewSchedulerConfigForTest returns a config with short cadences suitable
// for fake-time tests.
func NewSchedulerConfigForTest() *SchedulerConfig {
	return &SchedulerConfig{
		BeaconIntervalSec: 1,
		EpochIntervalSec:  5,
		HistoryLen:        10,
		ShrinkHysteresis:  0.1,
	}
}
