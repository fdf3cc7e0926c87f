package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// SettlementConfig carries the gas cost model and tenant policy defaults.
// Gas figures are policy knobs, not chain measurements; they feed the
// tenant-facing savings estimates.
type SettlementConfig struct {
	IndividualGasPerVote uint64  `mapstructure:"individualGasPerVote"`
	BatchBaseGas         uint64  `mapstructure:"batchBaseGas"`
	BatchPerVoteGas      uint64  `mapstructure:"batchPerVoteGas"`
	GasPriceGwei         float64 `mapstructure:"gasPriceGwei"`

	DefaultBatchThreshold         int `mapstructure:"defaultBatchThreshold"`
	DefaultMaxBatchSize           int `mapstructure:"defaultMaxBatchSize"`
	DefaultProcessingDelaySeconds int `mapstructure:"defaultProcessingDelaySeconds"`

	IntentMaxAgeHours int `mapstructure:"intentMaxAgeHours"`
}

func DefaultSettlementConfig() SettlementConfig {
	return SettlementConfig{
		IndividualGasPerVote:          65_000,
		BatchBaseGas:                  100_000,
		BatchPerVoteGas:               25_000,
		GasPriceGwei:                  20,
		DefaultBatchThreshold:         20,
		DefaultMaxBatchSize:           100,
		DefaultProcessingDelaySeconds: 0,
		IntentMaxAgeHours:             24,
	}
}

// SettlementConfigHolder keeps the active config behind an atomic so hot
// reloads never race readers.
type SettlementConfigHolder struct {
	current atomic.Value // holds SettlementConfig
}

func NewSettlementConfigHolder(log *zap.Logger) (*SettlementConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("settlement")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/votechain/config")
	v.AddConfigPath("/etc/votechain")
	v.AddConfigPath(".")

	v.SetEnvPrefix("VOTECHAIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults apply per key, so a config file may set only the knobs it
	// cares about.
	defaults := DefaultSettlementConfig()
	v.SetDefault("settlement.individualGasPerVote", defaults.IndividualGasPerVote)
	v.SetDefault("settlement.batchBaseGas", defaults.BatchBaseGas)
	v.SetDefault("settlement.batchPerVoteGas", defaults.BatchPerVoteGas)
	v.SetDefault("settlement.gasPriceGwei", defaults.GasPriceGwei)
	v.SetDefault("settlement.defaultBatchThreshold", defaults.DefaultBatchThreshold)
	v.SetDefault("settlement.defaultMaxBatchSize", defaults.DefaultMaxBatchSize)
	v.SetDefault("settlement.defaultProcessingDelaySeconds", defaults.DefaultProcessingDelaySeconds)
	v.SetDefault("settlement.intentMaxAgeHours", defaults.IntentMaxAgeHours)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg SettlementConfig
	if err := v.UnmarshalKey("settlement", &cfg); err != nil {
		return nil, err
	}
	if err := validateSettlementConfig(cfg); err != nil {
		return nil, err
	}

	holder := &SettlementConfigHolder{}
	holder.current.Store(cfg)

	watchLog := log.Named("config.settlement")
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated SettlementConfig
		if err := v.UnmarshalKey("settlement", &updated); err != nil {
			watchLog.Error("settlement config reload failed", zap.Error(err))
			return
		}
		if err := validateSettlementConfig(updated); err != nil {
			watchLog.Warn("invalid settlement config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		watchLog.Info("settlement config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *SettlementConfigHolder) Get() SettlementConfig {
	return h.current.Load().(SettlementConfig)
}

// NewStaticSettlementConfigHolder wraps a fixed config with no file watch.
func NewStaticSettlementConfigHolder(cfg SettlementConfig) *SettlementConfigHolder {
	holder := &SettlementConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func validateSettlementConfig(cfg SettlementConfig) error {
	if cfg.IndividualGasPerVote == 0 {
		return errors.New("settlement.individualGasPerVote cannot be zero")
	}
	if cfg.BatchPerVoteGas == 0 {
		return errors.New("settlement.batchPerVoteGas cannot be zero")
	}
	if cfg.BatchPerVoteGas >= cfg.IndividualGasPerVote {
		return errors.New("settlement.batchPerVoteGas must undercut individualGasPerVote")
	}
	if cfg.GasPriceGwei <= 0 {
		return errors.New("settlement.gasPriceGwei must be positive")
	}
	if cfg.DefaultBatchThreshold <= 0 || cfg.DefaultMaxBatchSize <= 0 {
		return errors.New("settlement batch defaults must be positive")
	}
	if cfg.IntentMaxAgeHours <= 0 {
		return errors.New("settlement.intentMaxAgeHours must be positive")
	}
	return nil
}
