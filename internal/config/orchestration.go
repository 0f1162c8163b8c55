package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// OrchestrationConfig holds operational guardrails for payment operations.
// It is hot-reloadable so operators can, for example, suspend manual credits
// without a restart.
type OrchestrationConfig struct {
	Provider              string `mapstructure:"provider"`
	ManualCreditEnabled   bool   `mapstructure:"manualCreditEnabled"`
	MaxManualCreditAmount int64  `mapstructure:"maxManualCreditAmount"`
}

func DefaultOrchestrationConfig() OrchestrationConfig {
	return OrchestrationConfig{
		Provider:              "sandbox",
		ManualCreditEnabled:   true,
		MaxManualCreditAmount: 0, // 0 = uncapped
	}
}

type OrchestrationConfigHolder struct {
	current atomic.Value // holds OrchestrationConfig
}

func NewOrchestrationConfigHolder() (*OrchestrationConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("orchestration")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/payflow/config")
	v.AddConfigPath("/etc/payflow")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PAYFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultOrchestrationConfig()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		v.SetDefault("orchestration.provider", defaults.Provider)
		v.SetDefault("orchestration.manualCreditEnabled", defaults.ManualCreditEnabled)
		v.SetDefault("orchestration.maxManualCreditAmount", defaults.MaxManualCreditAmount)
	}

	var cfg OrchestrationConfig
	if err := v.UnmarshalKey("orchestration", &cfg); err != nil {
		return nil, err
	}
	if err := validateOrchestrationConfig(cfg); err != nil {
		return nil, err
	}

	holder := &OrchestrationConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated OrchestrationConfig
		if err := v.UnmarshalKey("orchestration", &updated); err != nil {
			log.Printf("[orchestration-config] reload failed: %v", err)
			return
		}
		if err := validateOrchestrationConfig(updated); err != nil {
			log.Printf("[orchestration-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[orchestration-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *OrchestrationConfigHolder) Get() OrchestrationConfig {
	return h.current.Load().(OrchestrationConfig)
}

// NewStaticOrchestrationConfigHolder returns a holder with a fixed config,
// used by tests.
func NewStaticOrchestrationConfigHolder(cfg OrchestrationConfig) *OrchestrationConfigHolder {
	holder := &OrchestrationConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func validateOrchestrationConfig(cfg OrchestrationConfig) error {
	if strings.TrimSpace(cfg.Provider) == "" {
		return errors.New("orchestration.provider cannot be empty")
	}
	if cfg.MaxManualCreditAmount < 0 {
		return errors.New("orchestration.maxManualCreditAmount cannot be negative")
	}
	return nil
}
