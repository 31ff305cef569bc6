package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// UploadConfig tunes the upload endpoint and the bulk save.
type UploadConfig struct {
	MaxUploadBytes      int64 `mapstructure:"maxUploadBytes"`
	InsertBatchSize     int   `mapstructure:"insertBatchSize"`
	MaxRejectionsLogged int   `mapstructure:"maxRejectionsLogged"`
}

func DefaultUploadConfig() UploadConfig {
	return UploadConfig{
		MaxUploadBytes:      32 << 20,
		InsertBatchSize:     500,
		MaxRejectionsLogged: 50,
	}
}

type UploadConfigHolder struct {
	current atomic.Value // holds UploadConfig
}

// NewStaticUploadConfigHolder returns a holder that never reloads.
func NewStaticUploadConfigHolder(cfg UploadConfig) *UploadConfigHolder {
	holder := &UploadConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewUploadConfigHolder(log *zap.Logger) (*UploadConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("upload-config")

	v := viper.New()
	v.SetConfigName("upload")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/meterreadings")
	v.AddConfigPath(".")

	v.SetEnvPrefix("METERREADINGS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultUploadConfig()
	v.SetDefault("upload.maxUploadBytes", defaults.MaxUploadBytes)
	v.SetDefault("upload.insertBatchSize", defaults.InsertBatchSize)
	v.SetDefault("upload.maxRejectionsLogged", defaults.MaxRejectionsLogged)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileFound = false
	}

	var cfg UploadConfig
	if err := v.UnmarshalKey("upload", &cfg); err != nil {
		return nil, err
	}
	if err := validateUploadConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticUploadConfigHolder(cfg)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated UploadConfig
		if err := v.UnmarshalKey("upload", &updated); err != nil {
			log.Warn("reload failed", zap.Error(err))
			return
		}
		if err := validateUploadConfig(updated); err != nil {
			log.Warn("invalid config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *UploadConfigHolder) Get() UploadConfig {
	if h == nil {
		return DefaultUploadConfig()
	}
	return h.current.Load().(UploadConfig)
}

func validateUploadConfig(cfg UploadConfig) error {
	if cfg.MaxUploadBytes <= 0 {
		return errors.New("upload.maxUploadBytes must be positive")
	}
	if cfg.InsertBatchSize <= 0 {
		return errors.New("upload.insertBatchSize must be positive")
	}
	if cfg.MaxRejectionsLogged < 0 {
		return errors.New("upload.maxRejectionsLogged cannot be negative")
	}
	return nil
}
