package logger

import (
	"log/slog"
	"os"
	"sync/atomic"
)

var def atomic.Pointer[slog.Logger]

// Init настраивает slog по конфигу и делает его логгером по умолчанию.
func Init(cfg Config) *slog.Logger {
	if cfg.Env == "" {
		cfg.Env = DetectEnv()
	}
	if cfg.Service == "" {
		cfg.Service = "realtime-service"
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	cfg.InstanceID = ensureInstanceID(cfg.InstanceID)

	if cfg.Backend == "" {
		if cfg.Env == EnvDev {
			cfg.Backend = BackendStd
		} else {
			cfg.Backend = BackendZap
		}
	}

	var h slog.Handler
	switch cfg.Backend {
	case BackendZap:
		h = newZapHandler(cfg)
	default:
		h = newStdHandler(cfg)
	}

	base := slog.New(h.WithAttrs(commonAttrs(cfg)))
	slog.SetDefault(base)
	def.Store(base)

	return base
}

func L() *slog.Logger {
	if l := def.Load(); l != nil {
		return l
	}

	return Init(Config{})
}
