package logger

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ensureInstanceID: явный id, иначе POD_NAME/HOSTNAME с коротким суффиксом.
func ensureInstanceID(v string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}

	host := os.Getenv("POD_NAME")
	if host == "" {
		host, _ = os.Hostname()
	}
	if host == "" {
		host = "local"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]

	return host + "-" + suffix
}

func commonAttrs(cfg Config) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("service", cfg.Service),
		slog.String("env", string(cfg.Env)),
		slog.String("instance_id", cfg.InstanceID),
		slog.Int("pid", os.Getpid()),
		slog.Time("started_at", time.Now().UTC()),
	}
	if cfg.Version != "" {
		attrs = append(attrs, slog.String("version", cfg.Version))
	}

	return attrs
}
