// Package cli holds helpers shared by the stage binaries.
package cli

import (
	"fmt"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"featuremill/internal/config"
	"featuremill/pkg/confkit"
)

// ConfigSummaryLines returns human readable lines describing the loaded
// configuration.
func ConfigSummaryLines(cfg *config.Config) []string {
	if cfg == nil {
		return []string{"Configuration: <nil>"}
	}

	lines := []string{
		fmt.Sprintf("Mode: %s", cfg.IngestionMode()),
		fmt.Sprintf("Kafka brokers: %s", brokers(cfg.Kafka.Brokers)),
		fmt.Sprintf("Postgres: %s", presence(cfg.Postgres.Enabled())),
		fmt.Sprintf("ClickHouse: %s", presence(cfg.ClickHouse.Enabled())),
		fmt.Sprintf("Redis: %s", presence(strings.TrimSpace(cfg.Redis.Host) != "")),
		fmt.Sprintf("Journal dir: %s", valueOr(cfg.JournalDir, "log-only")),
		sectionLine("Candles config", cfg.Candles),
		sectionLine("TA config", cfg.TA),
		sectionLine("Features config", cfg.Features),
		sectionLine("Signals config", cfg.Signals),
		sectionLine("Backfill config", cfg.Backfill),
	}
	if cfg.BackfillJobID != "" {
		lines = append(lines, fmt.Sprintf("Backfill job: %s", cfg.BackfillJobID))
	}
	return lines
}

// LogConfigSummary emits the configuration summary using logx.
func LogConfigSummary(cfg *config.Config) {
	lines := ConfigSummaryLines(cfg)
	if len(lines) == 0 {
		return
	}
	logx.Info("configuration summary")
	for _, line := range lines {
		logx.Infof("config • %s", line)
	}
}

func brokers(addrs []string) string {
	if len(addrs) == 0 {
		return "not configured"
	}
	return strings.Join(addrs, ",")
}

func presence(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func sectionLine[T any](name string, section confkit.Section[T]) string {
	switch {
	case strings.TrimSpace(section.File) != "":
		return fmt.Sprintf("%s: %s", name, section.File)
	case section.Value != nil:
		return fmt.Sprintf("%s: inline", name)
	default:
		return fmt.Sprintf("%s: not configured", name)
	}
}
