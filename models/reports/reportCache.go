package reports

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mmdatafocus/boarding_backend/config"
	"github.com/mmdatafocus/boarding_backend/models"
	"github.com/mmdatafocus/boarding_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("boarding-backend")

func reportCacheEnabled() bool {
	v := strings.TrimSpace(os.Getenv("ENABLE_REPORT_CACHE"))
	return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes") || strings.EqualFold(v, "on")
}

func reportCacheTTL() time.Duration {
	// Env: REPORT_CACHE_TTL_SECONDS (default 120s)
	return time.Duration(config.IntFromEnv("REPORT_CACHE_TTL_SECONDS", 120)) * time.Second
}

func reportSlowMs() int64 {
	// Env: REPORT_SLOW_MS (default 500ms)
	return int64(config.IntFromEnv("REPORT_SLOW_MS", 500))
}

func logSlowReport(ctx context.Context, name string, started time.Time, extra map[string]any) {
	d := time.Since(started)
	if d.Milliseconds() < reportSlowMs() {
		return
	}
	houseId, _ := utils.GetBoardingHouseIdFromContext(ctx)
	cid, _ := utils.GetCorrelationIdFromContext(ctx)
	config.GetLogger().WithFields(logrus.Fields{
		"report":            name,
		"ms":                d.Milliseconds(),
		"boarding_house_id": houseId,
		"correlation_id":    cid,
		"extra":             extra,
	}).Warn("slow report")
}

// reportScope is the boarding house a report covers; 0 consolidates every house.
func reportScope(ctx context.Context) int {
	houseId, _ := utils.GetBoardingHouseIdFromContext(ctx)
	return houseId
}

func startReportSpan(ctx context.Context, name string, houseId int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "report."+name, trace.WithAttributes(attribute.Int("boarding_house_id", houseId)))
}

func reportCacheKey(name string, houseId int, params ...any) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		switch v := p.(type) {
		case time.Time:
			parts = append(parts, v.Format(utils.DateLayout))
		default:
			parts = append(parts, fmt.Sprint(v))
		}
	}
	return "Report:" + name + ":" + strconv.Itoa(houseId) + ":" + models.ReportCacheVersion(houseId) + ":" + strings.Join(parts, ":")
}

// cachedReport wraps a report builder with tracing, slow logging and (when enabled) the redis cache.
// Keys carry the ledger version of the house so any posting invalidates them.
func cachedReport[T any](ctx context.Context, name string, build func(ctx context.Context, houseId int) (*T, error), params ...any) (*T, error) {
	houseId := reportScope(ctx)
	ctx, span := startReportSpan(ctx, name, houseId)
	defer span.End()
	started := time.Now()
	defer logSlowReport(ctx, name, started, map[string]any{"params": params})

	var key string
	if reportCacheEnabled() {
		key = reportCacheKey(name, houseId, params...)
		var cached T
		if ok, err := config.GetRedisObject(key, &cached); err == nil && ok {
			span.SetAttributes(attribute.Bool("cache_hit", true))
			return &cached, nil
		}
	}

	result, err := build(ctx, houseId)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if key != "" {
		if err := config.SetRedisObject(key, result, reportCacheTTL()); err != nil {
			config.LogError(config.GetLogger(), "reportCache.go", "cachedReport", "SetRedisObject", key, err)
		}
	}
	return result, nil
}
