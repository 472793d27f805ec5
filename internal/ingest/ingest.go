// Package ingest turns a stream of JSON-line events into engine offers.
// The host station process pipes loop packets and archive records to the
// service's stdin; this is the injection point between the two processes.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/gauge-data-service/internal/models"
	"github.com/kjstillabower/gauge-data-service/internal/observability"
)

// Offerer accepts inbound items without blocking.
type Offerer interface {
	OfferSample(models.Sample)
	OfferSummary(models.ArchiveSummary)
}

// envelope is one inbound line. Type selects the payload shape.
type envelope struct {
	Type         string                        `json:"type"`
	Timestamp    int64                         `json:"timestamp"`
	Units        string                        `json:"units"`
	Observations map[string]*float64           `json:"observations"`
	PeriodStart  int64                         `json:"periodStart"`
	PeriodEnd    int64                         `json:"periodEnd"`
	Aggregates   map[string]envelopeAggregates `json:"aggregates"`
}

type envelopeAggregates struct {
	Min     *float64 `json:"min"`
	Max     *float64 `json:"max"`
	Avg     *float64 `json:"avg"`
	MinTime *int64   `json:"minTime"`
	MaxTime *int64   `json:"maxTime"`
}

// Run reads newline-delimited events from r until EOF or ctx cancellation.
// Malformed lines are counted and skipped, never fatal.
func Run(ctx context.Context, r io.Reader, dst Offerer, logger *zap.Logger) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if !dispatch(line, dst, logger) {
			observability.MalformedItemsTotal.Inc()
		}
	}
	return scanner.Err()
}

func dispatch(line []byte, dst Offerer, logger *zap.Logger) bool {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		logger.Warn("skipping unparsable event", zap.Error(err))
		return false
	}

	switch env.Type {
	case "sample":
		if env.Timestamp == 0 {
			logger.Warn("skipping sample without timestamp")
			return false
		}
		dst.OfferSample(models.Sample{
			Timestamp:    time.Unix(env.Timestamp, 0),
			Units:        models.UnitSystem(env.Units),
			Observations: env.Observations,
		})
	case "summary":
		if env.PeriodStart == 0 || env.PeriodEnd == 0 {
			logger.Warn("skipping summary without period bounds")
			return false
		}
		obs := make(map[string]models.Agg, len(env.Aggregates))
		for name, agg := range env.Aggregates {
			a := models.Agg{Min: agg.Min, Max: agg.Max, Avg: agg.Avg}
			if agg.MinTime != nil {
				t := time.Unix(*agg.MinTime, 0)
				a.MinTime = &t
			}
			if agg.MaxTime != nil {
				t := time.Unix(*agg.MaxTime, 0)
				a.MaxTime = &t
			}
			obs[name] = a
		}
		dst.OfferSummary(models.ArchiveSummary{
			PeriodStart:  time.Unix(env.PeriodStart, 0),
			PeriodEnd:    time.Unix(env.PeriodEnd, 0),
			Units:        models.UnitSystem(env.Units),
			Observations: obs,
		})
	default:
		logger.Warn("skipping event with unknown type", zap.String("type", env.Type))
		return false
	}
	return true
}
