package observers

import (
	"context"
	"sort"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/yashrajoria/catalog-seeder/models"
	pkgaws "github.com/yashrajoria/catalog-seeder/pkg/aws"
)

// MetricsObserver reports each run and its per-section counts to CloudWatch.
type MetricsObserver struct {
	metrics *pkgaws.MetricsClient
}

func NewMetricsObserver(m *pkgaws.MetricsClient) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveRun(ctx context.Context, rec *models.RunRecord) error {
	if o.metrics == nil || !o.metrics.IsEnabled() {
		return nil
	}
	return o.metrics.PutMetricBatch(ctx, Datums(rec))
}

// Datums builds the data points for one run, sections in name order.
func Datums(rec *models.RunRecord) []types.MetricDatum {
	runDims := map[string]string{"State": rec.State, "Trigger": rec.Trigger}
	data := []types.MetricDatum{
		pkgaws.Datum(pkgaws.MetricSeedRuns, 1, types.StandardUnitCount, runDims),
		pkgaws.Datum(pkgaws.MetricSeedRunDuration, float64(rec.DurationMs), types.StandardUnitMilliseconds, runDims),
	}

	if rec.Report != nil {
		for _, s := range rec.Report.Sections {
			planned := s.WillCreate + s.WillUpdate + s.WillDelete
			data = append(data, pkgaws.Datum(pkgaws.MetricSeedPlannedWrites, float64(planned),
				types.StandardUnitCount, map[string]string{"Section": s.Name}))
		}
	}

	if rec.Outcome != nil {
		names := make([]string, 0, len(rec.Outcome.Sections))
		for name := range rec.Outcome.Sections {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			wr := rec.Outcome.Sections[name]
			dims := map[string]string{"Section": name}
			data = append(data,
				pkgaws.Datum(pkgaws.MetricSeedDocsUpserted, float64(wr.Upserted), types.StandardUnitCount, dims),
				pkgaws.Datum(pkgaws.MetricSeedDocsDeleted, float64(wr.Deleted), types.StandardUnitCount, dims),
			)
		}
	}
	return data
}
