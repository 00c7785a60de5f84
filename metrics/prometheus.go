package metrics

import (
	"sync"

	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
)

var initOnce sync.Once

// InitPrometheus installs a prometheus-backed otel meter provider and
// starts runtime instrumentation. It is safe to call more than once; the
// exporter registers against the default registry only the first time.
func InitPrometheus() (err error) {
	initOnce.Do(func() {
		var exporter *prometheus.Exporter
		exporter, err = prometheus.New()
		if err != nil {
			err = errors.Wrap(err, "failed to create prometheus exporter")
			return
		}

		otel.SetMeterProvider(metric.NewMeterProvider(metric.WithReader(exporter)))

		if err = runtime.Start(); err != nil {
			err = errors.Wrap(err, "failed to start runtime instrumentation")
		}
	})

	return err
}
