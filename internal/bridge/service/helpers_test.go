package service_test

import (
	"io"
	"log"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gateline/bridge/internal/bridge/metrics"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func testMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}
