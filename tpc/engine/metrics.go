package engine

import "github.com/VictoriaMetrics/metrics"

// Engine-wide counters, exposed through the default VictoriaMetrics set
// (see the /metrics endpoint of the serve command).
var (
	metricTasksProcessed  = metrics.NewCounter("memgrid_engine_tasks_processed_total")
	metricTaskPanics      = metrics.NewCounter("memgrid_engine_task_panics_total")
	metricSocketsOpened   = metrics.NewCounter("memgrid_engine_sockets_opened_total")
	metricSocketsClosed   = metrics.NewCounter("memgrid_engine_sockets_closed_total")
	metricBytesRead       = metrics.NewCounter("memgrid_engine_bytes_read_total")
	metricBytesWritten    = metrics.NewCounter("memgrid_engine_bytes_written_total")
	metricWritesRejected  = metrics.NewCounter("memgrid_engine_writes_rejected_total")
	metricSocketsAccepted = metrics.NewCounter("memgrid_engine_sockets_accepted_total")
)
