package observability

// Metric name prefixes
const (
	MetricPrefix = "raffler"
)

// Metric names
const (
	// Entry metrics
	EntriesCreatedTotal = MetricPrefix + ".entries.created_total"

	// Draw metrics
	DrawsCompletedTotal = MetricPrefix + ".draws.completed_total"

	// Payout metrics
	PayoutsTotal   = MetricPrefix + ".payouts.total"
	PayoutDuration = MetricPrefix + ".payouts.duration"

	// Chain metrics
	ChainRPCErrorsTotal = MetricPrefix + ".chain.rpc_errors_total"

	// Database metrics
	DatabaseQueryDuration = MetricPrefix + ".database.query_duration"
)

// Label keys
const (
	LabelMode      = "mode"
	LabelStatus    = "status"
	LabelMethod    = "method"
	LabelOperation = "operation"
)
