package log

// Common field names for structured logging.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldOperation  = "operation"

	FieldMonth          = "month"
	FieldResourceID     = "resource_id"
	FieldZone           = "zone"
	FieldTag            = "tag"
	FieldUtilizationPct = "utilization_pct"
	FieldBatchCount     = "batch_count"
	FieldRevenue        = "revenue"
)

// Standard component names.
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentScheduling = "scheduling"
	ComponentLayout     = "layout"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentLedger     = "ledger"
	ComponentCache      = "cache"
)
