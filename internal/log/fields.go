package log

// Common field names for structured logging
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
	FieldActor      = "actor"
	FieldYear       = "year"
	FieldMonth      = "month"
	FieldBudgetID   = "budget_id"
	FieldEntryID    = "entry_id"
	FieldCategory   = "category"
	FieldAmount     = "amount_cents"
	FieldStatus     = "status"
	FieldWriteKind  = "write_kind"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentStorage  = "storage"
	ComponentPeriods  = "periods"
	ComponentBudgets  = "budgets"
	ComponentLedger   = "ledger"
	ComponentAMQP     = "amqp"
	ComponentWorker   = "worker"
	ComponentExport   = "export"
	ComponentReceipts = "receipts"
)

// Operations defines standard operation names
const (
	OpCreate    = "create"
	OpRead      = "read"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpList      = "list"
	OpClose     = "close"
	OpReopen    = "reopen"
	OpAuthorize = "authorize"
	OpReconcile = "reconcile"
	OpExport    = "export"
	OpExtract   = "extract"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
)
