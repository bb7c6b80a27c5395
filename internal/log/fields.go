package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldRuleID      = "rule_id"
	FieldRuleName    = "rule_name"
	FieldRunID       = "run_id"
	FieldOccurrence  = "occurrence"
	FieldInterval    = "interval"
	FieldOutcome     = "outcome"
	FieldReason      = "reason"
	FieldAmountCents = "amount_cents"
	FieldTransaction = "transaction_id"
)

// Components defines standard component names
const (
	ComponentApp          = "app"
	ComponentHTTP         = "http"
	ComponentStorage      = "storage"
	ComponentAMQP         = "amqp"
	ComponentWorker       = "worker"
	ComponentOrchestrator = "orchestrator"
	ComponentExecutor     = "executor"
	ComponentRunner       = "runner"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithRule adds rule identification fields
func (f LogFields) WithRule(id int64, name string) LogFields {
	f[FieldRuleID] = id
	f[FieldRuleName] = name
	return f
}

// WithRun adds the execution run id
func (f LogFields) WithRun(runID string) LogFields {
	f[FieldRunID] = runID
	return f
}

// WithPayment adds the fields of one executed payment
func (f LogFields) WithPayment(transactionID, amountCents int64, occurrence string) LogFields {
	f[FieldTransaction] = transactionID
	f[FieldAmountCents] = amountCents
	f[FieldOccurrence] = occurrence
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
