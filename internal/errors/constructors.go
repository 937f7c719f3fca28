package errors

// Convenience functions for common error patterns

// Config errors

func ConfigRequired(field string) *PagePubError {
	return New(CategoryConfig, SeverityFatal, "required configuration missing").
		WithContext("field", field)
}

func ValidationFailed(field, reason string) *PagePubError {
	return New(CategoryValidation, SeverityWarning, "validation failed").
		WithContext("field", field).
		WithContext("reason", reason)
}

// Pipeline errors

// StepFailed annotates a fatal pipeline error with the step it occurred in.
func StepFailed(step string, cause error) *PagePubError {
	return Wrap(cause, CategoryPublish, SeverityFatal, "publish step failed").
		WithContext("step", step)
}

// UpsertExhausted signals that the optimistic-concurrency retry budget for a
// document path ran out. It names the path and attempt count so the failure
// is never a silent no-op.
func UpsertExhausted(path string, attempts int) *PagePubError {
	return New(CategoryPublish, SeverityFatal, "upsert retry budget exhausted").
		WithContext("path", path).
		WithContext("attempts", attempts)
}

// Forge errors

func ForgeAuthError(cause error) *PagePubError {
	return Wrap(cause, CategoryAuth, SeverityFatal, "forge authentication failed")
}

func ForgeNetworkError(operation string, cause error) *PagePubError {
	return WrapRetryable(cause, CategoryNetwork, SeverityWarning, "forge network error").
		WithContext("operation", operation)
}

// Generation errors

func GenerationError(cause error) *PagePubError {
	return Wrap(cause, CategoryGenerate, SeverityFatal, "code generation failed")
}

// Internal errors

func InternalError(message string, cause error) *PagePubError {
	return Wrap(cause, CategoryInternal, SeverityFatal, message)
}
