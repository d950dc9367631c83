package errors

// ErrorCategory provides broad classification of errors by subsystem.
type ErrorCategory string

const (
	// CategoryConfig represents user-facing configuration and input errors.
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"
	CategoryNotFound   ErrorCategory = "not_found"

	// CategoryTransition represents source transition failures.
	CategoryTransition ErrorCategory = "transition"
	CategoryRouting    ErrorCategory = "routing"

	// CategoryProcess represents child process supervision errors.
	CategoryProcess ErrorCategory = "process"
	CategoryService ErrorCategory = "service"
	CategoryDevice  ErrorCategory = "device"

	// CategoryNetwork represents external system integration errors.
	CategoryNetwork ErrorCategory = "network"
	CategoryFeed    ErrorCategory = "feed"

	// CategoryRuntime represents runtime and infrastructure errors.
	CategoryRuntime  ErrorCategory = "runtime"
	CategoryDaemon   ErrorCategory = "daemon"
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates the impact level of an error.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution completely
	SeverityError   ErrorSeverity = "error"   // Fails the current operation
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
	SeverityInfo    ErrorSeverity = "info"    // Informational, no impact
)

// RetryStrategy indicates whether and how an operation may be retried.
type RetryStrategy string

const (
	RetryNever      RetryStrategy = "never"       // Permanent failure, don't retry
	RetryImmediate  RetryStrategy = "immediate"   // Retry immediately
	RetryBackoff    RetryStrategy = "backoff"     // Retry with exponential backoff
	RetryUserAction RetryStrategy = "user_action" // Needs operator intervention first
)

// ErrorContext carries structured key/value context attached to an error.
type ErrorContext map[string]any

// Set returns a new ErrorContext with the key set.
func (c ErrorContext) Set(key string, value any) ErrorContext {
	out := make(ErrorContext, len(c)+1)
	for k, v := range c {
		out[k] = v
	}
	out[key] = value
	return out
}

// Merge returns a new ErrorContext combining both contexts; other wins on conflict.
func (c ErrorContext) Merge(other ErrorContext) ErrorContext {
	out := make(ErrorContext, len(c)+len(other))
	for k, v := range c {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}
