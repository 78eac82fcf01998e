package errors

// ErrorBuilder assembles a ClassifiedError. Category defaults for fatality
// and retry come from the category table and can be overridden.
type ErrorBuilder struct {
	err ClassifiedError
}

// NewError starts a builder for category with message.
func NewError(category ErrorCategory, message string) *ErrorBuilder {
	t := traitsOf(category)
	return &ErrorBuilder{err: ClassifiedError{
		category:  category,
		fatal:     t.fatal,
		retryable: t.retryable,
		message:   message,
	}}
}

// WrapError starts a builder that wraps err.
func WrapError(err error, category ErrorCategory, message string) *ErrorBuilder {
	return NewError(category, message).WithCause(err)
}

// WithCause sets the underlying error.
func (b *ErrorBuilder) WithCause(cause error) *ErrorBuilder {
	b.err.cause = cause
	return b
}

// WithContext adds a context key-value pair.
func (b *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	b.err.context = b.err.context.Set(key, value)
	return b
}

// Fatal marks the error as one that should stop the process.
func (b *ErrorBuilder) Fatal() *ErrorBuilder {
	b.err.fatal = true
	return b
}

// Retryable marks the error as worth retrying.
func (b *ErrorBuilder) Retryable() *ErrorBuilder {
	b.err.retryable = true
	return b
}

// Build returns the ClassifiedError. The builder can be reused.
func (b *ErrorBuilder) Build() *ClassifiedError {
	e := b.err
	e.context = b.err.context.Clone()
	return &e
}

func ConfigError(message string) *ErrorBuilder     { return NewError(CategoryConfig, message) }
func ValidationError(message string) *ErrorBuilder { return NewError(CategoryValidation, message) }
func ConnectionError(message string) *ErrorBuilder { return NewError(CategoryConnection, message) }
func EncodingError(message string) *ErrorBuilder   { return NewError(CategoryEncoding, message) }
func QueryError(message string) *ErrorBuilder      { return NewError(CategoryQuery, message) }
func ClosedError(message string) *ErrorBuilder     { return NewError(CategoryClosed, message) }
func RuntimeError(message string) *ErrorBuilder    { return NewError(CategoryRuntime, message) }
func InternalError(message string) *ErrorBuilder   { return NewError(CategoryInternal, message) }

// Wrap returns a copy of sentinel carrying cause and optional key/value
// context pairs. The result still matches sentinel under errors.Is.
func Wrap(sentinel *ClassifiedError, cause error, kv ...any) *ClassifiedError {
	e := *sentinel
	e.cause = cause
	e.context = sentinel.context.Clone()
	for i := 0; i+1 < len(kv); i += 2 {
		if key, ok := kv[i].(string); ok {
			e.context = e.context.Set(key, kv[i+1])
		}
	}
	return &e
}
