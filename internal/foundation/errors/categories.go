package errors

import (
	"maps"
	"net/http"
)

// ErrorCategory groups errors by how callers react to them.
type ErrorCategory string

const (
	// CategoryConfig covers unreadable or invalid configuration files.
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"
	CategoryNotFound   ErrorCategory = "not_found"

	// CategoryConnection covers failures reaching or keeping a backend.
	CategoryConnection ErrorCategory = "connection"

	// CategoryEncoding covers payloads that could not be encoded or decoded.
	CategoryEncoding ErrorCategory = "encoding"
	CategoryQuery    ErrorCategory = "query"

	// CategoryClosed covers use of a store or subscription after Close.
	CategoryClosed   ErrorCategory = "closed"
	CategoryRuntime  ErrorCategory = "runtime"
	CategoryInternal ErrorCategory = "internal"
)

// traits is how a category is presented and handled by default.
type traits struct {
	exitCode   int
	httpStatus int
	retryable  bool
	fatal      bool
}

var categoryTraits = map[ErrorCategory]traits{
	CategoryValidation: {exitCode: 2, httpStatus: http.StatusBadRequest},
	CategoryNotFound:   {exitCode: 4, httpStatus: http.StatusNotFound},
	CategoryConfig:     {exitCode: 7, httpStatus: http.StatusBadRequest, fatal: true},
	CategoryConnection: {exitCode: 8, httpStatus: http.StatusBadGateway, retryable: true},
	CategoryEncoding:   {exitCode: 11, httpStatus: http.StatusUnprocessableEntity},
	CategoryQuery:      {exitCode: 11, httpStatus: http.StatusBadRequest},
	CategoryClosed:     {exitCode: 12, httpStatus: http.StatusServiceUnavailable},
	CategoryRuntime:    {exitCode: 12, httpStatus: http.StatusServiceUnavailable, fatal: true},
	CategoryInternal:   {exitCode: 10, httpStatus: http.StatusInternalServerError, fatal: true},
}

// unclassifiedTraits apply to errors outside the category table.
var unclassifiedTraits = traits{exitCode: 1, httpStatus: http.StatusInternalServerError}

func traitsOf(c ErrorCategory) traits {
	if t, ok := categoryTraits[c]; ok {
		return t
	}
	return unclassifiedTraits
}

// ErrorContext carries structured key/value details for logs and responses.
type ErrorContext map[string]any

// Set adds or updates a context value.
func (c ErrorContext) Set(key string, value any) ErrorContext {
	if c == nil {
		c = make(ErrorContext)
	}
	c[key] = value
	return c
}

// Get retrieves a context value.
func (c ErrorContext) Get(key string) (any, bool) {
	value, exists := c[key]
	return value, exists
}

// Clone returns an independent copy of the context.
func (c ErrorContext) Clone() ErrorContext {
	if c == nil {
		return nil
	}
	return maps.Clone(c)
}
