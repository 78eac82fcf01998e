package binlog

import (
	"git.home.luguber.info/inful/binlog/internal/foundation/errors"
)

// Sentinel errors returned by every backend. Backends wrap the underlying
// driver error, so match with errors.Is and unwrap for the cause.
var (
	// ErrConnection reports that the backing service or file could not be
	// reached, or that a live connection was lost.
	ErrConnection = errors.ConnectionError("store connection failed").Build()

	// ErrEncoding reports a payload that could not be encoded or decoded.
	ErrEncoding = errors.EncodingError("entry encoding failed").Build()

	// ErrBadRange reports a range whose start lies after its end, or an empty
	// range with an exclusive bound.
	ErrBadRange = errors.QueryError("invalid range bounds").Build()

	// ErrQuery reports a failed statement against the durable store.
	ErrQuery = errors.QueryError("store query failed").Build()

	// ErrClosed is returned by operations on a closed store or subscription.
	ErrClosed = errors.ClosedError("store is closed").Build()

	// ErrNotSubscribeable is returned when a subscription is requested from a
	// store that only supports range queries.
	ErrNotSubscribeable = errors.ValidationError("store does not support subscriptions").Build()

	// ErrNotRangeable is returned when a range query is requested from a
	// store that only supports subscriptions.
	ErrNotRangeable = errors.ValidationError("store does not support range queries").Build()
)
