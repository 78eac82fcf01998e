// Package errors provides the classified errors used across binlog.
//
// Every error carries an ErrorCategory. The category decides the CLI exit
// code, the HTTP status and whether the error is retryable or fatal by
// default. Stores declare sentinels once and attach causes with Wrap, which
// keeps errors.Is matching:
//
//	var ErrConnection = errors.ConnectionError("backend unreachable").Build()
//
//	if err := nc.Flush(); err != nil {
//		return errors.Wrap(ErrConnection, err, "stream", name)
//	}
package errors
