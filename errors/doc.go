// Package errors provides standardized error handling patterns for serialframe components.
//
// # Overview
//
// The errors package implements a three-class error classification system:
// Transient (temporary, retryable), Invalid (bad input, non-retryable), and
// Fatal (unrecoverable, stop processing).
//
// Classification enables intelligent error handling without hardcoded error
// string matching: transports retry transient failures, construction rejects
// invalid configuration eagerly, and fatal errors stop the session.
//
// # Quick Start
//
// Return standard error variables for known conditions:
//
//	if len(delimiter) == 0 {
//	    return errors.ErrEmptyDelimiter
//	}
//
// Wrap errors with context for debugging:
//
//	if err := transport.Read(buf); err != nil {
//	    return errors.WrapTransient(err, "Framer", "Ingest", "source read")
//	}
//
// Check classification for retry logic:
//
//	if errors.IsTransient(err) {
//	    cfg := errors.DefaultRetryConfig()
//	    // retry with backoff
//	}
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// The Wrap family of functions applies this pattern while preserving error
// classification through the chain; errors.Is and errors.As work as usual.
//
// # Context Cancellation
//
// Context errors (context.DeadlineExceeded, context.Canceled) are classified
// as Transient so context-based timeouts are handled consistently with
// network timeouts.
package errors
