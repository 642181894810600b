// Package retry provides simple exponential backoff retry logic for transient failures.
//
// # Overview
//
// This package offers a minimal retry mechanism with exponential backoff, designed
// to handle transient failures in transport binding, dialing, and publishing.
//
// # Core Functions
//
//   - Do: Execute function with retry and exponential backoff
//   - DoWithResult: Execute function with retry, returns both result and error
//
// # Configuration Presets
//
//   - DefaultConfig(): 3 attempts, 100ms-5s delay (normal operations)
//   - Quick(): 10 attempts, 50ms-1s delay (component startup)
//   - Persistent(): 30 attempts, 200ms-10s delay (critical resources)
//
// # Usage
//
// Basic retry with defaults:
//
//	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
//	    return transport.Start(ctx)
//	})
//
// Retry with result:
//
//	conn, err := retry.DoWithResult(ctx, retry.Quick(), func() (*nats.Conn, error) {
//	    return nats.Connect(url)
//	})
//
// # Design Philosophy
//
// This package is intentionally minimal: no circuit breakers, no metrics
// collection, no error classification (the errors package decides what to
// retry). Just exponential backoff with jitter.
//
// All retry operations respect context cancellation, both during operation
// execution and during backoff delay. All functions are safe for concurrent
// use.
package retry
