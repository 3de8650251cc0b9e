// Package errors provides standardized error handling patterns for the timer
// manager and its supporting packages.
//
// # Overview
//
// The errors package implements a three-class error classification system designed for
// distributed stream processing systems: Transient (temporary, retryable), Invalid
// (bad input, non-retryable), and Fatal (unrecoverable, stop processing).
//
// This classification enables intelligent error handling strategies throughout the
// module, allowing callers to make informed decisions about retries, graceful
// degradation, and failure recovery without hardcoded error string matching.
//
// # Error Classification
//
// Errors are automatically classified based on their type or content:
//
//   - Transient: Network timeouts, connection issues, temporary unavailability (retry recommended)
//   - Invalid: Malformed input, validation failures, bad configuration (do not retry)
//   - Fatal: Resource exhaustion, data corruption, unrecoverable states (stop processing)
//
// The classification system integrates seamlessly with Go's standard error handling patterns,
// supporting errors.Is(), errors.As(), and error wrapping chains.
//
// # Quick Start
//
// Use standard error variables for common conditions:
//
//	// Return standard error for known conditions
//	if !pool.initialized {
//	    return errors.ErrNotInitialized
//	}
//
// Wrap errors with context for debugging:
//
//	// Wrap third-party errors with component context
//	if _, err := net.Listen("tcp", addr); err != nil {
//	    return errors.Wrap(err, "Server", "Start", "bind listener")
//	}
//
// Check classification for retry logic:
//
//	// Make retry decisions based on error class
//	if err := operation(); err != nil {
//	    if errors.IsTransient(err) {
//	        // Retry with exponential backoff
//	        config := errors.DefaultRetryConfig()
//	        if config.ShouldRetry(err, attempt) {
//	            time.Sleep(config.BackoffDelay(attempt))
//	            // retry operation
//	        }
//	    } else if errors.IsFatal(err) {
//	        // Stop processing, escalate to operator
//	        log.Fatalf("Unrecoverable error: %v", err)
//	    }
//	}
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// This format enables consistent log parsing, debugging, and operational monitoring
// across every package in this module. The Wrap family of functions automatically
// applies this pattern while preserving error classification through the chain.
//
// Three wrapper functions provide classification-aware wrapping:
//
//	errors.WrapTransient(err, "Component", "Method", "action")  // For retryable errors
//	errors.WrapInvalid(err, "Component", "Method", "action")    // For validation errors
//	errors.WrapFatal(err, "Component", "Method", "action")      // For unrecoverable errors
//
// The generic Wrap() function preserves the original error's classification:
//
//	errors.Wrap(err, "Component", "Method", "action")  // Preserves original class
//
// # Standard Error Variables
//
// The package provides pre-defined error variables for common conditions, organized by category:
//
//   - Pool lifecycle: ErrAlreadyInitialized, ErrNotInitialized, ErrAlreadyStopped, ErrShuttingDown, ErrNotThreaded
//   - Timer source: ErrNoTimerSource, ErrSourceClosed, ErrInvalidResult
//   - Worker spawn: ErrSpawnHandshakeTimeout, ErrSpawnBudgetExhausted
//   - Configuration: ErrInvalidConfig, ErrMissingConfig, ErrConfigNotFound
//   - Resource / retry limits: ErrResourceExhausted, ErrMaxRetriesExceeded, ErrRetryTimeout
//
// Use these variables instead of creating custom error messages for consistency:
//
//	// Good - uses standard variable
//	if pool.shuttingDown {
//	    return errors.ErrShuttingDown
//	}
//
//	// Avoid - custom error message
//	if pool.shuttingDown {
//	    return errors.New("shutting down")
//	}
//
// # Retry Configuration
//
// The package includes built-in retry support with exponential backoff:
//
//	config := errors.DefaultRetryConfig()
//
//	for attempt := 0; attempt < config.MaxRetries; attempt++ {
//	    if err := operation(); err != nil {
//	        if !config.ShouldRetry(err, attempt) {
//	            return err  // Non-retryable or max attempts reached
//	        }
//	        delay := config.BackoffDelay(attempt)
//	        time.Sleep(delay)
//	        continue
//	    }
//	    return nil  // Success
//	}
//
// The retry configuration integrates with pkg/retry:
//
//	retryConfig := errorConfig.ToRetryConfig()
//	// Use with pkg/retry's Do/DoWithResult
//
// # Migration from fmt.Errorf
//
// Replace manual error wrapping with classification-aware wrappers:
//
//	// Before
//	return fmt.Errorf("component: operation failed: %w", err)
//
//	// After - preserves classification
//	return errors.Wrap(err, "Component", "method", "operation")
//
//	// After - sets classification
//	return errors.WrapTransient(err, "Component", "method", "operation")
//
// Replace string-based error inspection with classification checks:
//
//	// Before
//	if strings.Contains(err.Error(), "timeout") {
//	    // retry logic
//	}
//
//	// After
//	if errors.IsTransient(err) {
//	    // retry logic with proper backoff
//	}
//
// # Integration with errors.As/Is
//
// All error types support standard library error inspection:
//
//	// Check error classification
//	var ce *errors.ClassifiedError
//	if errors.As(err, &ce) {
//	    log.Printf("Component: %s, Class: %s", ce.Component, ce.Class)
//	}
//
//	// Check for specific standard errors
//	if errors.Is(err, errors.ErrRetryTimeout) {
//	    // Handle the retry-budget timeout specifically
//	}
//
//	// Classification is preserved through error chains
//	wrapped := errors.WrapTransient(errors.ErrRetryTimeout, "Server", "Start", "bind listener")
//	if errors.IsTransient(wrapped) {  // true - classification preserved
//	    // Retry logic
//	}
//
// # Context Cancellation
//
// Context errors (context.DeadlineExceeded, context.Canceled) are automatically
// classified as Transient, enabling consistent handling of context-based timeouts:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
//	defer cancel()
//
//	if err := operation(ctx); err != nil {
//	    if errors.IsTransient(err) {
//	        // Handles both network timeouts AND context timeouts
//	        log.Printf("Transient error (retry recommended): %v", err)
//	    }
//	}
//
// # Performance Considerations
//
// Error classification is efficient for error paths:
//
//   - Classification: ~40ns per operation (1 allocation) for known types
//   - Wrapping: ~107ns per operation (2 allocations)
//   - Memory: 80 bytes per wrapped error
//
// The overhead is negligible compared to the actual error condition being handled.
// Classification uses type assertions for known types (O(1)) and falls back to
// pattern matching for unknown errors (O(n) where n is pattern count).
//
// # Thread Safety
//
// All classification and wrapping operations are thread-safe. Error variables
// are immutable constants safe for concurrent access. The ClassifiedError type
// is safe to share across goroutines after creation.
//
// # Architecture Integration
//
// The errors package integrates with the rest of this module:
//
//   - timerpool: wraps its two fatal preconditions (nil TimerSource, Kick/Tick
//     before Init) with WrapFatal before panicking
//   - metric: wraps Prometheus registration conflicts, and a listener bind
//     that exhausts its retry budget, with WrapInvalid/WrapFatal
//   - retry: pkg/retry's Config is reachable via RetryConfig.ToRetryConfig
//
// # Design Philosophy
//
// The errors package follows these design principles:
//
//   - Classification over string matching: Errors are classified by type, not content
//   - Wrapping over replacement: Preserve original errors, add context via wrapping
//   - Standards over invention: Use Go's error handling idioms (Is/As/Unwrap)
//   - Simplicity over completeness: Three classes cover 95% of use cases
//   - Integration over isolation: Work seamlessly with standard library and other packages
//
// # Examples
//
// Listener bind with classification-aware retry:
//
//	package metric
//
//	import (
//	    "log"
//	    "net"
//	    "time"
//
//	    "github.com/c360/timermanager/errors"
//	)
//
//	func (s *Server) bindWithRetry(addr string) (net.Listener, error) {
//	    config := errors.DefaultRetryConfig()
//
//	    for attempt := 0; attempt < config.MaxRetries; attempt++ {
//	        l, err := net.Listen("tcp", addr)
//	        if err == nil {
//	            return l, nil
//	        }
//	        if errors.IsTransient(err) && config.ShouldRetry(err, attempt) {
//	            log.Printf("bind attempt %d failed, retrying...", attempt+1)
//	            time.Sleep(config.BackoffDelay(attempt))
//	            continue
//	        }
//	        return nil, errors.WrapFatal(err, "Server", "Start", "exhaust bind retries")
//	    }
//	    return nil, errors.WrapFatal(errors.ErrRetryTimeout, "Server", "Start", "exhaust bind retries")
//	}
//
// For more examples and detailed API documentation, see the package-level
// comments in errors.go.
package errors
