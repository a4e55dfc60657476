// Package retry provides exponential backoff retry logic for transient failures.
//
// [WithExponentialBackoff] retries an operation with configurable max
// retries, initial delay, maximum delay and multiplier. Errors wrapped with
// [Fatal] stop the loop immediately. It is used for tracker API calls.
package retry
