// Package tracing wraps OpenTelemetry so the boot sequence and the request
// loop can open spans without importing the SDK directly. Without Init,
// spans are no-ops.
package tracing
