// Package services defines shared utilities consumed by the extraction
// pipeline and external integrations.
//
// Key responsibilities:
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent manifest statuses.
//   - The Executor abstraction that makes external command invocation
//     testable (used by the rclone transfer client).
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error handling, observability, retries) stays uniform.
package services
