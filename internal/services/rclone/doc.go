// Package rclone wraps the external rclone copy command used to fetch
// archives from remote storage. The transfer mechanism itself is opaque:
// capstan invokes the binary, applies a bounded retry policy with a fixed
// delay, and verifies the expected file landed locally.
package rclone
