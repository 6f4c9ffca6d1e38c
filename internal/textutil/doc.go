// Package textutil turns arbitrary catalog text into filesystem-safe path
// segments.
//
// Sanitize is total and idempotent: its output only contains ASCII letters,
// digits, spaces, underscores and hyphens, never has leading, trailing or
// doubled spaces, is at most MaxSegmentLength bytes, and is never empty.
package textutil
