// Package domain holds the core value types and interfaces shared across the
// relay: image references, the wall message envelope, and the source/wall
// contracts the relay loop is wired against.
package domain
