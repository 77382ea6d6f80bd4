// Package server exposes the HTTP surface: the /ws viewer endpoint plus
// health, metrics, and version endpoints.
package server
