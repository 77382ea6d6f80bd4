// Package config loads and validates environment-based configuration.
package config
