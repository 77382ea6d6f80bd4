// Package relay runs the periodic poll-and-broadcast loop that feeds the wall.
package relay
