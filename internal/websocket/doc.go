// Package websocket implements the broadcast registry for wall viewers.
//
// A single actor goroutine owns the session map (no mutexes); each viewer
// session has its own bounded queue and writer goroutine. Broadcast never
// blocks: a viewer whose queue is full at enqueue time is disconnected
// rather than allowed to apply backpressure to everyone else.
package websocket
