// Package server implements the challenge room hub and its HTTP surface.
//
// A Hub accepts WebSocket clients, authenticates them, and moves them in and
// out of per-challenge rooms. Chat messages and progress updates are stored
// first and then broadcast to the room. A single Run loop registers and
// unregisters connections and drives the heartbeat that reaps silent peers.
package server
