// Package control implements the local protocol between the long-lived
// Courier agent and an at-most-one interactive front-end.
//
// The wire format is newline-delimited JSON with a "type" discriminator:
// each line is exactly one Command (front-end to agent) or one Event (agent
// to front-end). The agent serves connections over a unix domain socket and
// tracks a single live session; a new connection silently replaces the
// registered event sender (last-connection-wins), and closing the socket is
// an implicit detach.
package control
