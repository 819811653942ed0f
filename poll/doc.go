// Package poll implements the delivery engine of the Courier agent: the
// loop that turns the relay's at-least-once blob store into at-most-one
// local delivery.
//
// The engine runs in one of two modes. While an interactive session is
// attached it polls on an adaptive interval that resets to its minimum on
// activity and doubles on silence; with no session attached it polls on a
// fixed slow cadence and accumulates an unread counter instead. The sleep
// between cycles is interruptible: attach, detach, and reset signals cancel
// it and restart the loop immediately.
package poll
