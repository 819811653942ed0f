// Package contact implements the peer registry for the Courier messenger.
//
// A peer is a named remote identity plus the deterministic queue id shared
// with it. The registry keeps peers keyed by queue id on top of an external
// peer store and enforces the import rules: no duplicate keys, no importing
// your own identity.
package contact
