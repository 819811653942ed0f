// Package mailbox implements the client for the untrusted store-and-forward
// relay. The relay only stores, lists, and deletes opaque base64 blobs per
// queue id; it cannot read or forge messages and does not authenticate
// callers. Delivery semantics on top of this at-least-once store are the
// delivery engine's job, not this package's.
package mailbox
