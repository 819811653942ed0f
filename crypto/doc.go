// Package crypto implements the cryptographic core of the Courier messenger.
//
// It covers identity keypairs (X25519 for encryption, Ed25519 for signatures),
// the sign-then-encrypt message envelope exchanged over the mailbox relay, and
// deterministic conversation id derivation. All operations are stateless; no
// transport or storage knowledge lives here.
//
// Example:
//
//	id, err := crypto.GenerateIdentity()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	envelope, err := crypto.Seal([]byte("hi"), peerPK, id)
package crypto
