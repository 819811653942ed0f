package contact

// Peer is one known remote identity. The key fields hold lowercase hex;
// QueueID is derived from the two parties' encryption public keys and is
// identical on both sides of the conversation. Peers are immutable after
// import.
type Peer struct {
	Name      string `json:"name"`
	EncryptPK string `json:"encrypt_pk"`
	SignPK    string `json:"sign_pk"`
	QueueID   string `json:"queue_id"`
}
