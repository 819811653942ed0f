package contact

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/courier/crypto"
)

// Registry errors.
var (
	// ErrDuplicatePeer reports an Add or Import whose encryption key is
	// already registered.
	ErrDuplicatePeer = errors.New("contact already exists")

	// ErrSelfContact reports an attempt to import the local identity as a
	// peer.
	ErrSelfContact = errors.New("cannot import your own contact")

	// ErrPeerNotFound reports a queue id with no registered peer.
	ErrPeerNotFound = errors.New("peer not found")
)

// Store is the external persistence collaborator backing the registry. The
// registry never caches: the single agent process and the store's own
// consistency are the only synchronization needed.
type Store interface {
	LoadPeers() ([]Peer, error)
	SavePeer(Peer) error
}

// Registry maps known peers to their conversation queue ids.
type Registry struct {
	store         Store
	selfEncryptPK string // hex, used to reject self-imports
}

// NewRegistry creates a registry over the given store. selfEncryptPKHex is
// the local identity's encryption public key; it may be empty when no
// identity is loaded, which disables the self-import check.
func NewRegistry(store Store, selfEncryptPKHex string) *Registry {
	return &Registry{store: store, selfEncryptPK: selfEncryptPKHex}
}

// List returns all known peers in store order.
func (r *Registry) List() ([]Peer, error) {
	return r.store.LoadPeers()
}

// Add registers a new peer. It rejects a peer whose encryption key is
// already present or equals the local identity's own key.
func (r *Registry) Add(peer Peer) error {
	if r.selfEncryptPK != "" && peer.EncryptPK == r.selfEncryptPK {
		return ErrSelfContact
	}

	existing, err := r.store.LoadPeers()
	if err != nil {
		return fmt.Errorf("failed to load peers: %w", err)
	}
	for _, p := range existing {
		if p.EncryptPK == peer.EncryptPK {
			return ErrDuplicatePeer
		}
	}

	if err := r.store.SavePeer(peer); err != nil {
		return fmt.Errorf("failed to save peer: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Add",
		"name":     peer.Name,
		"queue_id": peer.QueueID,
	}).Info("Peer registered")

	return nil
}

// FindByQueue returns the peer sharing the given conversation queue id.
func (r *Registry) FindByQueue(queueID string) (*Peer, error) {
	peers, err := r.store.LoadPeers()
	if err != nil {
		return nil, fmt.Errorf("failed to load peers: %w", err)
	}
	for i := range peers {
		if peers[i].QueueID == queueID {
			return &peers[i], nil
		}
	}
	return nil, ErrPeerNotFound
}

// Import parses a contact card, validates it against the local identity, and
// registers the resulting peer. The queue id is derived locally; it never
// travels in the card.
func (r *Registry) Import(cardJSON string) (Peer, error) {
	card, err := ParseCard(cardJSON)
	if err != nil {
		return Peer{}, err
	}

	if r.selfEncryptPK == "" {
		return Peer{}, errors.New("identity not loaded")
	}

	peer := Peer{
		Name:      card.Name,
		EncryptPK: card.EncryptPK,
		SignPK:    card.SignPK,
		QueueID:   crypto.ConversationID(r.selfEncryptPK, card.EncryptPK),
	}

	if err := r.Add(peer); err != nil {
		return Peer{}, err
	}
	return peer, nil
}
