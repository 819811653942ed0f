package storage

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/opd-ai/courier/contact"
)

// PeerFile is a whole-document JSON store for the peer list. It implements
// contact.Store.
type PeerFile struct {
	dir string
}

// NewPeerFile creates a peer store rooted at the given data directory.
func NewPeerFile(dir string) *PeerFile {
	return &PeerFile{dir: dir}
}

// LoadPeers reads the full peer list; a missing file is an empty list.
func (pf *PeerFile) LoadPeers() ([]contact.Peer, error) {
	data, err := os.ReadFile(peersPath(pf.dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read peers: %w", err)
	}

	var peers []contact.Peer
	if err := json.Unmarshal(data, &peers); err != nil {
		return nil, fmt.Errorf("failed to parse peers: %w", err)
	}
	return peers, nil
}

// SavePeer appends a peer and rewrites the whole document.
func (pf *PeerFile) SavePeer(peer contact.Peer) error {
	peers, err := pf.LoadPeers()
	if err != nil {
		return err
	}
	peers = append(peers, peer)

	data, err := json.MarshalIndent(peers, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize peers: %w", err)
	}
	if err := os.WriteFile(peersPath(pf.dir), data, 0o600); err != nil {
		return fmt.Errorf("failed to write peers: %w", err)
	}
	return nil
}
