package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// DataDirEnv overrides the app data directory when set.
const DataDirEnv = "COURIER_DATA_DIR"

// DataDir resolves the agent's data directory: the DataDirEnv override if
// present, otherwise a "courier" directory under the OS user config dir.
func DataDir() (string, error) {
	if custom := os.Getenv(DataDirEnv); custom != "" {
		return custom, nil
	}

	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not determine app data directory: %w", err)
	}
	return filepath.Join(base, "courier"), nil
}

// EnsureDirs creates the data directory layout used by the stores.
func EnsureDirs(dir string) error {
	for _, sub := range []string{dir, filepath.Join(dir, "keys"), filepath.Join(dir, "data")} {
		if err := os.MkdirAll(sub, 0o700); err != nil {
			return fmt.Errorf("failed to create %s: %w", sub, err)
		}
	}
	return nil
}

func identityPath(dir string) string {
	return filepath.Join(dir, "keys", "keypair.json")
}

func configPath(dir string) string {
	return filepath.Join(dir, "config.json")
}

func peersPath(dir string) string {
	return filepath.Join(dir, "peers.json")
}

// MessageDBPath is where the bbolt message store lives inside the data dir.
func MessageDBPath(dir string) string {
	return filepath.Join(dir, "data", "messages.db")
}

// SocketPath is the well-known control channel address inside the data dir.
func SocketPath(dir string) string {
	return filepath.Join(dir, "courier.sock")
}
