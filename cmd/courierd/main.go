// courierd is the long-lived messenger agent. It polls the mailbox relay
// for encrypted blobs, maintains the local message store, and serves the
// control socket for an interactive front-end.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/courier"
	"github.com/opd-ai/courier/storage"
)

func main() {
	dataDir := flag.String("data-dir", "", "Data directory (default: platform data dir, or $COURIER_DATA_DIR)")
	serverURL := flag.String("server-url", "", "Relay base URL override for this run")
	genKeys := flag.Bool("g", false, "Generate an identity keypair and exit")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level %q: %v\n", *logLevel, err)
		os.Exit(1)
	}
	logrus.SetLevel(level)

	dir := *dataDir
	if dir == "" {
		dir, err = storage.DataDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to resolve data directory: %v\n", err)
			os.Exit(1)
		}
	}

	if *genKeys {
		id, err := courier.GenerateIdentity(dir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate identity: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Identity generated in %s\n", dir)
		fmt.Printf("  encrypt_pk: %s\n", id.EncryptPKHex())
		fmt.Printf("  sign_pk:    %s\n", id.SignPKHex())
		os.Exit(0)
	}

	agent, err := courier.New(&courier.Options{
		DataDir:   dir,
		ServerURL: *serverURL,
		ExportDir: exportDir(),
		Notify:    notify,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize agent: %v\n", err)
		os.Exit(1)
	}

	if err := agent.Start(); err != nil {
		agent.Stop()
		fmt.Fprintf(os.Stderr, "Failed to start agent: %v\n", err)
		os.Exit(1)
	}

	haltCh := make(chan os.Signal, 1)
	signal.Notify(haltCh, os.Interrupt, syscall.SIGTERM)
	sig := <-haltCh

	logrus.WithFields(logrus.Fields{
		"function": "main",
		"signal":   sig.String(),
	}).Info("Shutting down")
	agent.Stop()
}

// exportDir resolves where contact cards land for the user to share.
func exportDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, "Downloads")
}

// notify surfaces background arrivals when no front-end is attached.
func notify(newCount, totalUnread int) {
	logrus.WithFields(logrus.Fields{
		"function": "notify",
		"new":      newCount,
		"unread":   totalUnread,
	}).Info("New messages waiting")
}
