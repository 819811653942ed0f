// courier-keygen creates the identity keypair for a data directory and
// optionally prints a shareable contact card.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/opd-ai/courier"
	"github.com/opd-ai/courier/contact"
	"github.com/opd-ai/courier/storage"
)

func main() {
	dataDir := flag.String("data-dir", "", "Data directory (default: platform data dir, or $COURIER_DATA_DIR)")
	name := flag.String("name", "", "Also print a contact card under this display name")
	flag.Parse()

	dir := *dataDir
	if dir == "" {
		var err error
		dir, err = storage.DataDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to resolve data directory: %v\n", err)
			os.Exit(1)
		}
	}

	id, err := courier.GenerateIdentity(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to generate identity: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Identity written to %s\n", dir)
	fmt.Printf("  encrypt_pk: %s\n", id.EncryptPKHex())
	fmt.Printf("  sign_pk:    %s\n", id.SignPKHex())

	if *name != "" {
		card, err := contact.ExportCard(*name, id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to build contact card: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(card)
	}
}
