// Command keygen pre-generates the RS256 signing key the emulator
// loads on startup, so the same key (and therefore the same JWKS) can
// be committed or mounted ahead of time instead of being generated on
// first run.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cognitoemu/cognito-emu/internal/keystore"
)

func main() {
	path := flag.String("out", "./data/signing-key.pem", "path to write the PEM-encoded RSA private key")
	kid := flag.String("kid", "sig-1", "key id to report back (informational; the PEM file stores no kid, keystore.Load uses the kid its caller passes)")
	flag.Parse()

	if _, err := os.Stat(*path); err == nil {
		fmt.Printf("refusing to overwrite existing key at %s\n", *path)
		os.Exit(1)
	}

	if dir := filepath.Dir(*path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Printf("failed to create %s: %v\n", dir, err)
			os.Exit(1)
		}
	}

	ks, err := keystore.Load(*path, *kid)
	if err != nil {
		fmt.Printf("failed to generate key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("wrote signing key to %s (kid=%s)\n", *path, ks.Kid())
}
