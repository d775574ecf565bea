package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/homestead-network/go-homestead/signing"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Printf("Usage: %v <path/to/output_dir>\n", os.Args[0])
		os.Exit(1)
	}

	dir := os.Args[1]
	if err := os.MkdirAll(dir, 0o700); err != nil {
		fmt.Printf("failed creating output dir: %v\n", err)
		os.Exit(1)
	}
	signer, err := signing.NewEdSigner(signing.ToFile(filepath.Join(dir, "identity.key")))
	if err != nil {
		fmt.Printf("failed generating identity: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("address: %s\nnode id: %s\n", signer.Address(), signer.NodeID())
}
