// Package main is the entry point for the keychain CLI.
package main

import (
	"os"

	"github.com/Lisboaa111/Nillion-Keychain/cmd/keychainctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
