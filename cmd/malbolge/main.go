// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"log"
	"os"
)

func main() {
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
