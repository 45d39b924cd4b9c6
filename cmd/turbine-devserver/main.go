// SPDX-License-Identifier: Apache-2.0

// Command turbine-devserver runs the IR development server over
// stdio, for editors that want live parse/validate diagnostics and a
// "run this pass" command against open .ir files.
package main

import (
	"log"
	"os"

	"turbine/internal/devserver"
)

func main() {
	s := devserver.NewServer(true)

	log.Println("Starting turbine IR dev server...")
	if err := s.RunStdio(); err != nil {
		log.Println("Error starting turbine IR dev server:", err)
		os.Exit(1)
	}
}
