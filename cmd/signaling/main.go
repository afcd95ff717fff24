// Package main is the entry point of the consultation signaling server.
package main

import (
	"log"

	"github.com/mossy-p/consult-signaling/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
