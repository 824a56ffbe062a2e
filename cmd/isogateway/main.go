// Command isogateway runs the ISO 8583 POS-to-bank gateway and its
// administrative utilities.
package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/kevshake/isogateway/cmd/isogateway/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Error().Err(err).Msg("isogateway exited with an error")
		os.Exit(1)
	}
}
