// Command vehicle-safety watches speed, door and seatbelt inputs, raises
// safety alerts and drives the door locks over MQTT.
package main

import (
	"os"

	"github.com/htbalar/vehicle-safety/internal/logger"
)

func main() {
	defer logger.Sync()

	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
