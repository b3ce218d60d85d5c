// Command meetscribe transcribes live meetings and attributes each line to a
// speaker.
package main

import (
	"fmt"
	"os"

	"github.com/maastricht-university/meeting-transcription/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
