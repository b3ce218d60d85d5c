// Package commands implements the meetscribe command line.
package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/maastricht-university/meeting-transcription/config"
)

var (
	// Global flags
	cfgFile  string
	logLevel string
	logJSON  bool
)

var rootCmd = &cobra.Command{
	Use:   "meetscribe",
	Short: "Live meeting transcription with speaker attribution",
	Long: `meetscribe transcribes a meeting as it happens and labels every line
with the speaker it most likely came from.

Audio comes from the microphone, the shared display audio or stdin. Speech is
recognized by a streaming websocket service or by uploading fixed windows to
a REST transcription service. Speakers are told apart by coarse spectral
features only, so labels are "Speaker 1", "Speaker 2" and so on.

Configuration is read from --config, or from config/$CONFIG_ENV/config.yaml,
and can be overridden with MEETSCRIBE_* environment variables, e.g.
MEETSCRIBE_RECOGNIZER_API_KEY.

Examples:
  # Transcribe the microphone until Ctrl-C
  meetscribe listen

  # Transcribe a meeting shared on screen for 30 minutes
  meetscribe listen --source display --duration 1800

  # Pipe raw 16 kHz mono PCM16 in
  ffmpeg -i call.m4a -ac 1 -ar 16000 -f s16le - | meetscribe listen --source stdin`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command line.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default config/$CONFIG_ENV/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log as JSON")

	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the configuration, applies the global flags and sets up
// logging.
func loadConfig(cmd *cobra.Command) (*config.Root, error) {
	conf, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("log-level") {
		conf.Pipeline.LogLvl = logLevel
	}
	if cmd.Flags().Changed("log-json") {
		conf.Pipeline.LogJSON = logJSON
	}
	if err := conf.SetupLogging(os.Stderr); err != nil {
		return nil, err
	}
	return conf, nil
}
