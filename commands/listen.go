package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/maastricht-university/meeting-transcription/config"
	"github.com/maastricht-university/meeting-transcription/export"
	"github.com/maastricht-university/meeting-transcription/orchestrator"
)

var (
	listenSource   string
	listenMode     string
	listenDuration int
	listenOutputs  string
	listenQuiet    bool
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Transcribe a live meeting",
	Long: `Start a session and transcribe until interrupted.

Each final recognition result is attributed to a speaker and printed as it
arrives. When the session ends the transcript is written to
<outputs>/session_<id>/ as meeting-transcript.txt, transcript.md and
session.json.`,
	Args: cobra.NoArgs,
	RunE: runListen,
}

func init() {
	listenCmd.Flags().StringVar(&listenSource, "source", "", "audio source: mic, display or stdin")
	listenCmd.Flags().StringVar(&listenMode, "mode", "", "recognizer: stream or chunk")
	listenCmd.Flags().IntVar(&listenDuration, "duration", 0, "stop after this many seconds (0 runs until interrupted)")
	listenCmd.Flags().StringVar(&listenOutputs, "outputs", "", "output directory (default from config)")
	listenCmd.Flags().BoolVarP(&listenQuiet, "quiet", "q", false, "do not print the live transcript")
}

func applyListenFlags(cmd *cobra.Command, conf *config.Root) error {
	if cmd.Flags().Changed("source") {
		conf.Capture.Source = listenSource
	}
	if cmd.Flags().Changed("mode") {
		conf.Recognizer.Mode = listenMode
	}
	if cmd.Flags().Changed("outputs") {
		conf.Paths.Outputs = listenOutputs
	}
	return conf.Validate()
}

func runListen(cmd *cobra.Command, args []string) error {
	conf, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyListenFlags(cmd, conf); err != nil {
		return err
	}

	var opts []orchestrator.Option
	if !listenQuiet {
		p := export.NewPresenter(cmd.OutOrStdout(), "meetscribe: listening, Ctrl-C to stop")
		opts = append(opts, orchestrator.WithObserver(p.Observe))
	}
	session, err := orchestrator.NewSession(conf, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if listenDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.DurSeconds(listenDuration))
		defer cancel()
	}

	report, err := session.Run(ctx)
	if report != nil && report.Dir != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "\nsaved %d entries to %s\n", len(report.Bundle.Transcript), report.Dir)
	}
	if err != nil {
		logrus.WithError(err).Error("session ended with errors")
		return err
	}
	return nil
}
