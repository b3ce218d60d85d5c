package config

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// SetupLogging configures the standard logrus logger from the pipeline
// section. Logs go to stderr so stdout stays free for the transcript.
func (r *Root) SetupLogging(w io.Writer) error {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := logrus.ParseLevel(r.Pipeline.LogLvl)
	if err != nil {
		return fmt.Errorf("pipeline.log_level: %w", err)
	}

	logrus.SetOutput(w)
	logrus.SetLevel(lvl)
	if r.Pipeline.LogJSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05"})
	}
	return nil
}
