package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/maastricht-university/meeting-transcription/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		cfgFile, logLevel, logJSON, configForce = "", "", false, false
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if out != "meetscribe 0.1.0\n" {
		t.Errorf("version output = %q", out)
	}
}

func TestConfigInitAndShow(t *testing.T) {
	chdir(t, t.TempDir())
	path := filepath.Join("conf", "meet.yaml")

	out, err := execute(t, "config", "init", path)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "wrote "+path) {
		t.Errorf("init output = %q", out)
	}

	if _, err := execute(t, "config", "init", path); err == nil {
		t.Error("second init without --force should fail")
	}
	if _, err := execute(t, "config", "init", "--force", path); err != nil {
		t.Errorf("init --force: %v", err)
	}

	t.Setenv("MEETSCRIBE_RECOGNIZER_LANGUAGE_CODE", "nl-NL")
	out, err = execute(t, "--config", path, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "language_code: nl-NL") {
		t.Errorf("env override missing from:\n%s", out)
	}
	if !strings.Contains(out, "expiry: 1.5s") {
		t.Errorf("attribution defaults missing from:\n%s", out)
	}
}

func TestConfigShowMissingFile(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "config", "show")
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestApplyListenFlags(t *testing.T) {
	defer func() { listenSource, listenMode, listenOutputs = "", "", "" }()

	if err := listenCmd.Flags().Set("source", "stdin"); err != nil {
		t.Fatal(err)
	}
	if err := listenCmd.Flags().Set("outputs", "out"); err != nil {
		t.Fatal(err)
	}
	conf := config.Default()
	if err := applyListenFlags(listenCmd, conf); err != nil {
		t.Fatal(err)
	}
	if conf.Capture.Source != "stdin" || conf.Paths.Outputs != "out" {
		t.Errorf("flags not applied: source=%q outputs=%q", conf.Capture.Source, conf.Paths.Outputs)
	}

	if err := listenCmd.Flags().Set("mode", "batch"); err != nil {
		t.Fatal(err)
	}
	if err := applyListenFlags(listenCmd, config.Default()); err == nil {
		t.Error("expected validation error for unknown mode")
	}
}

func TestMain(m *testing.M) {
	os.Unsetenv("CONFIG_ENV")
	os.Exit(m.Run())
}
