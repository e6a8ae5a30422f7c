package util

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"strings"
	"testing"
	"time"
)

func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 30)
	for _, line := range strings.Split(WrapString(text), "\n") {
		if len(line) > Wrap {
			t.Errorf("line longer than %d characters: %q", Wrap, line)
		}
	}

	if got := WrapString("short text"); got != "short text" {
		t.Errorf("WrapString() = %q", got)
	}
}

func TestGetClientConfigFromFlags(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cmd := &cobra.Command{Use: "test"}
	SetupClientFlags(cmd)
	if err := cmd.ParseFlags([]string{
		"--endpoint", "10.0.0.1:4000",
		"--retry-attempts", "3",
		"--retry-base", "2ms",
		"--socket-read-buffer", "64",
	}); err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		t.Fatalf("failed to bind flags: %v", err)
	}

	conf := GetClientConfig()
	if conf.Endpoint != "10.0.0.1:4000" {
		t.Errorf("Endpoint = %q", conf.Endpoint)
	}
	if conf.Retry.MaxAttempts != 3 || conf.Retry.Polls != 5 || conf.Retry.Base != 2*time.Millisecond {
		t.Errorf("Retry = %+v", conf.Retry)
	}
	if conf.Socket.ReadBufferSize != 64*1024 || conf.Socket.WriteBufferSize != 0 {
		t.Errorf("Socket = %+v", conf.Socket)
	}
}

func TestGetClientConfigFromEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("TWINKLE_ENDPOINT", "192.168.1.10:3000")
	t.Setenv("TWINKLE_RETRY_POLLS", "7")
	InitClientConfig()

	conf := GetClientConfig()
	if conf.Endpoint != "192.168.1.10:3000" {
		t.Errorf("Endpoint = %q", conf.Endpoint)
	}
	if conf.Retry.Polls != 7 {
		t.Errorf("Retry.Polls = %d", conf.Retry.Polls)
	}
}

func TestGetTransport(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	if _, err := GetTransport(); err != nil {
		t.Errorf("default transport: %v", err)
	}

	viper.Set("transport", "tcp")
	if _, err := GetTransport(); err == nil {
		t.Error("expected error for unknown transport")
	}
}
