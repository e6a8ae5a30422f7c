package util

import (
	"fmt"
	"github.com/ValentinKolb/twinkle/rpc/common"
	"github.com/ValentinKolb/twinkle/rpc/transport"
	"github.com/ValentinKolb/twinkle/rpc/transport/udp"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"strings"
	"time"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupClientFlags adds the connection and retry flags to a command
func SetupClientFlags(cmd *cobra.Command) {
	key := "endpoint"
	cmd.PersistentFlags().String(key, "127.0.0.1:3000", WrapString("The address of the twinkle server (host:port)"))

	key = "retry-attempts"
	cmd.PersistentFlags().Int(key, common.DefaultMaxAttempts, WrapString("How many times a request is sent before it times out"))

	key = "retry-polls"
	cmd.PersistentFlags().Int(key, common.DefaultPolls, WrapString("How many times the client checks for a response after each send"))

	key = "retry-base"
	cmd.PersistentFlags().Duration(key, common.DefaultBackoffBase, WrapString("The first backoff delay, doubled after every check"))

	key = "max-frame-size"
	cmd.PersistentFlags().Int(key, common.MaxFrameSize, WrapString("The largest request frame the client will send (in bytes)"))

	key = "socket-write-buffer"
	cmd.PersistentFlags().Int(key, 0, WrapString("The size of the socket write buffer (in KB, 0 keeps the os default)"))

	key = "socket-read-buffer"
	cmd.PersistentFlags().Int(key, 0, WrapString("The size of the socket read buffer (in KB, 0 keeps the os default)"))

	key = "metrics"
	cmd.PersistentFlags().Bool(key, false, WrapString("Print client metrics in the Prometheus text format after the command"))
}

// InitClientConfig initializes configuration from environment variables
func InitClientConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("twinkle")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	conf := &common.ClientConfig{
		Endpoint:     viper.GetString("endpoint"),
		MaxFrameSize: viper.GetInt("max-frame-size"),
		Retry: common.RetryPolicy{
			MaxAttempts: viper.GetInt("retry-attempts"),
			Polls:       viper.GetInt("retry-polls"),
			Base:        viper.GetDuration("retry-base"),
		},
		Socket: common.SocketConf{
			WriteBufferSize: viper.GetInt("socket-write-buffer") * 1024,
			ReadBufferSize:  viper.GetInt("socket-read-buffer") * 1024,
		},
		LogLevel: viper.GetString("log-level"),
	}

	return conf
}

// GetTransport creates transport based on configuration
func GetTransport() (transport.IClientTransport, error) {
	switch viper.GetString("transport") {
	case "udp", "":
		return udp.NewUDPClientTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	return viper.BindPFlags(cmd.InheritedFlags())
}

// FormatDuration rounds d for human readable output
func FormatDuration(d time.Duration) string {
	return d.Round(time.Microsecond).String()
}
