package util

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tpcware/memgrid/tpc/common"
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

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupClientFlags adds the common client connection flags to a command
func SetupClientFlags(cmd *cobra.Command) {
	key := "endpoint"
	cmd.PersistentFlags().String(key, "localhost:5701", WrapString("The address of the memgrid server (host:port)"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The dial timeout in seconds, used for the logical connection and every TPC channel attempt"))

	key = "connect-workers"
	cmd.PersistentFlags().Int(key, 4, WrapString("Size of the worker pool running the TPC channel connection attempts"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "info", WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// InitEnvConfig initializes configuration from environment variables
func InitEnvConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("memgrid")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	return &common.ClientConfig{
		Endpoint:       viper.GetString("endpoint"),
		TimeoutSecond:  viper.GetInt("timeout"),
		ConnectWorkers: viper.GetInt("connect-workers"),
		LogLevel:       viper.GetString("log-level"),
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
