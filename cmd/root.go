package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tpcware/memgrid/cmd/bench"
	"github.com/tpcware/memgrid/cmd/serve"
	"github.com/tpcware/memgrid/cmd/util"
)

const (
	Version = "0.3.1"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "memgrid",
		Short: "thread-per-core transport engine",
		Long: fmt.Sprintf(`memgrid (v%s)

A thread-per-core transport engine for a distributed in-memory data grid:
per-core reactor event loops, non-blocking sockets and parallel per-core
client channels with partition-hash routing.`, Version),
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of memgrid",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("memgrid v%s\n", Version)
		},
	}
)

func init() {
	// initialize env based config
	cobra.OnInitialize(util.InitEnvConfig)

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(bench.BenchCmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
