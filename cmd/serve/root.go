package serve

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/VictoriaMetrics/metrics"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	cmdUtil "github.com/tpcware/memgrid/cmd/util"
	"github.com/tpcware/memgrid/tpc/common"
	"github.com/tpcware/memgrid/tpc/engine"
	"github.com/tpcware/memgrid/tpc/server"
)

var (
	serveCmdConfig = &common.EngineConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the memgrid TPC server",
		Long:    `Start the memgrid TPC server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is MEMGRID_<flag> (e.g. MEMGRID_REACTORS=8)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(initConfig)

	// add flags
	key := "reactors"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Number of reactor event loops to run. Each reactor owns one OS thread and one listen port. 0 means one per CPU core"))

	key = "pin-reactors"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Pin each reactor thread to the CPU core matching its index (Linux only)"))

	key = "tpc-port-base"
	ServeCmd.PersistentFlags().Int(key, 11000, cmdUtil.WrapString("First TPC listen port; reactor i listens on port base+i. 0 lets every reactor pick an ephemeral port"))

	key = "write-queue-capacity"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Maximum number of frames buffered per socket before writes are rejected. 0 uses the default"))

	key = "receive-buffer"
	ServeCmd.PersistentFlags().Int(key, 32, cmdUtil.WrapString("Size of the per-socket receive buffer in KB"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Optional address for the Prometheus /metrics endpoint (e.g. 0.0.0.0:9090). Empty disables it"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and
// environment variables and converts them to the engine configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	serveCmdConfig.Reactors = viper.GetInt("reactors")
	serveCmdConfig.PinReactors = viper.GetBool("pin-reactors")
	serveCmdConfig.TPCPortBase = viper.GetInt("tpc-port-base")
	serveCmdConfig.WriteQueueCapacity = viper.GetInt("write-queue-capacity")
	serveCmdConfig.ReceiveBufferSize = viper.GetInt("receive-buffer") * 1024
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	return serveCmdConfig.Validate()
}

// run starts the memgrid server and blocks until a shutdown signal arrives
func run(_ *cobra.Command, _ []string) error {
	common.InitLoggers(serveCmdConfig.LogLevel)

	fmt.Println("Starting memgrid server")
	fmt.Println(serveCmdConfig.String())

	e, err := engine.NewEngine(*serveCmdConfig)
	if err != nil {
		return fmt.Errorf("cannot start engine: %v", err)
	}
	defer e.Close()

	srv, err := server.NewServer(e, *serveCmdConfig, nil)
	if err != nil {
		return fmt.Errorf("cannot start server: %v", err)
	}
	defer srv.Close()

	if endpoint := viper.GetString("metrics-endpoint"); endpoint != "" {
		go serveMetrics(endpoint)
	}

	fmt.Printf("Serving TPC channels on ports %v\n", srv.Ports())

	// block until interrupted
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	fmt.Println("Shutting down")
	return nil
}

// serveMetrics exposes the engine counters in Prometheus format
func serveMetrics(endpoint string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w, true)
	})
	if err := http.ListenAndServe(endpoint, mux); err != nil {
		fmt.Printf("Metrics endpoint failed: %v\n", err)
	}
}

// initConfig reads in the env files and ENV variables if set.
func initConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("memgrid")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}
