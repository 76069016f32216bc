package bench

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	cmdUtil "github.com/tpcware/memgrid/cmd/util"
	"github.com/tpcware/memgrid/tpc/client"
	"github.com/tpcware/memgrid/tpc/common"
	"github.com/tpcware/memgrid/tpc/engine"
	"github.com/tpcware/memgrid/tpc/protocol"
)

var (
	benchPorts       []int
	benchDurationSec = 10
	benchPayloadSize = 128

	BenchCmd = &cobra.Command{
		Use:     "bench",
		Short:   "Echo round-trip benchmark against a memgrid server",
		Long:    `Establish one TPC channel per server port and measure echo round-trip latency over each channel concurrently.`,
		PreRunE: processBenchConfig,
		RunE:    run,
	}
)

func init() {
	cmdUtil.SetupClientFlags(BenchCmd)

	key := "ports"
	BenchCmd.PersistentFlags().String(key, "11000", cmdUtil.WrapString("Comma-separated list of TPC ports of the target server (e.g. 11000,11001,11002)"))

	key = "duration"
	BenchCmd.PersistentFlags().Int(key, 10, cmdUtil.WrapString("Benchmark duration in seconds"))

	key = "payload"
	BenchCmd.PersistentFlags().Int(key, 128, cmdUtil.WrapString("Echo payload size in bytes"))
}

func processBenchConfig(cmd *cobra.Command, _ []string) error {
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	benchPorts = nil
	for _, part := range strings.Split(viper.GetString("ports"), ",") {
		port, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || port <= 0 {
			return fmt.Errorf("invalid port %q", part)
		}
		benchPorts = append(benchPorts, port)
	}

	benchDurationSec = viper.GetInt("duration")
	if benchDurationSec <= 0 {
		return fmt.Errorf("duration must be positive, got %d", benchDurationSec)
	}
	benchPayloadSize = viper.GetInt("payload")
	if benchPayloadSize <= 0 {
		return fmt.Errorf("payload must be positive, got %d", benchPayloadSize)
	}

	return nil
}

func run(_ *cobra.Command, _ []string) error {
	clientConfig := cmdUtil.GetClientConfig()
	if err := clientConfig.Validate(); err != nil {
		return err
	}
	common.InitLoggers(clientConfig.LogLevel)

	fmt.Println("memgrid echo benchmark")
	fmt.Println(clientConfig.String())
	fmt.Printf("  %-22s: %v\n", "Ports", benchPorts)
	fmt.Printf("  %-22s: %ds\n", "Duration", benchDurationSec)
	fmt.Printf("  %-22s: %d bytes\n", "Payload", benchPayloadSize)
	fmt.Println()

	host, _, err := net.SplitHostPort(clientConfig.Endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint %q: %v", clientConfig.Endpoint, err)
	}

	e, err := engine.NewEngine(common.EngineConfig{LogLevel: clientConfig.LogLevel})
	if err != nil {
		return fmt.Errorf("cannot start engine: %v", err)
	}
	defer e.Close()

	// one response stream per channel, keyed by the dialed address
	responses := newResponseRegistry()
	creator := client.NewChannelCreator(e, *clientConfig, responses.handlerFor)

	timer := gometrics.NewTimer()
	payload := make([]byte, benchPayloadSize)
	deadline := time.Now().Add(time.Duration(benchDurationSec) * time.Second)

	var wg sync.WaitGroup
	errs := make(chan error, len(benchPorts))

	for _, port := range benchPorts {
		wg.Add(1)
		go func(port int) {
			defer wg.Done()
			if err := benchChannel(creator, responses, host, port, payload, deadline, timer); err != nil {
				errs <- fmt.Errorf("port %d: %v", port, err)
			}
		}(port)
	}
	wg.Wait()

	select {
	case err := <-errs:
		return err
	default:
	}

	printResults(timer)
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// responseRegistry routes decoded echo frames back to the benchmarking
// goroutine of their channel
type responseRegistry struct {
	mu      sync.Mutex
	streams map[string]chan []byte
}

func newResponseRegistry() *responseRegistry {
	return &responseRegistry{streams: make(map[string]chan []byte)}
}

// handlerFor is the read handler factory handed to the channel creator. It
// runs once per dialed channel.
func (r *responseRegistry) handlerFor(remote string) engine.ReadHandler {
	stream := make(chan []byte, 1024)
	r.mu.Lock()
	r.streams[remote] = stream
	r.mu.Unlock()

	var dec protocol.Decoder
	return func(p []byte) {
		dec.Feed(p)
		for {
			frame, ok, err := dec.Next()
			if err != nil || !ok {
				return
			}
			stream <- frame.Payload
		}
	}
}

func (r *responseRegistry) stream(remote string) chan []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.streams[remote]
}

// benchChannel runs synchronous echo round trips over one channel until
// the deadline
func benchChannel(
	creator client.ChannelCreator,
	responses *responseRegistry,
	host string,
	port int,
	payload []byte,
	deadline time.Time,
	timer gometrics.Timer,
) error {
	channel, err := creator(host, port)
	if err != nil {
		return err
	}
	defer channel.Close()

	if !channel.Write(protocol.EncodeHandshake(clientID())) {
		return fmt.Errorf("handshake rejected")
	}

	stream := responses.stream(net.JoinHostPort(host, strconv.Itoa(port)))
	if stream == nil {
		return fmt.Errorf("no response stream registered")
	}

	frame := protocol.EncodeUnfragmented(payload)
	for time.Now().Before(deadline) {
		start := time.Now()
		if !channel.Write(frame) {
			return fmt.Errorf("write rejected")
		}
		select {
		case <-stream:
			timer.UpdateSince(start)
		case <-time.After(10 * time.Second):
			return fmt.Errorf("timed out waiting for the echo")
		}
	}
	return nil
}

var (
	benchID     uuid.UUID
	benchIDOnce sync.Once
)

// clientID returns the identity used for all benchmark channels
func clientID() uuid.UUID {
	benchIDOnce.Do(func() { benchID = uuid.New() })
	return benchID
}

func printResults(timer gometrics.Timer) {
	snapshot := timer.Snapshot()
	percentiles := snapshot.Percentiles([]float64{0.5, 0.9, 0.99, 0.999})

	fmt.Println("Results:")
	fmt.Printf("  %-22s: %d\n", "Round trips", snapshot.Count())
	fmt.Printf("  %-22s: %.0f ops/sec\n", "Throughput", snapshot.RateMean())
	fmt.Printf("  %-22s: %s\n", "Mean latency", time.Duration(int64(snapshot.Mean())))
	fmt.Printf("  %-22s: %s\n", "p50", time.Duration(int64(percentiles[0])))
	fmt.Printf("  %-22s: %s\n", "p90", time.Duration(int64(percentiles[1])))
	fmt.Printf("  %-22s: %s\n", "p99", time.Duration(int64(percentiles[2])))
	fmt.Printf("  %-22s: %s\n", "p99.9", time.Duration(int64(percentiles[3])))
}
