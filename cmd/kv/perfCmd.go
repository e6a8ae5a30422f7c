package kv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"github.com/ValentinKolb/twinkle/cmd/util"
	"github.com/ValentinKolb/twinkle/rpc/common"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for twinkle servers",
		Long:    "",
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__test"
	perfLargeValueSizeKB = 32
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfSkip             = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 32, util.WrapString("How large the value for the set-large test should be (in KB, capped to fit into one datagram)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = viper.GetInt("keys")
	perfNumThreads = viper.GetInt("threads")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	if perfKeySpread < 1 {
		return fmt.Errorf("keys must be at least 1")
	}
	return nil
}

// perfCase is one benchmark, op is called with a key for every iteration
type perfCase struct {
	name    string
	prepare bool // set all keys before the benchmark
	op      func(i int, key []byte) error
}

// perfResult combines the result of testing.Benchmark with the latency distribution of the calls
type perfResult struct {
	bench  testing.BenchmarkResult
	timer  gometrics.Timer
	errors gometrics.Counter
}

func run(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for twinkle servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("staring tests...")

	largeValue := make([]byte, largeValueSize(fmt.Sprintf("%s-set-large-%d", perfKeyPrefix, perfKeySpread)))
	value := []byte("test")

	cases := []perfCase{
		{name: "set", op: func(_ int, key []byte) error {
			return rpcClient.Set(key, value)
		}},
		{name: "set-large", op: func(_ int, key []byte) error {
			return rpcClient.Set(key, largeValue)
		}},
		{name: "get", prepare: true, op: func(_ int, key []byte) error {
			_, err := rpcClient.Get(key)
			return err
		}},
		{name: "get-missing", op: func(_ int, key []byte) error {
			// the failure status is the expected answer here
			if _, err := rpcClient.Get(key); !errors.Is(err, common.ErrCommandFailed) {
				return err
			}
			return nil
		}},
		{name: "unset", prepare: true, op: func(_ int, key []byte) error {
			return rpcClient.Unset(key)
		}},
		{name: "ping", op: func(_ int, _ []byte) error {
			return rpcClient.Ping()
		}},
		{name: "mixed", prepare: true, op: func(i int, key []byte) error {
			var err error
			switch i % 4 {
			case 0: // set
				err = rpcClient.Set(key, value)
			case 1: // get
				_, err = rpcClient.Get(key)
				if errors.Is(err, common.ErrCommandFailed) {
					err = nil
				}
			case 2: // unset
				err = rpcClient.Unset(key)
			case 3: // ping
				err = rpcClient.Ping()
			}
			return err
		}},
	}

	// Create results map
	results := make(map[string]perfResult)

	for _, c := range cases {
		if shouldSkip(c.name) {
			printResult(c.name, perfResult{})
			continue
		}
		result := runCase(c, value)
		results[c.name] = result
		printResult(c.name, result)
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, util.GetClientConfig()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// runCase runs a single benchmark and records the latency of every call
func runCase(c perfCase, value []byte) perfResult {
	result := perfResult{
		timer:  gometrics.NewTimer(),
		errors: gometrics.NewCounter(),
	}

	// prepare keys
	getKey, iter := getKeys(c.name)

	result.bench = testing.Benchmark(func(b *testing.B) {
		if c.prepare {
			iter(func(k []byte) {
				if err := rpcClient.Set(k, value); err != nil {
					log.Printf("(%s) - error setting key: %v\n", c.name, err)
				}
			})
		}

		// cleanup
		b.Cleanup(func() {
			iter(func(k []byte) {
				if err := rpcClient.Unset(k); err != nil && !errors.Is(err, common.ErrCommandFailed) {
					log.Printf("(%s) - error removing key: %v\n", c.name, err)
				}
			})
		})

		b.SetParallelism(perfNumThreads)

		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				start := time.Now()
				err := c.op(counter, getKey(counter))
				result.timer.UpdateSince(start)
				if err != nil {
					result.errors.Inc(1)
					log.Printf("(%s) - error performing operation: %v\n", c.name, err)
				}
				counter++
			}
		})
	})

	return result
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// largeValueSize returns the configured size of the set-large value, capped so the frame fits into a datagram
func largeValueSize(longestKey string) int {
	size := perfLargeValueSizeKB * 1024
	limit := util.GetClientConfig().FrameLimit() - common.HeaderLen - common.KeyLenSize - len(longestKey)
	if size > limit {
		return limit
	}
	return size
}

// creates an array of test keys and functions to work with them
func getKeys(prefix string) (func(int) []byte, func(func([]byte))) {
	keys := make([][]byte, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = []byte(fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i))
	}

	// Function to get a key by index (with wraparound)
	getKey := func(i int) []byte {
		return keys[i%perfKeySpread]
	}

	// Function to iterate over all keys and apply a function to each
	iterateKeys := func(fn func([]byte)) {
		for _, key := range keys {
			fn(key)
		}
	}

	return getKey, iterateKeys
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result perfResult) {
	if result.bench.NsPerOp() == 0 || result.timer == nil {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.bench.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)
	p := result.timer.Snapshot().Percentiles([]float64{0.5, 0.99})

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\tp50=%s p99=%s\terrors=%d\n",
		test, nsPerOp, time.Duration(nsPerOp), opsPerSec,
		util.FormatDuration(time.Duration(p[0])), util.FormatDuration(time.Duration(p[1])),
		result.errors.Count())
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]perfResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	retry := config.Retry.Normalize()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "P50Ns", "P99Ns", "Errors",
		"Endpoint", "RetryAttempts", "RetryPolls", "RetryBase", "Transport",
		"Threads", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for test, result := range results {
		nsPerOp := math.Max(float64(result.bench.NsPerOp()), 1)
		opsPerSec := 1.0 / (nsPerOp / 1e9)
		p := result.timer.Snapshot().Percentiles([]float64{0.5, 0.99})

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			fmt.Sprintf("%.0f", p[0]),
			fmt.Sprintf("%.0f", p[1]),
			strconv.FormatInt(result.errors.Count(), 10),
			config.Endpoint,
			strconv.Itoa(retry.MaxAttempts),
			strconv.Itoa(retry.Polls),
			retry.Base.String(),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
