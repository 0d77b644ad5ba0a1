package kv

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ValentinKolb/tKV/cmd/util"
	"github.com/ValentinKolb/tKV/lib/db"
	"github.com/ValentinKolb/tKV/lib/kvstore"
	"github.com/ValentinKolb/tKV/lib/tensor"
	"github.com/ValentinKolb/tKV/rpc/client"
	"github.com/ValentinKolb/tKV/rpc/common"
	"github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:   "perf",
		Short: "Performance testing tool for tKV coordinators",
		Long: `Starts one worker per thread. Every worker pushes a tensor of ones to the same fresh key and
pulls it afterwards. The tool verifies that every element of the result equals threads*pushes.`,
		Args:    cobra.NoArgs,
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfNumThreads = 10
	perfPushes     = 1000
	perfShape      tensor.Shape
	perfKey        db.Key
)

func init() {
	key := "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of workers pushing concurrently"))
	key = "pushes"
	perfTestCmd.Flags().Int(key, 1000, util.WrapString("Number of pushes per worker"))
	key = "key"
	perfTestCmd.Flags().Int(key, -1, util.WrapString("Key to use, must not exist yet (default: derived from the current time)"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfNumThreads = viper.GetInt("threads")
	perfPushes = viper.GetInt("pushes")
	if perfNumThreads < 1 || perfPushes < 1 {
		return fmt.Errorf("threads and pushes must be positive")
	}

	shapeStr := viper.GetString("shape")
	if shapeStr == "" {
		shapeStr = "1024"
	}
	shape, err := tensor.ParseShape(shapeStr)
	if err != nil {
		return err
	}
	perfShape = shape

	perfKey = db.Key(viper.GetInt("key"))
	if perfKey < 0 {
		perfKey = db.Key(time.Now().UnixNano() % (1 << 31))
	}
	return nil
}

func runPerf(_ *cobra.Command, _ []string) error {
	config := util.GetClientConfig()

	fmt.Println("Performance testing tool for tKV coordinators")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(config.String())
	fmt.Printf("Threads: %d, Pushes per thread: %d, Shape: %s, Key: %d\n", perfNumThreads, perfPushes, perfShape, perfKey)
	fmt.Println()

	if err := kv.InitOne(perfKey, tensor.New(perfShape, devices[0])); err != nil {
		return fmt.Errorf("failed to initialize key %d: %w", perfKey, err)
	}

	registry := metrics.NewRegistry()
	pushTimer := metrics.GetOrRegisterTimer("push", registry)
	pullTimer := metrics.GetOrRegisterTimer("pull", registry)
	errCounter := metrics.GetOrRegisterCounter("errors", registry)

	workers := make([]*kvstore.KVStore, perfNumThreads)
	for i := range workers {
		worker, err := newPerfWorker(*config)
		if err != nil {
			return err
		}
		defer worker.Stop()
		workers[i] = worker
	}

	fmt.Println("starting pushes...")
	start := time.Now()
	runParallel(workers, func(worker *kvstore.KVStore) {
		value := tensor.Ones(perfShape, tensor.CPU(0))
		for i := 0; i < perfPushes; i++ {
			ts := time.Now()
			if err := worker.PushOne(perfKey, value); err != nil {
				errCounter.Inc(1)
				continue
			}
			pushTimer.UpdateSince(ts)
		}
	})
	pushDuration := time.Since(start)

	fmt.Println("starting pulls...")
	runParallel(workers, func(worker *kvstore.KVStore) {
		out := tensor.New(perfShape, tensor.CPU(0))
		for i := 0; i < perfPushes; i++ {
			ts := time.Now()
			if _, err := worker.PullOne(perfKey, out); err != nil {
				errCounter.Inc(1)
				continue
			}
			pullTimer.UpdateSince(ts)
		}
	})

	fmt.Println()
	printTimer("push", pushTimer)
	printTimer("pull", pullTimer)
	fmt.Printf("%-8s%d\n", "errors", errCounter.Count())
	fmt.Printf("%-8s%.0f pushes/sec overall\n", "", float64(pushTimer.Count())/pushDuration.Seconds())

	// verify the aggregate
	out := tensor.New(perfShape, tensor.CPU(0))
	gen, err := kv.PullOne(perfKey, out)
	if err != nil {
		return fmt.Errorf("failed to pull result: %w", err)
	}
	want := float32(pushTimer.Count())
	for i, v := range out.Data() {
		if v != want {
			return fmt.Errorf("element %d is %v, expected %v (generation %d)", i, v, want, gen)
		}
	}
	if errCounter.Count() == 0 && int(want) != perfNumThreads*perfPushes {
		return fmt.Errorf("expected %d pushes, counted %v", perfNumThreads*perfPushes, want)
	}
	fmt.Printf("\nverified: every element equals %v after %d merges\n", want, gen)

	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, map[string]metrics.Timer{"push": pushTimer, "pull": pullTimer}, config); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// newPerfWorker creates a running worker with its own connections
func newPerfWorker(config common.ClientConfig) (*kvstore.KVStore, error) {
	s, err := util.GetSerializer()
	if err != nil {
		return nil, err
	}
	t, err := util.GetTransport()
	if err != nil {
		return nil, err
	}
	worker := client.NewDistributedKVStore(util.GetShardID(), config, t, s)
	if err := worker.InitDevices([]tensor.Context{tensor.CPU(0)}); err != nil {
		return nil, err
	}
	return worker, nil
}

// runParallel runs fn once per worker and waits for all of them
func runParallel(workers []*kvstore.KVStore, fn func(worker *kvstore.KVStore)) {
	var wg sync.WaitGroup
	for _, worker := range workers {
		wg.Add(1)
		go func(w *kvstore.KVStore) {
			defer wg.Done()
			fn(w)
		}(worker)
	}
	wg.Wait()
}

// printTimer prints the latency statistics of a timer
func printTimer(name string, t metrics.Timer) {
	s := t.Snapshot()
	if s.Count() == 0 {
		fmt.Printf("%-8sno successful requests\n", name)
		return
	}
	ps := s.Percentiles([]float64{0.5, 0.99})
	fmt.Printf("%-8scount=%d mean=%s p50=%s p99=%s max=%s rate1m=%.1f/s\n", name, s.Count(),
		time.Duration(s.Mean()), time.Duration(ps[0]), time.Duration(ps[1]), time.Duration(s.Max()), s.Rate1())
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, timers map[string]metrics.Timer, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "Count", "MeanNs", "P50Ns", "P99Ns", "MaxNs",
		"Endpoints", "TimeoutSec", "ConnectionsPerEndpoint",
		"ShardID", "Serializer", "Transport",
		"Threads", "Pushes", "Shape",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for test, t := range timers {
		s := t.Snapshot()
		ps := s.Percentiles([]float64{0.5, 0.99})
		row := []string{
			test,
			strconv.FormatInt(s.Count(), 10),
			fmt.Sprintf("%.0f", s.Mean()),
			fmt.Sprintf("%.0f", ps[0]),
			fmt.Sprintf("%.0f", ps[1]),
			strconv.FormatInt(s.Max(), 10),
			strings.Join(config.Transport.Endpoints, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.Transport.ConnectionsPerEndpoint),
			strconv.FormatUint(util.GetShardID(), 10),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfPushes),
			perfShape.String(),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
