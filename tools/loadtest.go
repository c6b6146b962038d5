package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type stats struct {
	requests atomic.Int64
	ok       atomic.Int64
	failed   atomic.Int64
	occupied atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (s *stats) observe(d time.Duration) {
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.mu.Unlock()
}

func main() {
	url := flag.String("url", "http://localhost:8000/predict", "prediction endpoint")
	workers := flag.Int("workers", 50, "concurrent clients")
	rooms := flag.Int("rooms", 10, "distinct room ids to spread readings over")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	flag.Parse()

	if *workers < 1 || *rooms < 1 {
		fmt.Fprintln(os.Stderr, "workers and rooms must be positive")
		os.Exit(1)
	}

	fmt.Printf("Load Test Configuration:\n")
	fmt.Printf("  URL:      %s\n", *url)
	fmt.Printf("  Workers:  %d\n", *workers)
	fmt.Printf("  Rooms:    %d\n", *rooms)
	fmt.Printf("  Duration: %v\n\n", *duration)

	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        *workers,
			MaxIdleConnsPerHost: *workers,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	st := &stats{latencies: make([]time.Duration, 0, 10000)}
	start := time.Now()
	deadline := start.Add(*duration)

	var wg sync.WaitGroup
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)))
			room := fmt.Sprintf("room-%d", id%*rooms)
			for time.Now().Before(deadline) {
				send(client, *url, sensorReading(rng, room), st)
			}
		}(i)
	}
	wg.Wait()

	printResults(st, time.Since(start))
}

// sensorReading produces values in the ranges seen in office sensor logs.
func sensorReading(rng *rand.Rand, room string) map[string]interface{} {
	return map[string]interface{}{
		"datetime":      time.Now().Format("2006-01-02 15:04:05"),
		"Temperature":   19 + rng.Float64()*5,
		"Humidity":      16 + rng.Float64()*24,
		"Light":         rng.Float64() * 1500,
		"CO2":           400 + rng.Float64()*1600,
		"HumidityRatio": 0.0027 + rng.Float64()*0.004,
		"room_id":       room,
	}
}

func send(client *http.Client, url string, reading map[string]interface{}, st *stats) {
	body, _ := json.Marshal(reading)

	start := time.Now()
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	latency := time.Since(start)
	st.requests.Add(1)

	if err != nil {
		st.failed.Add(1)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		st.failed.Add(1)
		return
	}

	var result struct {
		Prediction int `json:"prediction"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		st.failed.Add(1)
		return
	}

	st.ok.Add(1)
	if result.Prediction == 1 {
		st.occupied.Add(1)
	}
	st.observe(latency)
}

func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := len(sorted) * p / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func printResults(st *stats, elapsed time.Duration) {
	total := st.requests.Load()
	ok := st.ok.Load()

	st.mu.Lock()
	lat := make([]time.Duration, len(st.latencies))
	copy(lat, st.latencies)
	st.mu.Unlock()
	sort.Slice(lat, func(i, j int) bool { return lat[i] < lat[j] })

	var sum time.Duration
	for _, l := range lat {
		sum += l
	}

	fmt.Println("==========================================")
	fmt.Println("Load Test Results")
	fmt.Println("==========================================")
	fmt.Printf("Duration:       %v\n", elapsed)
	fmt.Printf("Total Requests: %d\n", total)
	fmt.Printf("Successful:     %d\n", ok)
	fmt.Printf("Failed:         %d\n", st.failed.Load())
	if total > 0 {
		fmt.Printf("Success Rate:   %.2f%%\n", float64(ok)/float64(total)*100)
	}
	fmt.Printf("Requests/sec:   %.2f\n", float64(total)/elapsed.Seconds())
	if ok > 0 {
		fmt.Printf("Occupied:       %.2f%%\n", float64(st.occupied.Load())/float64(ok)*100)
	}

	if len(lat) == 0 {
		fmt.Println("==========================================")
		return
	}
	fmt.Println("\nLatency Statistics:")
	fmt.Printf("  Min:          %v\n", lat[0])
	fmt.Printf("  Max:          %v\n", lat[len(lat)-1])
	fmt.Printf("  Average:      %v\n", sum/time.Duration(len(lat)))
	fmt.Printf("  p50:          %v\n", percentile(lat, 50))
	fmt.Printf("  p95:          %v\n", percentile(lat, 95))
	fmt.Printf("  p99:          %v\n", percentile(lat, 99))
	fmt.Println("==========================================")
}
