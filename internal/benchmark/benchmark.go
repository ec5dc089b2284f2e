// Package benchmark measures the scan pipeline stage by stage.
package benchmark

import (
	"encoding/csv"
	"fmt"
	"io"
	"runtime"
	"strconv"
	"sync"
	"time"
)

// Timer provides simple timing utilities for benchmarking.
type Timer struct {
	start    time.Time
	name     string
	duration time.Duration
}

// NewTimer creates a new timer with the given name.
func NewTimer(name string) *Timer {
	return &Timer{
		name:  name,
		start: time.Now(),
	}
}

// Stop stops the timer and returns the elapsed duration.
func (t *Timer) Stop() time.Duration {
	t.duration = time.Since(t.start)
	return t.duration
}

// Duration returns the recorded duration (only valid after Stop()).
func (t *Timer) Duration() time.Duration {
	return t.duration
}

func (t *Timer) String() string {
	return fmt.Sprintf("%s: %v", t.name, t.duration)
}

// MemoryStats holds memory usage statistics.
type MemoryStats struct {
	AllocBytes      uint64  // Currently allocated bytes
	TotalAllocBytes uint64  // Total allocated bytes (cumulative)
	SysBytes        uint64  // Total bytes from system
	NumGC           uint32  // Number of GC runs
	GCCPUFraction   float64 // Fraction of CPU time spent in GC
}

// GetMemoryStats returns current memory statistics.
func GetMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return MemoryStats{
		AllocBytes:      m.Alloc,
		TotalAllocBytes: m.TotalAlloc,
		SysBytes:        m.Sys,
		NumGC:           m.NumGC,
		GCCPUFraction:   m.GCCPUFraction,
	}
}

func (m MemoryStats) String() string {
	return fmt.Sprintf("Alloc: %d KB, Total: %d KB, Sys: %d KB, GC: %d (%.2f%% CPU)",
		m.AllocBytes/1024,
		m.TotalAllocBytes/1024,
		m.SysBytes/1024,
		m.NumGC,
		m.GCCPUFraction*100)
}

// Result holds the outcome of one benchmark.
type Result struct {
	Name         string
	Duration     time.Duration
	MemoryBefore MemoryStats
	MemoryAfter  MemoryStats
	// Iterations counts the runs that completed without error.
	Iterations int
	Error      error
}

// Average returns the mean duration of a completed iteration.
func (r Result) Average() time.Duration {
	if r.Iterations == 0 {
		return 0
	}
	return r.Duration / time.Duration(r.Iterations)
}

// AllocatedKB is the growth of the live heap over the run. It is negative
// when a collection ran in between.
func (r Result) AllocatedKB() int64 {
	return (int64(r.MemoryAfter.AllocBytes) - int64(r.MemoryBefore.AllocBytes)) / 1024 //nolint:gosec // G115: heap sizes fit in int64
}

func (r Result) String() string {
	if r.Error != nil {
		return fmt.Sprintf("%s: ERROR after %d iterations - %v", r.Name, r.Iterations, r.Error)
	}
	return fmt.Sprintf("%s: %d iterations, avg: %v, total: %v, mem: %+d KB",
		r.Name, r.Iterations, r.Average(), r.Duration, r.AllocatedKB())
}

// Benchmark is a named unit of work run repeatedly by a Suite.
type Benchmark struct {
	Name string
	Func func() error
}

// Suite runs benchmarks in the order they were added.
type Suite struct {
	benchmarks []Benchmark
	results    []Result
	mu         sync.Mutex
}

// NewSuite creates an empty suite.
func NewSuite() *Suite {
	return &Suite{}
}

// Add appends a benchmark to the suite.
func (s *Suite) Add(name string, fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.benchmarks = append(s.benchmarks, Benchmark{Name: name, Func: fn})
}

// Names lists the benchmarks in the suite.
func (s *Suite) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.benchmarks))
	for i, b := range s.benchmarks {
		names[i] = b.Name
	}
	return names
}

// Run runs a single benchmark with the specified number of iterations.
func (s *Suite) Run(name string, iterations int) Result {
	s.mu.Lock()
	var (
		bench Benchmark
		found bool
	)
	for _, b := range s.benchmarks {
		if b.Name == name {
			bench, found = b, true
			break
		}
	}
	s.mu.Unlock()

	if !found {
		return Result{Name: name, Error: fmt.Errorf("benchmark '%s' not found", name)}
	}
	return runBenchmark(bench, iterations)
}

// RunAll runs every benchmark and keeps the results.
func (s *Suite) RunAll(iterations int) []Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results = make([]Result, 0, len(s.benchmarks))
	for _, b := range s.benchmarks {
		s.results = append(s.results, runBenchmark(b, iterations))
	}
	return s.results
}

// Results returns the results of the last RunAll.
func (s *Suite) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results
}

func runBenchmark(b Benchmark, iterations int) Result {
	runtime.GC()
	memBefore := GetMemoryStats()

	timer := NewTimer(b.Name)
	var (
		err  error
		done int
	)
	for range iterations {
		if err = b.Func(); err != nil {
			break
		}
		done++
	}

	return Result{
		Name:         b.Name,
		Duration:     timer.Stop(),
		MemoryBefore: memBefore,
		MemoryAfter:  GetMemoryStats(),
		Iterations:   done,
		Error:        err,
	}
}

// WriteText prints results in human readable form.
func WriteText(w io.Writer, results []Result) error {
	if _, err := fmt.Fprintln(w, "Benchmark Results:\n=================="); err != nil {
		return err
	}
	for _, r := range results {
		if _, err := fmt.Fprintln(w, r.String()); err != nil {
			return err
		}
	}
	return nil
}

// WriteCSV writes one row per result with durations in milliseconds.
func WriteCSV(w io.Writer, results []Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"name", "iterations", "avg_ms", "total_ms", "mem_kb", "error"}); err != nil {
		return err
	}
	for _, r := range results {
		errText := ""
		if r.Error != nil {
			errText = r.Error.Error()
		}
		row := []string{
			r.Name,
			strconv.Itoa(r.Iterations),
			strconv.FormatFloat(float64(r.Average().Microseconds())/1000, 'f', 3, 64),
			strconv.FormatFloat(float64(r.Duration.Microseconds())/1000, 'f', 3, 64),
			strconv.FormatInt(r.AllocatedKB(), 10),
			errText,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
