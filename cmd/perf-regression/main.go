// Command perf-regression compares two `go test -bench` outputs and exits
// non-zero when a tracked benchmark got slower than the allowed ratio.
//
//	go test -run '^$' -bench . -count 5 . > new.txt
//	perf-regression -baseline old.txt -candidate new.txt
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

const defaultThreshold = 0.30

// Hot paths of the engine: every guarded request validates, every client
// refreshes once per access TTL.
var trackedMetrics = map[string][]string{
	"BenchmarkValidateAccess": {"ns/op", "allocs/op"},
	"BenchmarkRefresh":        {"ns/op"},
	"BenchmarkAllowRequest":   {"ns/op"},
}

// samples holds benchmark -> unit -> values, one value per -count run.
type samples map[string]map[string][]float64

type row struct {
	benchmark string
	unit      string
	baseline  float64
	candidate float64
	delta     float64
}

func main() {
	var (
		baselinePath  string
		candidatePath string
		threshold     float64
	)
	flag.StringVar(&baselinePath, "baseline", "", "benchmark output of the reference build")
	flag.StringVar(&candidatePath, "candidate", "", "benchmark output of the build under test")
	flag.Float64Var(&threshold, "threshold", defaultThreshold, "maximum allowed slowdown ratio (0.30 = +30%)")
	flag.Parse()

	if baselinePath == "" || candidatePath == "" {
		fmt.Fprintln(os.Stderr, "-baseline and -candidate are required")
		os.Exit(2)
	}
	if threshold < 0 {
		fmt.Fprintln(os.Stderr, "-threshold must be >= 0")
		os.Exit(2)
	}

	baseline, err := parseFile(baselinePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse baseline: %v\n", err)
		os.Exit(1)
	}
	candidate, err := parseFile(candidatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse candidate: %v\n", err)
		os.Exit(1)
	}

	rows, failures := compare(baseline, candidate, trackedMetrics, threshold)

	fmt.Println("benchmark unit baseline candidate delta")
	for _, r := range rows {
		fmt.Printf("%s %s %.3f %.3f %+0.2f%%\n", r.benchmark, r.unit, r.baseline, r.candidate, r.delta*100)
	}
	if len(failures) > 0 {
		fmt.Fprintln(os.Stderr, "performance regression threshold exceeded:")
		for _, f := range failures {
			fmt.Fprintf(os.Stderr, "  - %s\n", f)
		}
		os.Exit(1)
	}
}

func parseFile(path string) (samples, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parse(f, trackedMetrics)
}

// parse reads benchmark lines of the form
//
//	BenchmarkRefresh-8   12345   98765 ns/op   4321 B/op   55 allocs/op
//
// and keeps only the benchmarks named in tracked.
func parse(r io.Reader, tracked map[string][]string) (samples, error) {
	out := samples{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || !strings.HasPrefix(fields[0], "Benchmark") {
			continue
		}

		name := trimProcs(fields[0])
		if _, ok := tracked[name]; !ok {
			continue
		}
		if out[name] == nil {
			out[name] = map[string][]float64{}
		}

		for i := 2; i+1 < len(fields); i += 2 {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				continue
			}
			out[name][fields[i+1]] = append(out[name][fields[i+1]], v)
		}
	}
	return out, scanner.Err()
}

func compare(baseline, candidate samples, tracked map[string][]string, threshold float64) ([]row, []string) {
	names := make([]string, 0, len(tracked))
	for name := range tracked {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		rows     []row
		failures []string
	)
	for _, name := range names {
		for _, unit := range tracked[name] {
			base, cand := baseline[name][unit], candidate[name][unit]
			if len(base) == 0 || len(cand) == 0 {
				failures = append(failures, fmt.Sprintf("missing samples for %s %s", name, unit))
				continue
			}

			b, c := median(base), median(cand)
			if b <= 0 {
				// allocs/op of zero has nothing to regress from unless it grew.
				if c > 0 {
					failures = append(failures, fmt.Sprintf("%s %s went from 0 to %.0f", name, unit, c))
				}
				rows = append(rows, row{benchmark: name, unit: unit, baseline: b, candidate: c})
				continue
			}

			delta := (c - b) / b
			rows = append(rows, row{benchmark: name, unit: unit, baseline: b, candidate: c, delta: delta})
			if delta > threshold {
				failures = append(failures, fmt.Sprintf("%s %s regressed by %+0.2f%% (limit %+0.2f%%)",
					name, unit, delta*100, threshold*100))
			}
		}
	}
	return rows, failures
}

// trimProcs strips the -GOMAXPROCS suffix the test runner appends.
func trimProcs(raw string) string {
	if idx := strings.LastIndexByte(raw, '-'); idx > 0 {
		if _, err := strconv.Atoi(raw[idx+1:]); err == nil {
			return raw[:idx]
		}
	}
	return raw
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
