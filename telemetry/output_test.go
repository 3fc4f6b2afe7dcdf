package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/flock/config"
)

func TestNewOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil {
		t.Fatal(err)
	}
	if om != nil {
		t.Fatal("expected nil manager for empty dir")
	}
	// nil manager is a no-op sink
	if err := om.WriteTelemetry(FlockStats{}); err != nil {
		t.Errorf("WriteTelemetry on nil manager: %v", err)
	}
	if err := om.Close(); err != nil {
		t.Errorf("Close on nil manager: %v", err)
	}
}

func TestOutputManagerWritesCSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatalf("NewOutputManager: %v", err)
	}

	for i, end := range []int64{120, 240} {
		stats := FlockStats{
			RunID:          "run-abc",
			WindowEndFrame: end,
			Particles:      100,
			Polarization:   0.25 * float64(i+1),
		}
		if err := om.WriteTelemetry(stats); err != nil {
			t.Fatalf("WriteTelemetry: %v", err)
		}
		perf := PerfStats{AvgFrameDuration: time.Millisecond, PhasePct: map[string]float64{PhaseSimulate: 80}}
		if err := om.WritePerf(perf, "run-abc", end); err != nil {
			t.Fatalf("WritePerf: %v", err)
		}
	}
	if err := om.WriteConfig(config.Default()); err != nil {
		t.Fatalf("WriteConfig: %v", err)
	}
	if err := om.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "telemetry.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("telemetry.csv has %d lines, want header + 2 rows:\n%s", len(lines), data)
	}
	if !strings.HasPrefix(lines[0], "run_id,window_end,particles") {
		t.Errorf("unexpected header %q", lines[0])
	}

	var rows []FlockStats
	if err := gocsv.UnmarshalBytes(data, &rows); err != nil {
		t.Fatalf("parsing telemetry.csv: %v", err)
	}
	if rows[1].WindowEndFrame != 240 || rows[1].Polarization != 0.5 || rows[1].RunID != "run-abc" {
		t.Errorf("second row = %+v", rows[1])
	}

	perfData, err := os.ReadFile(filepath.Join(dir, "perf.csv"))
	if err != nil {
		t.Fatal(err)
	}
	var perfRows []PerfStatsCSV
	if err := gocsv.UnmarshalBytes(perfData, &perfRows); err != nil {
		t.Fatalf("parsing perf.csv: %v", err)
	}
	if len(perfRows) != 2 || perfRows[0].AvgFrameUS != 1000 || perfRows[0].SimulatePct != 80 {
		t.Errorf("perf rows = %+v", perfRows)
	}

	if _, err := config.Load(filepath.Join(dir, "config.yaml")); err != nil {
		t.Errorf("config snapshot does not reload: %v", err)
	}
}
