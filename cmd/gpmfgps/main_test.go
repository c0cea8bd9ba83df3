package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zsiec/gpmfgps/internal/gpmf"
	"github.com/zsiec/gpmfgps/internal/jobs"
	"github.com/zsiec/gpmfgps/internal/mp4/mp4test"
)

func gpsPayload(lat, lon, ele int32) []byte {
	var e gpmf.Encoder
	e.Nest(gpmf.KeyDevice, func(d *gpmf.Encoder) {
		d.Nest(gpmf.KeyStream, func(s *gpmf.Encoder) {
			s.String(gpmf.KeyGPSTime, "240601083000.000")
			s.Int32s(gpmf.KeyScale, 1, 1, 1, 1, 1, 1)
			s.Int32s(gpmf.KeyGPS5, 5, lat, lon, ele, 0, 0)
		})
	})
	return e.Bytes()
}

func writeClip(t *testing.T, dir, name string, payloads ...[]byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := mp4test.WriteFile(path, mp4test.Video(60, 30, 1), mp4test.GPMF(payloads...)); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestRunCSV(t *testing.T) {
	t.Parallel()

	path := writeClip(t, t.TempDir(), "clip.mp4", gpsPayload(10, 20, 5), gpsPayload(11, 21, 6))
	var stdout, stderr bytes.Buffer
	if code := run([]string{path}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit = %d, stderr:\n%s", code, stderr.String())
	}
	want := "# " + path + ": 2 points\nlat,lon,ele\n10,20,5\n11,21,6\n"
	if stdout.String() != want {
		t.Errorf("stdout = %q, want %q", stdout.String(), want)
	}
}

func TestRunCSVWithTime(t *testing.T) {
	t.Parallel()

	path := writeClip(t, t.TempDir(), "clip.mp4", gpsPayload(10, 20, 5))
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-gps-time", path}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit = %d, stderr:\n%s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "10,20,5,2024-06-01T08:30:00Z\n") {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestRunJSON(t *testing.T) {
	t.Parallel()

	path := writeClip(t, t.TempDir(), "clip.mp4", gpsPayload(10, 20, 5))
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-json", path}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit = %d, stderr:\n%s", code, stderr.String())
	}
	var out trackOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		t.Fatalf("Unmarshal: %v\n%s", err, stdout.String())
	}
	if out.File != path || out.Summary.Points != 1 || len(out.Points) != 1 || out.Points[0].Lat != 10 {
		t.Errorf("output = %+v", out)
	}
	if strings.Contains(stdout.String(), `"time"`) {
		t.Errorf("time emitted without -gps-time: %s", stdout.String())
	}
}

func TestRunMultipleFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := writeClip(t, dir, "a.mp4", gpsPayload(1, 2, 3))
	b := writeClip(t, dir, "b.mp4", gpsPayload(4, 5, 6))
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-jobs", "2", b, a, a}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit = %d, stderr:\n%s", code, stderr.String())
	}
	out := stdout.String()
	if strings.Count(out, "# ") != 2 {
		t.Errorf("expected two tracks, duplicate skipped:\n%s", out)
	}
	if strings.Index(out, b) > strings.Index(out, a) {
		t.Errorf("tracks not written in argument order:\n%s", out)
	}
	if !strings.Contains(stderr.String(), "skipping duplicate") {
		t.Errorf("duplicate not reported:\n%s", stderr.String())
	}
}

func TestRunFailures(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := writeClip(t, dir, "good.mp4", gpsPayload(1, 2, 3))
	missing := filepath.Join(dir, "missing.mp4")

	var stdout, stderr bytes.Buffer
	if code := run([]string{good, missing}, &stdout, &stderr); code != 1 {
		t.Fatalf("exit = %d, want 1", code)
	}
	if !strings.Contains(stdout.String(), "# "+good) {
		t.Errorf("good file not written:\n%s", stdout.String())
	}
	if !strings.Contains(stderr.String(), "extraction failed") {
		t.Errorf("failure not logged:\n%s", stderr.String())
	}
}

func TestRunUsage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
	}{
		{"no_files", nil},
		{"bad_flag", []string{"-nope"}},
		{"bad_jobs", []string{"-jobs", "0", "clip.mp4"}},
		{"missing_config", []string{"-config", "/nonexistent/gpmfgps.yaml", "clip.mp4"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var stdout, stderr bytes.Buffer
			if code := run(tc.args, &stdout, &stderr); code != 2 {
				t.Errorf("exit = %d, want 2", code)
			}
			if stdout.Len() != 0 {
				t.Errorf("stdout = %q, want empty", stdout.String())
			}
		})
	}
}

func TestLogInFlight(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logs, nil))
	mgr := jobs.NewManager(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	running, _ := mgr.Start("/clips/running.mp4")
	mgr.Start("/clips/done.mp4")
	mgr.Finish("/clips/done.mp4", 3, nil)

	logInFlight(log, mgr)

	out := logs.String()
	if !strings.Contains(out, "interrupted") || !strings.Contains(out, "file=/clips/running.mp4") {
		t.Errorf("log missing in-flight file\n%s", out)
	}
	if !strings.Contains(out, "trace="+running.TraceID) {
		t.Errorf("log missing trace %s\n%s", running.TraceID, out)
	}
	if strings.Contains(out, "done.mp4") {
		t.Errorf("finished file reported as interrupted\n%s", out)
	}
}
