package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zsiec/gpmfgps/internal/config"
	"github.com/zsiec/gpmfgps/internal/jobs"
	"github.com/zsiec/gpmfgps/internal/pipeline"
	"github.com/zsiec/gpmfgps/internal/track"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("gpmfgps", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", envOr("GPMF_CONFIG", ""), "YAML config file")
	verbose := fs.Bool("v", false, "debug logging")
	jobCount := fs.Int("jobs", 0, "files processed at once")
	gpsTime := fs.Bool("gps-time", false, "decode GPSU and attach UTC time to each point")
	samples := fs.Bool("samples", false, "log every GPS sample with its units (needs -v)")
	asJSON := fs.Bool("json", false, "write tracks as JSON instead of CSV")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: gpmfgps [flags] file.mp4 ...\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err == nil {
		err = cfg.ApplyEnv(os.Getenv)
	}
	if err != nil {
		fmt.Fprintf(stderr, "gpmfgps: config: %v\n", err)
		return 2
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "jobs":
			cfg.Jobs = *jobCount
		case "gps-time":
			cfg.GPSTime = *gpsTime
		case "samples":
			cfg.SampleLog = *samples
		}
	})
	if *verbose {
		cfg.LogLevel = "debug"
	}
	if cfg.Jobs < 1 {
		fmt.Fprintf(stderr, "gpmfgps: -jobs must be > 0\n")
		return 2
	}

	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	log.Debug("gpmfgps starting", "version", version, "files", fs.NArg(), "jobs", cfg.Jobs)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	mgr := jobs.NewManager(log)
	stop := context.AfterFunc(ctx, func() { logInFlight(log, mgr) })
	defer stop()

	paths := fs.Args()
	tracks := make([]*track.Track, len(paths))

	// Failures are recorded per file in mgr; the group only bounds how many
	// files run at once, so its goroutines always return nil.
	var g errgroup.Group
	g.SetLimit(cfg.Jobs)
	for i, path := range paths {
		key := jobKey(path)
		job, ok := mgr.Start(key)
		if !ok {
			continue
		}
		g.Go(func() error {
			trk, err := pipeline.Extract(ctx, path,
				pipeline.WithLogger(log.With("trace", job.TraceID)),
				pipeline.WithGPSTime(cfg.GPSTime),
				pipeline.WithSampleLog(cfg.SampleLog),
			)
			if err != nil {
				mgr.Finish(key, 0, err)
				log.Error("extraction failed", "file", path, "trace", job.TraceID, "error", err)
				return nil
			}
			mgr.Finish(key, trk.Len(), nil)
			tracks[i] = trk
			return nil
		})
	}
	_ = g.Wait()

	for i, trk := range tracks {
		if trk == nil {
			continue
		}
		if err := writeTrack(stdout, paths[i], trk, *asJSON, cfg.GPSTime); err != nil {
			log.Error("write track", "file", paths[i], "error", err)
			return 1
		}
	}
	if n := mgr.Failed(); n > 0 {
		log.Warn("some files failed", "failed", n, "total", len(mgr.Finished()))
		return 1
	}
	return 0
}

// logInFlight reports the files still being extracted when the run is
// interrupted.
func logInFlight(log *slog.Logger, mgr *jobs.Manager) {
	for _, j := range mgr.Active() {
		log.Warn("interrupted", "file", j.Key, "trace", j.TraceID,
			"elapsed", time.Since(j.StartedAt).Round(time.Millisecond))
	}
}

// jobKey identifies a file regardless of how its path was spelled.
func jobKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

type trackOutput struct {
	File    string        `json:"file"`
	Summary track.Summary `json:"summary"`
	Points  []track.Point `json:"points"`
}

func writeTrack(w io.Writer, path string, trk *track.Track, asJSON, withTime bool) error {
	if asJSON {
		return json.NewEncoder(w).Encode(trackOutput{
			File:    path,
			Summary: trk.Summary(),
			Points:  trk.Points(),
		})
	}

	if _, err := fmt.Fprintf(w, "# %s: %d points\n", path, trk.Len()); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	header := []string{"lat", "lon", "ele"}
	if withTime {
		header = append(header, "time")
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, pt := range trk.Points() {
		row := []string{formatCoord(pt.Lat), formatCoord(pt.Lon), formatCoord(pt.Ele)}
		if withTime {
			ts := ""
			if !pt.Time.IsZero() {
				ts = pt.Time.Format(time.RFC3339Nano)
			}
			row = append(row, ts)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatCoord(v float32) string {
	return strconv.FormatFloat(float64(v), 'f', -1, 32)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
