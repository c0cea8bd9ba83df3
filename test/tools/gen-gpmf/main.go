// Command gen-gpmf writes synthetic action-camera clips with a GPMF
// telemetry track into test/clips, along with a manifest describing what
// each clip should yield.
package main

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/zsiec/gpmfgps/internal/gpmf"
	"github.com/zsiec/gpmfgps/internal/mp4/mp4test"
)

type ClipConfig struct {
	Number      int     `json:"number"`
	Key         string  `json:"key"`
	Description string  `json:"description"`
	DurationSec int     `json:"durationSec"`
	GPSRate     int     `json:"gpsRate"`
	DropEvery   int     `json:"dropEvery,omitempty"`
	EmptyEvery  int     `json:"emptyEvery,omitempty"`
	OriginLat   float64 `json:"originLat"`
	OriginLon   float64 `json:"originLon"`
	RadiusM     float64 `json:"radiusM"`
	Points      int     `json:"points"`
}

type Manifest struct {
	Generated string       `json:"generated"`
	Clips     []ClipConfig `json:"clips"`
}

var clips = []ClipConfig{
	{
		Number: 1, Key: "harbor_loop", DurationSec: 120, GPSRate: 18,
		OriginLat: 37.8080, OriginLon: -122.4177, RadiusM: 250,
	},
	{
		Number: 2, Key: "tunnel", DurationSec: 90, GPSRate: 18, DropEvery: 4,
		OriginLat: 47.6062, OriginLon: -122.3321, RadiusM: 400,
	},
	{
		Number: 3, Key: "cold_start", DurationSec: 60, GPSRate: 10, EmptyEvery: 3,
		OriginLat: 46.5197, OriginLon: 6.6323, RadiusM: 120,
	},
	{
		Number: 4, Key: "single_fix", DurationSec: 30, GPSRate: 1,
		OriginLat: -33.8568, OriginLon: 151.2153, RadiusM: 60,
	},
}

// gpmfStart is the GPS time of the first payload in every clip.
var gpmfStart = time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)

func main() {
	rng := rand.New(rand.NewSource(42))

	rootDir := findProjectRoot()
	clipsDir := filepath.Join(rootDir, "test", "clips")
	if err := os.MkdirAll(clipsDir, 0755); err != nil {
		fatal("create clips dir: %v", err)
	}

	fmt.Println("=== GPMF Clip Generator ===")
	fmt.Printf("Generating %d test clips\n\n", len(clips))

	for i, cc := range clips {
		outFile := filepath.Join(clipsDir, fmt.Sprintf("clip_%d.mp4", cc.Number))
		payloads, points := buildClip(cc, rng)
		cc.Points = points
		cc.Description = describe(cc)
		clips[i] = cc

		fmt.Printf("--- Clip %d: %s (%ds, %d Hz GPS, %d points) ---\n",
			cc.Number, cc.Key, cc.DurationSec, cc.GPSRate, cc.Points)
		if fileExists(outFile) {
			fmt.Printf("  Already exists, skipping\n")
			continue
		}
		if err := mp4test.WriteFile(outFile, mp4test.Video(cc.DurationSec*30, 30000, 1001), mp4test.GPMF(payloads...)); err != nil {
			fatal("write clip %d: %v", cc.Number, err)
		}
		if info, _ := os.Stat(outFile); info != nil {
			fmt.Printf("  Output: %s (%.1f KB)\n", outFile, float64(info.Size())/1024)
		}
	}

	manifestFile := filepath.Join(clipsDir, "manifest.json")
	if err := writeManifest(manifestFile); err != nil {
		fatal("write manifest: %v", err)
	}
	fmt.Printf("\n=== Done! %d clips generated in %s ===\n", len(clips), clipsDir)
}

// buildClip returns one payload per second of cc and the number of payloads
// that carry a usable GPS sample.
func buildClip(cc ClipConfig, rng *rand.Rand) ([][]byte, int) {
	payloads := make([][]byte, cc.DurationSec)
	points := 0
	for sec := range payloads {
		switch {
		case cc.DropEvery > 0 && sec%cc.DropEvery == cc.DropEvery-1:
			payloads[sec] = buildPayload(cc, sec, 0, rng)
		case cc.EmptyEvery > 0 && sec%cc.EmptyEvery == 0:
			payloads[sec] = buildPayload(cc, sec, -1, rng)
		default:
			payloads[sec] = buildPayload(cc, sec, cc.GPSRate, rng)
			points++
		}
	}
	return payloads, points
}

// buildPayload writes one second of telemetry. samples == 0 omits the GPS
// stream entirely; samples < 0 writes a GPS5 record with no samples.
func buildPayload(cc ClipConfig, sec, samples int, rng *rand.Rand) []byte {
	var e gpmf.Encoder
	e.Nest(gpmf.KeyDevice, func(d *gpmf.Encoder) {
		d.Int32s(gpmf.KeyDeviceID, 1, 1)
		d.String(gpmf.KeyDeviceName, "Synthetic Camera")
		if samples != 0 {
			d.Nest(gpmf.KeyStream, func(s *gpmf.Encoder) {
				s.String(gpmf.KeyStreamName, "GPS (Lat., Long., Alt., 2D speed, 3D speed)")
				s.Int32s(gpmf.KeyGPSFix, 1, 3)
				s.String(gpmf.KeyGPSTime, gpmfStart.Add(time.Duration(sec)*time.Second).Format("060102150405.000"))
				s.Int16s(gpmf.KeyGPSDOP, 1, int16(150+rng.Intn(300)))
				s.Labels(gpmf.KeyUnits, 3, "deg", "deg", "m", "m/s", "m/s")
				s.Int32s(gpmf.KeyScale, 1, 10000000, 10000000, 1000, 1000, 100)
				s.Int32s(gpmf.KeyGPS5, 5, gpsSamples(cc, sec, max(samples, 0), rng)...)
			})
		}
		d.Nest(gpmf.KeyStream, func(s *gpmf.Encoder) {
			s.String(gpmf.KeyStreamName, "Accelerometer")
			s.Labels(gpmf.KeySIUnits, 4, "m/s2")
			s.Int16s(gpmf.KeyScale, 1, 418)
			s.Int16s(gpmf.MakeFourCC("ACCL"), 3, accelSamples(200, rng)...)
		})
	})
	return e.Bytes()
}

// gpsSamples traces a circle of cc.RadiusM around the origin, one lap per
// clip, with a little jitter per sample.
func gpsSamples(cc ClipConfig, sec, n int, rng *rand.Rand) []int32 {
	const metersPerDegLat = 111320.0
	metersPerDegLon := metersPerDegLat * math.Cos(cc.OriginLat*math.Pi/180)
	speed := 2 * math.Pi * cc.RadiusM / float64(cc.DurationSec)

	out := make([]int32, 0, n*5)
	for k := 0; k < n; k++ {
		t := float64(sec) + float64(k)/float64(n)
		angle := 2 * math.Pi * t / float64(cc.DurationSec)
		lat := cc.OriginLat + cc.RadiusM*math.Sin(angle)/metersPerDegLat + rng.NormFloat64()*1e-6
		lon := cc.OriginLon + cc.RadiusM*math.Cos(angle)/metersPerDegLon + rng.NormFloat64()*1e-6
		ele := 12 + 3*math.Sin(angle*2)
		out = append(out,
			int32(math.Round(lat*1e7)),
			int32(math.Round(lon*1e7)),
			int32(math.Round(ele*1e3)),
			int32(math.Round(speed*1e3)),
			int32(math.Round(speed*1e2)),
		)
	}
	return out
}

func accelSamples(n int, rng *rand.Rand) []int16 {
	out := make([]int16, 0, n*3)
	for k := 0; k < n; k++ {
		out = append(out, int16(rng.Intn(40)-20), int16(rng.Intn(40)-20), int16(4100+rng.Intn(40)))
	}
	return out
}

func describe(cc ClipConfig) string {
	d := fmt.Sprintf("%s: %d Hz GPS loop of %.0fm radius, %ds", cc.Key, cc.GPSRate, cc.RadiusM, cc.DurationSec)
	if cc.DropEvery > 0 {
		d += fmt.Sprintf(", no GPS stream every %d payloads", cc.DropEvery)
	}
	if cc.EmptyEvery > 0 {
		d += fmt.Sprintf(", empty GPS5 every %d payloads", cc.EmptyEvery)
	}
	return d
}

func writeManifest(path string) error {
	data, err := json.MarshalIndent(Manifest{
		Generated: time.Now().UTC().Format(time.RFC3339),
		Clips:     clips,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		fatal("getwd: %v", err)
	}
	for {
		if fileExists(filepath.Join(dir, "go.mod")) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			fatal("could not find project root (no go.mod found)")
		}
		dir = parent
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FATAL: "+format+"\n", args...)
	os.Exit(1)
}
