package main

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cjeanneret/ScoutCam/internal/config"
	"github.com/cjeanneret/ScoutCam/internal/logic/matching"
	"github.com/cjeanneret/ScoutCam/internal/logic/optics"
	"github.com/cjeanneret/ScoutCam/internal/scout"
)

// ---------- validateCLIOverrides ----------

func TestValidateCLIOverrides_AllZero(t *testing.T) {
	if err := validateCLIOverrides(overrides{}); err != nil {
		t.Errorf("empty overrides should be valid (use config defaults), got: %v", err)
	}
}

func TestValidateCLIOverrides_ValidBoundary(t *testing.T) {
	cases := []struct {
		name string
		o    overrides
	}{
		{"min_lat", overrides{Latitude: -90, HasLatitude: true}},
		{"max_lat", overrides{Latitude: 90, HasLatitude: true}},
		{"zero_lat", overrides{Latitude: 0, HasLatitude: true}},
		{"min_lon", overrides{Longitude: -180, HasLongitude: true}},
		{"max_lon", overrides{Longitude: 180, HasLongitude: true}},
		{"small_focal", overrides{FocalLengthMm: 0.001}},
		{"tz", overrides{TimeZone: "Europe/Paris"}},
		{"date", overrides{Date: "2024-02-29"}},
		{"max_days", overrides{Days: scout.MaxPlanDays}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := validateCLIOverrides(tc.o); err != nil {
				t.Errorf("expected valid, got: %v", err)
			}
		})
	}
}

func TestValidateCLIOverrides_OutOfRange(t *testing.T) {
	cases := []struct {
		name string
		o    overrides
	}{
		{"lat_too_large", overrides{Latitude: 90.1, HasLatitude: true}},
		{"lat_too_small", overrides{Latitude: -91, HasLatitude: true}},
		{"lon_too_large", overrides{Longitude: 181, HasLongitude: true}},
		{"lon_too_small", overrides{Longitude: -180.5, HasLongitude: true}},
		{"focal_negative", overrides{FocalLengthMm: -1}},
		{"days_negative", overrides{Days: -1}},
		{"days_too_large", overrides{Days: scout.MaxPlanDays + 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := validateCLIOverrides(tc.o); err == nil {
				t.Error("expected error for out-of-range value, got nil")
			}
		})
	}
}

func TestValidateCLIOverrides_NaNAndInf(t *testing.T) {
	nan, inf := math.NaN(), math.Inf(1)
	cases := []struct {
		name string
		o    overrides
	}{
		{"lat_nan", overrides{Latitude: nan, HasLatitude: true}},
		{"lon_nan", overrides{Longitude: nan, HasLongitude: true}},
		{"focal_nan", overrides{FocalLengthMm: nan}},
		{"lat_inf", overrides{Latitude: inf, HasLatitude: true}},
		{"lon_neg_inf", overrides{Longitude: -inf, HasLongitude: true}},
		{"focal_inf", overrides{FocalLengthMm: inf}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := validateCLIOverrides(tc.o); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestValidateCLIOverrides_UnsetCoordinatesIgnored(t *testing.T) {
	// Values without the Has* flag come from unset flags and are not checked.
	o := overrides{Latitude: 500, Longitude: -500}
	if err := validateCLIOverrides(o); err != nil {
		t.Errorf("unset lat/lon should be ignored, got: %v", err)
	}
}

func TestValidateCLIOverrides_BadStrings(t *testing.T) {
	cases := []struct {
		name string
		o    overrides
	}{
		{"unknown_tz", overrides{TimeZone: "Mars/Olympus_Mons"}},
		{"date_format", overrides{Date: "21/06/2024"}},
		{"date_invalid_day", overrides{Date: "2023-02-29"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := validateCLIOverrides(tc.o); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

// ---------- applyOverrides ----------

func TestApplyOverrides(t *testing.T) {
	cfg := testConfig()
	applyOverrides(cfg, overrides{
		Latitude:      0,
		HasLatitude:   true,
		Longitude:     -70.5,
		HasLongitude:  true,
		TimeZone:      "America/Santiago",
		Camera:        "Sony Venice",
		Lens:          "Cooke S4/i 32mm",
		FocalLengthMm: 35,
	})
	if cfg.Location.Latitude != 0 {
		t.Errorf("Latitude = %v, want 0", cfg.Location.Latitude)
	}
	if cfg.Location.Longitude != -70.5 {
		t.Errorf("Longitude = %v, want -70.5", cfg.Location.Longitude)
	}
	if cfg.Location.TimeZone != "America/Santiago" {
		t.Errorf("TimeZone = %q", cfg.Location.TimeZone)
	}
	if cfg.Reference.Camera != "Sony Venice" || cfg.Reference.Lens != "Cooke S4/i 32mm" {
		t.Errorf("Reference = %+v", cfg.Reference)
	}
	if cfg.Reference.FocalLengthMm != 35 {
		t.Errorf("FocalLengthMm = %v, want 35", cfg.Reference.FocalLengthMm)
	}
}

func TestApplyOverrides_ZeroKeepsConfig(t *testing.T) {
	cfg := testConfig()
	want := *cfg
	applyOverrides(cfg, overrides{})
	if cfg.Location != want.Location {
		t.Errorf("Location changed: %+v", cfg.Location)
	}
	if cfg.Reference != want.Reference {
		t.Errorf("Reference changed: %+v", cfg.Reference)
	}
}

// ---------- webPortFlag ----------

func TestWebPortFlag_Default(t *testing.T) {
	w := &webPortFlag{defaultPort: 8080}
	if w.port() != 0 {
		t.Errorf("unset flag port = %d, want 0", w.port())
	}
	if w.String() != "0" {
		t.Errorf("String() = %q, want \"0\"", w.String())
	}
}

func TestWebPortFlag_Set(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    int
		wantErr bool
	}{
		{"empty_uses_default", "", 8080, false},
		{"custom", "8980", 8980, false},
		{"max", "65535", 65535, false},
		{"zero", "0", 0, true},
		{"too_large", "65536", 0, true},
		{"negative", "-1", 0, true},
		{"not_a_number", "http", 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := &webPortFlag{defaultPort: 8080}
			err := w.Set(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Errorf("Set(%q) expected error", tc.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("Set(%q) error: %v", tc.in, err)
			}
			if w.port() != tc.want {
				t.Errorf("port = %d, want %d", w.port(), tc.want)
			}
		})
	}
}

// ---------- calibration ----------

func TestCalibrationPath(t *testing.T) {
	cfgPath := filepath.Join("deploy", "configs", "default.yaml")
	if got, want := calibrationPath(cfgPath, "calibration.yaml"), filepath.Join("deploy", "configs", "calibration.yaml"); got != want {
		t.Errorf("relative: got %q, want %q", got, want)
	}
	abs := filepath.Join(t.TempDir(), "calib.yaml")
	if got := calibrationPath(cfgPath, abs); got != abs {
		t.Errorf("absolute: got %q, want %q", got, abs)
	}
}

func TestOpenCalibration_InMemory(t *testing.T) {
	store, err := openCalibration("configs/default.yaml", "")
	if err != nil {
		t.Fatalf("openCalibration error: %v", err)
	}
	if len(store.Snapshot()) != 0 {
		t.Errorf("expected empty store, got %v", store.Snapshot())
	}
}

func TestOpenCalibration_SavesOnChange(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "configs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	cfgPath := filepath.Join(dir, "default.yaml")

	store, err := openCalibration(cfgPath, "calibration.yaml")
	if err != nil {
		t.Fatalf("openCalibration error: %v", err)
	}
	if _, err := store.SetMultiplier(1.02, "main"); err != nil {
		t.Fatalf("SetMultiplier error: %v", err)
	}

	saved := filepath.Join(dir, "calibration.yaml")
	data, err := os.ReadFile(saved)
	if err != nil {
		t.Fatalf("calibration file not written: %v", err)
	}
	if !strings.Contains(string(data), "main") {
		t.Errorf("saved file missing role:\n%s", data)
	}

	reopened, err := openCalibration(cfgPath, "calibration.yaml")
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	if got := reopened.Multiplier("main"); math.Abs(got-1.02) > 1e-9 {
		t.Errorf("reloaded multiplier = %v, want 1.02", got)
	}
}

// ---------- runReport ----------

func testConfig() *config.Config {
	return &config.Config{
		Location: config.LocationConfig{Latitude: 48.8566, Longitude: 2.3522, TimeZone: "UTC"},
		Reference: config.ReferenceConfig{
			Camera:        "ARRI Alexa Mini",
			Lens:          "Optimo 24-290",
			FocalLengthMm: 50,
		},
		Cameras: []config.CameraBody{
			{Name: "ARRI Alexa Mini", Sensor: optics.SensorGeometry{WidthMm: 28.25, HeightMm: 18.17}},
		},
		Lenses: []optics.LensSpec{
			optics.Prime("Cooke S4/i 32mm", 32, 2.0),
			{Name: "Optimo 24-290", MinFocalMm: 24, MaxFocalMm: 290, MaxApertureT: 2.8, Squeeze: 1},
		},
		Device: config.DeviceConfig{
			Name: "phone",
			Modules: []matching.DeviceCameraModule{
				{Role: "ultra", NativeHFOVDeg: 104, MinZoom: 1, MaxZoom: 2},
				{Role: "main", NativeHFOVDeg: 69, MinZoom: 1, MaxZoom: 3},
				{Role: "tele", NativeHFOVDeg: 23, MinZoom: 1, MaxZoom: 10},
			},
		},
		Defaults: config.DefaultsConfig{
			SunPathCadenceMin: 60,
			SunCacheSize:      8,
			PlannerWorkers:    2,
		},
	}
}

func newTestService(t *testing.T, cfg *config.Config) *scout.Service {
	t.Helper()
	svc, err := scout.New(cfg, nil)
	if err != nil {
		t.Fatalf("scout.New error: %v", err)
	}
	return svc
}

func TestRunReport(t *testing.T) {
	svc := newTestService(t, testConfig())
	day := time.Date(2024, time.June, 21, 0, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	if err := runReport(context.Background(), &buf, svc, day, 3); err != nil {
		t.Fatalf("runReport error: %v", err)
	}
	out := buf.String()

	// 50mm on a 28.25mm-wide sensor is ~31.55°; main (69°) zooms in ~2.19x.
	for _, want := range []string{
		"Reference: ARRI Alexa Mini + Optimo 24-290 @ 50.0 mm",
		"main module at 2.19x",
		"2024-06-21",
		"Sunrise:",
		"Golden hour:",
		"Path:",
		"Calendar (3 days)",
		"2024-06-23",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "No module matches") {
		t.Errorf("unexpected fallback:\n%s", out)
	}
}

func TestRunReport_NoCalendar(t *testing.T) {
	svc := newTestService(t, testConfig())
	day := time.Date(2024, time.March, 20, 0, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	if err := runReport(context.Background(), &buf, svc, day, 0); err != nil {
		t.Fatalf("runReport error: %v", err)
	}
	if strings.Contains(buf.String(), "Calendar") {
		t.Errorf("calendar printed with days=0:\n%s", buf.String())
	}
}

func TestRunReport_PolarNight(t *testing.T) {
	cfg := testConfig()
	cfg.Location.Latitude = 80
	cfg.Location.Longitude = 15
	svc := newTestService(t, cfg)
	day := time.Date(2024, time.December, 21, 0, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	if err := runReport(context.Background(), &buf, svc, day, 2); err != nil {
		t.Fatalf("runReport error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"does not rise or set", scout.ConditionPolarNight} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Sunrise:") {
		t.Errorf("polar night printed a sunrise:\n%s", out)
	}
}

func TestRunReport_Cancelled(t *testing.T) {
	svc := newTestService(t, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	if err := runReport(ctx, &buf, svc, time.Now(), 1); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestFormatDayLength(t *testing.T) {
	cases := []struct {
		minutes float64
		want    string
	}{
		{0, "0h00m"},
		{59.6, "1h00m"},
		{16*60 + 5, "16h05m"},
	}
	for _, tc := range cases {
		if got := formatDayLength(tc.minutes); got != tc.want {
			t.Errorf("formatDayLength(%v) = %q, want %q", tc.minutes, got, tc.want)
		}
	}
}
