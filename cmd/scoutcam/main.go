package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/cjeanneret/ScoutCam/internal/calibration"
	"github.com/cjeanneret/ScoutCam/internal/config"
	"github.com/cjeanneret/ScoutCam/internal/debug"
	"github.com/cjeanneret/ScoutCam/internal/logic/optics"
	"github.com/cjeanneret/ScoutCam/internal/scout"
	"github.com/cjeanneret/ScoutCam/internal/web"
)

// overrides holds CLI values that replace config entries. Empty strings
// and zero numbers mean "use config"; lat/lon use explicit flags since 0
// is a valid coordinate.
type overrides struct {
	Latitude, Longitude       float64
	HasLatitude, HasLongitude bool
	TimeZone                  string
	Camera, Lens              string
	FocalLengthMm             float64
	Date                      string
	Days                      int
}

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	lat := flag.Float64("lat", 0, "override latitude in degrees (-90..90)")
	lon := flag.Float64("lon", 0, "override longitude in degrees (-180..180)")
	tz := flag.String("tz", "", "override IANA time zone, e.g. Europe/Paris")
	date := flag.String("date", "", "day to report, YYYY-MM-DD (default: today)")
	cameraName := flag.String("camera", "", "override reference camera")
	lensName := flag.String("lens", "", "override reference lens")
	focalLengthMm := flag.Float64("focal_length_mm", 0, "override reference focal length in mm (zoom lenses)")
	days := flag.Int("days", 0, "also print a sun calendar of N days (1-31)")
	flag.Parse()

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	o := overrides{
		Latitude:      *lat,
		Longitude:     *lon,
		HasLatitude:   set["lat"],
		HasLongitude:  set["lon"],
		TimeZone:      *tz,
		Camera:        *cameraName,
		Lens:          *lensName,
		FocalLengthMm: *focalLengthMm,
		Date:          *date,
		Days:          *days,
	}
	if err := validateCLIOverrides(o); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	applyOverrides(cfg, o)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration after overrides: %v", err)
	}

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)

	debug.Step(1, "Loading calibration")
	store, err := openCalibration(*cfgPath, cfg.Defaults.CalibrationFile)
	if err != nil {
		log.Fatalf("load calibration failed: %v", err)
	}
	debug.PrintStruct("Calibration", store.Snapshot())

	debug.Step(2, "Building scout service")
	svc, err := scout.New(cfg, store)
	if err != nil {
		log.Fatalf("init scout service failed: %v", err)
	}
	debug.Value("Modules", cfg.ModuleRoles())
	debug.Value("Location", cfg.Coordinate())
	debug.Value("Time zone", cfg.Location.TimeZone)

	if port := webPort.port(); port > 0 {
		webAddr := fmt.Sprintf(":%d", port)
		broadcaster := web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))

		srv, err := web.NewServer(webAddr, svc, broadcaster)
		if err != nil {
			log.Fatalf("init web server: %v", err)
		}
		if err := srv.Run(ctx); err != nil {
			log.Fatalf("web server: %v", err)
		}
		return
	}

	loc := cfg.TimeLocation()
	day := time.Now().In(loc)
	if o.Date != "" {
		day, _ = time.ParseInLocation(time.DateOnly, o.Date, loc) // checked by validateCLIOverrides
	}
	if err := runReport(ctx, os.Stdout, svc, day, o.Days); err != nil {
		log.Fatalf("report failed: %v", err)
	}
}

// openCalibration returns an in-memory store, or a file-backed one that
// saves itself on every change when file is set. A relative file is
// resolved against the config file's directory.
func openCalibration(cfgPath, file string) (*calibration.Store, error) {
	if file == "" {
		return calibration.NewStore(nil), nil
	}
	fileStore := calibration.NewFileStore(calibrationPath(cfgPath, file))
	store, err := fileStore.Load()
	if err != nil {
		return nil, err
	}
	store.OnChange(func(calibration.Change) {
		if err := fileStore.Save(store); err != nil {
			debug.Error(fmt.Errorf("save calibration: %w", err))
		}
	})
	debug.Value("Calibration file", fileStore.Path())
	return store, nil
}

func calibrationPath(cfgPath, file string) string {
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(filepath.Dir(cfgPath), file)
}

// runReport prints the framing match for the reference camera/lens and the
// sun data of day, plus a calendar when days > 0.
func runReport(ctx context.Context, w io.Writer, svc *scout.Service, day time.Time, days int) error {
	report, err := svc.Match(ctx, scout.MatchRequest{})
	if err != nil {
		return fmt.Errorf("match: %w", err)
	}
	debug.Summary("Framing Match")
	fmt.Fprintf(w, "Reference: %s + %s @ %.1f mm\n", report.Camera, report.Lens, report.FocalLengthMm)
	fmt.Fprintf(w, "  Target FOV: %.2f° H x %.2f° V (%.2f° diag)\n",
		report.TargetHFOVDeg,
		optics.RadiansToDegrees(report.Target.Vertical),
		optics.RadiansToDegrees(report.Target.Diagonal))
	fmt.Fprintf(w, "  Device:     %s module at %.2fx (multiplier %.3f)\n", report.Result.Role, report.Result.Zoom, report.Multiplier)
	fmt.Fprintf(w, "  Achieved:   %.2f° (error %.3f°, ~%.1f mm equivalent)\n", report.AchievedHFOVDeg, report.ErrorDeg, report.EquivalentFocalMm)
	if report.Fallback {
		fmt.Fprintln(w, "  No module matches; using main at 1.0x")
	}

	coord, loc := svc.Location()
	sd, err := svc.SunDay(coord, day, loc, 0)
	if err != nil {
		return fmt.Errorf("sun: %w", err)
	}
	debug.Summary("Sun")
	fmt.Fprintf(w, "\nSun at %.4f, %.4f on %s (%s)\n", coord.Latitude, coord.Longitude, sd.Date, loc)
	writeSunDay(w, sd)
	if sd.Times != nil {
		fmt.Fprintln(w, "  Path:")
		for _, s := range sd.Path {
			fmt.Fprintf(w, "    %s  az %6.1f°  alt %5.1f°\n", s.Time.Format("15:04"), s.Azimuth, s.Altitude)
		}
	}

	if days <= 0 {
		return nil
	}
	plan, err := svc.Plan(ctx, coord, day, days, loc)
	if err != nil {
		return fmt.Errorf("plan: %w", err)
	}
	fmt.Fprintf(w, "\nCalendar (%d days)\n", days)
	for _, p := range plan {
		fmt.Fprintf(w, "  %s ", p.Date)
		if p.Times == nil {
			fmt.Fprintf(w, "%s, noon %s, max %.1f°\n", p.Condition, p.SolarNoon.Format("15:04"), p.MaxAltitudeDeg)
			continue
		}
		fmt.Fprintf(w, "rise %s  noon %s  set %s  (%s)\n",
			p.Times.Sunrise.Format("15:04"), p.Times.SolarNoon.Format("15:04"), p.Times.Sunset.Format("15:04"),
			formatDayLength(p.DayLengthMin))
	}
	return nil
}

func writeSunDay(w io.Writer, sd scout.SunDay) {
	if sd.Times == nil {
		fmt.Fprintf(w, "  Sun does not rise or set today (%s); noon %s, max altitude %.1f°\n",
			sd.Condition, sd.SolarNoon.Format("15:04"), sd.MaxAltitudeDeg)
		return
	}
	fmt.Fprintf(w, "  Sunrise:    %s\n", sd.Times.Sunrise.Format("15:04:05"))
	fmt.Fprintf(w, "  Solar noon: %s (altitude %.1f°)\n", sd.Times.SolarNoon.Format("15:04:05"), sd.MaxAltitudeDeg)
	fmt.Fprintf(w, "  Sunset:     %s\n", sd.Times.Sunset.Format("15:04:05"))
	fmt.Fprintf(w, "  Day length: %s\n", formatDayLength(sd.DayLengthMin))
	if g := sd.Golden; g != nil {
		fmt.Fprintf(w, "  Golden hour: %s-%s and %s-%s\n",
			g.Morning.Start.Format("15:04"), g.Morning.End.Format("15:04"),
			g.Evening.Start.Format("15:04"), g.Evening.End.Format("15:04"))
	}
}

func formatDayLength(minutes float64) string {
	d := time.Duration(math.Round(minutes)) * time.Minute
	return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
}

// validateCLIOverrides checks that set CLI overrides are within valid ranges.
func validateCLIOverrides(o overrides) error {
	if o.HasLatitude {
		if math.IsNaN(o.Latitude) || math.IsInf(o.Latitude, 0) || o.Latitude < -90 || o.Latitude > 90 {
			return fmt.Errorf("lat must be between -90 and 90, got %g", o.Latitude)
		}
	}
	if o.HasLongitude {
		if math.IsNaN(o.Longitude) || math.IsInf(o.Longitude, 0) || o.Longitude < -180 || o.Longitude > 180 {
			return fmt.Errorf("lon must be between -180 and 180, got %g", o.Longitude)
		}
	}
	if o.FocalLengthMm != 0 {
		if math.IsNaN(o.FocalLengthMm) || math.IsInf(o.FocalLengthMm, 0) || o.FocalLengthMm < 0 {
			return fmt.Errorf("focal_length_mm must be a positive number, got %g", o.FocalLengthMm)
		}
	}
	if o.TimeZone != "" {
		if _, err := time.LoadLocation(o.TimeZone); err != nil {
			return fmt.Errorf("tz: %w", err)
		}
	}
	if o.Date != "" {
		if _, err := time.Parse(time.DateOnly, o.Date); err != nil {
			return fmt.Errorf("date must be YYYY-MM-DD, got %q", o.Date)
		}
	}
	if o.Days < 0 || o.Days > scout.MaxPlanDays {
		return fmt.Errorf("days must be between 0 and %d, got %d", scout.MaxPlanDays, o.Days)
	}
	return nil
}

// applyOverrides mutates cfg with overrides. Only set values are applied.
func applyOverrides(cfg *config.Config, o overrides) {
	if o.HasLatitude {
		cfg.Location.Latitude = o.Latitude
	}
	if o.HasLongitude {
		cfg.Location.Longitude = o.Longitude
	}
	if o.TimeZone != "" {
		cfg.Location.TimeZone = o.TimeZone
	}
	if o.Camera != "" {
		cfg.Reference.Camera = o.Camera
	}
	if o.Lens != "" {
		cfg.Reference.Lens = o.Lens
	}
	if o.FocalLengthMm > 0 {
		cfg.Reference.FocalLengthMm = o.FocalLengthMm
	}
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
