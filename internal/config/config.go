package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cjeanneret/ScoutCam/internal/logic/matching"
	"github.com/cjeanneret/ScoutCam/internal/logic/optics"
	"github.com/cjeanneret/ScoutCam/internal/logic/solar"
)

// LocationConfig is the default scouting location.
type LocationConfig struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	TimeZone  string  `yaml:"time_zone"` // IANA name, e.g. "Europe/Paris"
}

// CameraBody is a reference cinema/photo camera from the catalog.
type CameraBody struct {
	Name   string                `yaml:"name" json:"name"`
	Sensor optics.SensorGeometry `yaml:"sensor" json:"sensor"`
}

// ReferenceConfig selects the camera+lens the device should emulate.
type ReferenceConfig struct {
	Camera        string  `yaml:"camera" json:"camera"`
	Lens          string  `yaml:"lens" json:"lens"`
	FocalLengthMm float64 `yaml:"focal_length_mm" json:"focal_length_mm"` // zoom lenses only; 0 = wide end
}

// DeviceConfig lists the capture modules of the scouting device.
type DeviceConfig struct {
	Name    string                        `yaml:"name"`
	Modules []matching.DeviceCameraModule `yaml:"modules"`
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	SunPathCadenceMin int    `yaml:"sun_path_cadence_min"` // sun path sampling interval (default: 30)
	SunCacheSize      int    `yaml:"sun_cache_size"`       // cached sun days (default: 128)
	PlannerWorkers    int    `yaml:"planner_workers"`      // concurrent days in a plan (default: 4)
	CalibrationFile   string `yaml:"calibration_file"`     // empty = in-memory calibration only
	DebugLevel        int    `yaml:"debug_level"`          // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
}

// Config aggregates all application configuration.
type Config struct {
	Location  LocationConfig    `yaml:"location"`
	Reference ReferenceConfig   `yaml:"reference"`
	Cameras   []CameraBody      `yaml:"cameras"`
	Lenses    []optics.LensSpec `yaml:"lenses"`
	Device    DeviceConfig      `yaml:"device"`
	Defaults  DefaultsConfig    `yaml:"defaults"`

	loc *time.Location // resolved Location.TimeZone, set by Validate
}

// ValidateConfigPath checks that path names a .yaml file directly inside
// a configs/ directory, with no traversal.
func ValidateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	if strings.Contains(filepath.ToSlash(path), "..") {
		return fmt.Errorf("config path must not contain '..': %s", path)
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config file must have .yaml extension: %s", path)
	}
	if filepath.Base(filepath.Dir(clean)) != "configs" {
		return fmt.Errorf("config file must be in a configs/ directory: %s", path)
	}
	return nil
}

// MaxConfigFileBytes caps the size of a config file accepted by Load.
const MaxConfigFileBytes = 1 << 20

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), MaxConfigFileBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Location.TimeZone == "" {
		c.Location.TimeZone = "UTC"
	}
	if c.Defaults.SunPathCadenceMin <= 0 {
		c.Defaults.SunPathCadenceMin = 30 // matches solar.DefaultCadence
	}
	if c.Defaults.SunCacheSize <= 0 {
		c.Defaults.SunCacheSize = 128
	}
	if c.Defaults.PlannerWorkers <= 0 {
		c.Defaults.PlannerWorkers = 4
	}
	for i := range c.Lenses {
		if c.Lenses[i].Squeeze == 0 {
			c.Lenses[i].Squeeze = 1.0 // spherical
		}
		if c.Lenses[i].MaxFocalMm == 0 {
			c.Lenses[i].MaxFocalMm = c.Lenses[i].MinFocalMm // prime
		}
	}
}

// Validate checks catalog invariants so the engines can assume them.
func (c *Config) Validate() error {
	if err := c.Coordinate().Validate(); err != nil {
		return fmt.Errorf("location: %w", err)
	}
	loc, err := time.LoadLocation(c.Location.TimeZone)
	if err != nil {
		return fmt.Errorf("location.time_zone: %w", err)
	}
	c.loc = loc

	cameras := make(map[string]bool, len(c.Cameras))
	for _, cam := range c.Cameras {
		if cam.Name == "" {
			return fmt.Errorf("camera name is required")
		}
		if cameras[cam.Name] {
			return fmt.Errorf("duplicate camera %q", cam.Name)
		}
		if err := cam.Sensor.Validate(); err != nil {
			return fmt.Errorf("camera %q: %w", cam.Name, err)
		}
		cameras[cam.Name] = true
	}

	lenses := make(map[string]bool, len(c.Lenses))
	for _, l := range c.Lenses {
		if l.Name == "" {
			return fmt.Errorf("lens name is required")
		}
		if lenses[l.Name] {
			return fmt.Errorf("duplicate lens %q", l.Name)
		}
		if err := l.Validate(); err != nil {
			return err
		}
		lenses[l.Name] = true
	}

	if len(c.Device.Modules) == 0 {
		return fmt.Errorf("device.modules must list at least one module")
	}
	roles := make(map[string]bool, len(c.Device.Modules))
	for _, m := range c.Device.Modules {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("device: %w", err)
		}
		if roles[m.Role] {
			return fmt.Errorf("device: duplicate module role %q", m.Role)
		}
		roles[m.Role] = true
	}

	if c.Reference.Camera != "" && !cameras[c.Reference.Camera] {
		return fmt.Errorf("reference.camera %q not in cameras", c.Reference.Camera)
	}
	if c.Reference.Lens != "" && !lenses[c.Reference.Lens] {
		return fmt.Errorf("reference.lens %q not in lenses", c.Reference.Lens)
	}
	if math.IsNaN(c.Reference.FocalLengthMm) || c.Reference.FocalLengthMm < 0 {
		return fmt.Errorf("reference.focal_length_mm must be >= 0, got %g", c.Reference.FocalLengthMm)
	}
	if c.Defaults.SunPathCadenceMin > 24*60 {
		return fmt.Errorf("sun_path_cadence_min must be <= 1440, got %d", c.Defaults.SunPathCadenceMin)
	}
	return nil
}

// Coordinate returns the default location as a solar coordinate.
func (c *Config) Coordinate() solar.GeoCoordinate {
	return solar.GeoCoordinate{Latitude: c.Location.Latitude, Longitude: c.Location.Longitude}
}

// TimeLocation returns the configured time zone, as resolved by the last
// Validate. A zone changed since then, or a Config that was never
// validated, is loaded on each call; UTC is returned if it does not load.
func (c *Config) TimeLocation() *time.Location {
	if c.loc != nil && c.loc.String() == c.Location.TimeZone {
		return c.loc
	}
	loc, err := time.LoadLocation(c.Location.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SunPathCadence returns the sun path sampling interval.
func (c *Config) SunPathCadence() time.Duration {
	return time.Duration(c.Defaults.SunPathCadenceMin) * time.Minute
}

// Camera looks up a camera body by name.
func (c *Config) Camera(name string) (CameraBody, bool) {
	for _, cam := range c.Cameras {
		if cam.Name == name {
			return cam, true
		}
	}
	return CameraBody{}, false
}

// Lens looks up a lens by name.
func (c *Config) Lens(name string) (optics.LensSpec, bool) {
	for _, l := range c.Lenses {
		if l.Name == name {
			return l, true
		}
	}
	return optics.LensSpec{}, false
}

// ModuleRoles returns the device module roles in catalog order.
func (c *Config) ModuleRoles() []string {
	roles := make([]string, len(c.Device.Modules))
	for i, m := range c.Device.Modules {
		roles[i] = m.Role
	}
	return roles
}
