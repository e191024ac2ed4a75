// Package scout composes the optics, matching and solar engines with the
// catalog, the calibration store and a sun-day cache.
package scout

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/cjeanneret/ScoutCam/internal/calibration"
	"github.com/cjeanneret/ScoutCam/internal/config"
	"github.com/cjeanneret/ScoutCam/internal/debug"
	"github.com/cjeanneret/ScoutCam/internal/logic/matching"
	"github.com/cjeanneret/ScoutCam/internal/logic/optics"
	"github.com/cjeanneret/ScoutCam/internal/logic/solar"
)

var (
	ErrUnknownCamera   = errors.New("unknown camera")
	ErrUnknownLens     = errors.New("unknown lens")
	ErrUnknownRole     = errors.New("unknown module role")
	ErrFocalOutOfRange = errors.New("focal length out of lens range")
)

// Service answers scouting queries against one loaded configuration.
// It is safe for concurrent use.
type Service struct {
	cfg     *config.Config
	modules []matching.DeviceCameraModule // default presentation order
	calib   *calibration.Store
	days    *lru.Cache // dayKey -> SunDay
	cadence time.Duration
	workers int
}

// New builds a service. A nil store means in-memory calibration with no
// overrides.
func New(cfg *config.Config, store *calibration.Store) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("scout: config is nil")
	}
	for _, m := range cfg.Device.Modules {
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("scout: %w", err)
		}
	}
	if store == nil {
		store = calibration.NewStore(nil)
	}

	size := cfg.Defaults.SunCacheSize
	if size <= 0 {
		size = 128
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("scout: sun cache: %w", err)
	}

	cadence := cfg.SunPathCadence()
	if cadence <= 0 {
		cadence = solar.DefaultCadence
	}

	return &Service{
		cfg:     cfg,
		modules: matching.SortModules(cfg.Device.Modules),
		calib:   store,
		days:    cache,
		cadence: cadence,
		workers: max(cfg.Defaults.PlannerWorkers, 1),
	}, nil
}

// Calibration returns the store the service reads multipliers from.
func (s *Service) Calibration() *calibration.Store {
	return s.calib
}

// Modules returns the device modules in default order.
func (s *Service) Modules() []matching.DeviceCameraModule {
	out := make([]matching.DeviceCameraModule, len(s.modules))
	copy(out, s.modules)
	return out
}

// Module looks up a device module by role.
func (s *Service) Module(role string) (matching.DeviceCameraModule, error) {
	for _, m := range s.modules {
		if m.Role == role {
			return m, nil
		}
	}
	return matching.DeviceCameraModule{}, fmt.Errorf("%w: %q", ErrUnknownRole, role)
}

// Catalog is the browsable content of the configuration.
type Catalog struct {
	Reference config.ReferenceConfig        `json:"reference"`
	Cameras   []config.CameraBody           `json:"cameras"`
	Lenses    []optics.LensSpec             `json:"lenses"`
	Modules   []matching.DeviceCameraModule `json:"modules"`
}

// Catalog returns the cameras, lenses and device modules.
func (s *Service) Catalog() Catalog {
	return Catalog{
		Reference: s.cfg.Reference,
		Cameras:   append([]config.CameraBody(nil), s.cfg.Cameras...),
		Lenses:    append([]optics.LensSpec(nil), s.cfg.Lenses...),
		Modules:   s.Modules(),
	}
}

// --- Calibration ---

// ModuleCalibration is the effective multiplier of one module.
type ModuleCalibration struct {
	Role       string  `json:"role"`
	Multiplier float64 `json:"multiplier"`
	Override   bool    `json:"override"`
}

// CalibrationState lists every module's multiplier in default order.
func (s *Service) CalibrationState() []ModuleCalibration {
	snap := s.calib.Snapshot()
	out := make([]ModuleCalibration, len(s.modules))
	for i, m := range s.modules {
		_, override := snap[m.Role]
		out[i] = ModuleCalibration{Role: m.Role, Multiplier: snap.Multiplier(m.Role), Override: override}
	}
	return out
}

// SetMultiplier stores a multiplier for a known module role and returns
// the clamped value.
func (s *Service) SetMultiplier(role string, value float64) (float64, error) {
	if _, err := s.Module(role); err != nil {
		return 0, err
	}
	v, err := s.calib.SetMultiplier(value, role)
	if err != nil {
		return 0, err
	}
	debug.Live("Calibration: %s = %.4f", role, v)
	return v, nil
}

// ResetMultiplier reverts a known module role to 1.0.
func (s *Service) ResetMultiplier(role string) error {
	if _, err := s.Module(role); err != nil {
		return err
	}
	s.calib.ResetMultiplier(role)
	debug.Live("Calibration: %s reset", role)
	return nil
}

// ResetAll reverts the listed roles, or every device module when roles
// is empty.
func (s *Service) ResetAll(roles []string) error {
	if len(roles) == 0 {
		roles = s.cfg.ModuleRoles()
	}
	for _, role := range roles {
		if _, err := s.Module(role); err != nil {
			return err
		}
	}
	s.calib.ResetAll(roles)
	debug.Live("Calibration: reset %v", roles)
	return nil
}

// --- Matching ---

// MatchRequest selects a reference camera and lens. Empty names fall back
// to the configured reference.
type MatchRequest struct {
	Camera        string  `json:"camera"`
	Lens          string  `json:"lens"`
	FocalLengthMm float64 `json:"focal_length_mm"` // zoom lenses; 0 = reference focal, then wide end
}

// MatchReport is the device setting that reproduces a reference framing.
type MatchReport struct {
	Camera            string               `json:"camera,omitempty"`
	Lens              string               `json:"lens,omitempty"`
	FocalLengthMm     float64              `json:"focal_length_mm,omitempty"`
	Target            optics.FieldOfView   `json:"target_rad"`
	TargetHFOVDeg     float64              `json:"target_hfov_deg"`
	Result            matching.MatchResult `json:"result"`
	AchievedHFOVDeg   float64              `json:"achieved_hfov_deg"`
	ErrorDeg          float64              `json:"error_deg"`
	EquivalentFocalMm float64              `json:"equivalent_focal_mm,omitempty"`
	Multiplier        float64              `json:"multiplier"`
	Fallback          bool                 `json:"fallback"`
}

// Match resolves the reference framing and finds the device module and
// zoom closest to it.
func (s *Service) Match(ctx context.Context, req MatchRequest) (MatchReport, error) {
	if err := ctx.Err(); err != nil {
		return MatchReport{}, err
	}

	camName := firstNonEmpty(req.Camera, s.cfg.Reference.Camera)
	lensName := firstNonEmpty(req.Lens, s.cfg.Reference.Lens)
	cam, ok := s.cfg.Camera(camName)
	if !ok {
		return MatchReport{}, fmt.Errorf("%w: %q", ErrUnknownCamera, camName)
	}
	lens, ok := s.cfg.Lens(lensName)
	if !ok {
		return MatchReport{}, fmt.Errorf("%w: %q", ErrUnknownLens, lensName)
	}

	requested := req.FocalLengthMm
	if requested == 0 && lensName == s.cfg.Reference.Lens {
		requested = s.cfg.Reference.FocalLengthMm
	}
	focal, err := lens.FocalAt(requested)
	if err != nil {
		return MatchReport{}, fmt.Errorf("%w: %v", ErrFocalOutOfRange, err)
	}

	frame := optics.Frame(cam.Sensor, lens, focal)
	debug.Section("Match " + cam.Name + " / " + lens.Name)
	debug.Verbose("Focal %.1f mm, squeeze %.2f", focal, lens.Squeeze)
	debug.PrintStruct("FOV (rad)", frame)

	report, err := s.MatchTarget(ctx, frame.Horizontal)
	if err != nil {
		return MatchReport{}, err
	}
	report.Camera = cam.Name
	report.Lens = lens.Name
	report.FocalLengthMm = focal
	report.Target = frame
	report.EquivalentFocalMm = matching.EquivalentFocal(report.Result, cam.Sensor, lens.Squeeze)
	return report, nil
}

// MatchTarget matches a raw horizontal FOV in radians. When no module can
// serve it, the main module at 1.0x is reported with Fallback set.
func (s *Service) MatchTarget(ctx context.Context, targetHFOVRad float64) (MatchReport, error) {
	if err := ctx.Err(); err != nil {
		return MatchReport{}, err
	}

	snap := s.calib.Snapshot()
	if debug.IsEnabled(debug.LevelVerbose) {
		for _, m := range s.modules {
			debug.Verbose("  %s: native %.2f deg x %.4f, zoom %.2f-%.2f",
				m.Role, m.NativeHFOVDeg, snap.Multiplier(m.Role), m.MinZoom, m.MaxZoom)
		}
	}

	res, ok := matching.MatchModule(targetHFOVRad, s.modules, snap)
	fallback := false
	if !ok {
		main, err := s.Module(matching.RoleMain)
		if err != nil {
			return MatchReport{}, fmt.Errorf("no module matches target %g rad: %w", targetHFOVRad, err)
		}
		achieved := optics.DegreesToRadians(main.NativeHFOVDeg * snap.Multiplier(main.Role))
		res = matching.MatchResult{Role: main.Role, Zoom: 1.0, AchievedRad: achieved}
		if targetHFOVRad > 0 {
			res.ErrorRad = math.Abs(achieved - targetHFOVRad)
		}
		fallback = true
		debug.Info("No module matches target %g rad, falling back to %s at 1.0x", targetHFOVRad, main.Role)
	}
	debug.Match(res.Role, res.Zoom, res.ErrorRad)

	return MatchReport{
		Target:          optics.FieldOfView{Horizontal: targetHFOVRad},
		TargetHFOVDeg:   optics.RadiansToDegrees(targetHFOVRad),
		Result:          res,
		AchievedHFOVDeg: optics.RadiansToDegrees(res.AchievedRad),
		ErrorDeg:        optics.RadiansToDegrees(res.ErrorRad),
		Multiplier:      snap.Multiplier(res.Role),
		Fallback:        fallback,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
