package web

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cjeanneret/ScoutCam/internal/debug"
	"github.com/cjeanneret/ScoutCam/internal/logic/solar"
	"github.com/cjeanneret/ScoutCam/internal/scout"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// statusClientClosedRequest is the nginx code for a request the client
// abandoned before the response was ready.
const statusClientClosedRequest = 499

// defaultPlanDays is used when /api/sun/plan has no days parameter.
const defaultPlanDays = 7

// heartbeatInterval keeps idle SSE connections open through proxies.
var heartbeatInterval = 30 * time.Second

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Service     *scout.Service
	Broadcaster *StatusBroadcaster
	staticFS    fs.FS
}

// NewHandlers creates handlers with the given dependencies.
func NewHandlers(svc *scout.Service, broadcaster *StatusBroadcaster, staticFS fs.FS) *Handlers {
	return &Handlers{
		Service:     svc,
		Broadcaster: broadcaster,
		staticFS:    staticFS,
	}
}

func abortError(c *gin.Context, status int, err error) {
	if status == statusClientClosedRequest {
		// Nobody is reading the body.
		c.AbortWithStatus(status)
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, scout.ErrUnknownCamera),
		errors.Is(err, scout.ErrUnknownLens),
		errors.Is(err, scout.ErrUnknownRole):
		return http.StatusNotFound
	case errors.Is(err, scout.ErrFocalOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"sse_clients": h.Broadcaster.Clients(),
	})
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(c *gin.Context) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		c.String(http.StatusNotFound, "not found")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", data)
}

// HandleCatalog returns cameras, lenses and device modules.
func (h *Handlers) HandleCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, h.Service.Catalog())
}

// HandleMatch handles POST /api/match.
func (h *Handlers) HandleMatch(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)

	var req scout.MatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}
	if req.FocalLengthMm < 0 {
		abortError(c, http.StatusBadRequest, fmt.Errorf("focal_length_mm must be >= 0"))
		return
	}

	report, err := h.Service.Match(c.Request.Context(), req)
	if err != nil {
		abortError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// HandleSun handles GET /api/sun: one day of sun times, golden hours and path.
func (h *Handlers) HandleSun(c *gin.Context) {
	coord, loc, day, err := h.dayQuery(c)
	if err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	cadence, err := queryInt(c, "cadence_min", 0)
	if err != nil || cadence < 0 || cadence > 24*60 {
		abortError(c, http.StatusBadRequest, fmt.Errorf("cadence_min must be an integer in [0, 1440]"))
		return
	}

	sd, err := h.Service.SunDay(coord, day, loc, time.Duration(cadence)*time.Minute)
	if err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, sd)
}

// HandleSunPosition handles GET /api/sun/position.
func (h *Handlers) HandleSunPosition(c *gin.Context) {
	coord, err := h.coordQuery(c)
	if err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	at := time.Now()
	if s := c.Query("time"); s != "" {
		if at, err = time.Parse(time.RFC3339, s); err != nil {
			abortError(c, http.StatusBadRequest, fmt.Errorf("time must be RFC 3339: %w", err))
			return
		}
	}

	pos, err := h.Service.SunAt(coord, at)
	if err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, pos)
}

// HandleSunPlan handles GET /api/sun/plan: a multi-day calendar.
func (h *Handlers) HandleSunPlan(c *gin.Context) {
	coord, loc, day, err := h.dayQuery(c)
	if err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	days, err := queryInt(c, "days", defaultPlanDays)
	if err != nil || days < 1 || days > scout.MaxPlanDays {
		abortError(c, http.StatusBadRequest, fmt.Errorf("days must be an integer in [1, %d]", scout.MaxPlanDays))
		return
	}

	plan, err := h.Service.Plan(c.Request.Context(), coord, day, days, loc)
	if err != nil {
		abortError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": plan})
}

// HandleCalibration handles GET /api/calibration.
func (h *Handlers) HandleCalibration(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"modules": h.Service.CalibrationState()})
}

type multiplierBody struct {
	Multiplier *float64 `json:"multiplier"`
}

// HandleSetMultiplier handles PUT /api/calibration/:role.
func (h *Handlers) HandleSetMultiplier(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)

	var body multiplierBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Multiplier == nil {
		abortError(c, http.StatusBadRequest, fmt.Errorf("body must be {\"multiplier\": <number>}"))
		return
	}
	role := c.Param("role")
	v, err := h.Service.SetMultiplier(role, *body.Multiplier)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadRequest
		}
		abortError(c, status, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"role": role, "multiplier": v})
}

// HandleResetMultiplier handles DELETE /api/calibration/:role.
func (h *Handlers) HandleResetMultiplier(c *gin.Context) {
	role := c.Param("role")
	if err := h.Service.ResetMultiplier(role); err != nil {
		abortError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"role": role, "multiplier": 1.0})
}

type resetBody struct {
	Roles []string `json:"roles"`
}

// HandleResetAll handles POST /api/calibration/reset. An empty body or
// role list resets every module.
func (h *Handlers) HandleResetAll(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)

	var body resetBody
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			abortError(c, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
			return
		}
	}
	if err := h.Service.ResetAll(body.Roles); err != nil {
		abortError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"modules": h.Service.CalibrationState()})
}

// HandleStatusStream handles GET /api/status/stream for SSE.
func (h *Handlers) HandleStatusStream(c *gin.Context) {
	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	w.WriteHeader(http.StatusOK)
	w.WriteString(": connected\n\n")
	w.Flush()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.WriteString("data: " + msg + "\n\n")
			w.Flush()

		case <-ticker.C:
			w.WriteString(": heartbeat\n\n")
			w.Flush()

		case <-c.Request.Context().Done():
			debug.Trace("SSE client disconnected")
			return
		}
	}
}

// --- query parsing ---

// coordQuery reads lat/lon, defaulting to the configured location.
func (h *Handlers) coordQuery(c *gin.Context) (solar.GeoCoordinate, error) {
	coord, _ := h.Service.Location()
	var err error
	if coord.Latitude, err = queryFloat(c, "lat", coord.Latitude); err != nil {
		return coord, err
	}
	if coord.Longitude, err = queryFloat(c, "lon", coord.Longitude); err != nil {
		return coord, err
	}
	return coord, coord.Validate()
}

// dayQuery reads lat/lon, tz (IANA name) and date (YYYY-MM-DD, default
// today in tz).
func (h *Handlers) dayQuery(c *gin.Context) (solar.GeoCoordinate, *time.Location, time.Time, error) {
	coord, err := h.coordQuery(c)
	if err != nil {
		return coord, nil, time.Time{}, err
	}
	_, loc := h.Service.Location()
	if tz := c.Query("tz"); tz != "" {
		if loc, err = time.LoadLocation(tz); err != nil {
			return coord, nil, time.Time{}, fmt.Errorf("tz: %w", err)
		}
	}
	day := time.Now().In(loc)
	if s := c.Query("date"); s != "" {
		if day, err = time.ParseInLocation(time.DateOnly, s, loc); err != nil {
			return coord, nil, time.Time{}, fmt.Errorf("date must be YYYY-MM-DD: %w", err)
		}
	}
	return coord, loc, day, nil
}

func queryFloat(c *gin.Context, key string, def float64) (float64, error) {
	s, ok := c.GetQuery(key)
	if !ok || s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s must be a finite number, got %q", key, s)
	}
	return v, nil
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	s, ok := c.GetQuery(key)
	if !ok || s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
