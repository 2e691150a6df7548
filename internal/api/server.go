package api

import (
	"math"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/core4ce/h5n1-tracker/internal/db"
	"github.com/core4ce/h5n1-tracker/internal/ingest"
)

type Server struct {
	Store *db.Store
	Echo  *echo.Echo
	DB    *pgxpool.Pool

	pipeline *ingest.Pipeline

	// Ingestion runs must not overlap; the idempotency guarantee assumes
	// serialized runs.
	ingestMu sync.Mutex
}

func NewServer(pool *pgxpool.Pool, pipeline *ingest.Pipeline) *Server {
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	allowedOrigins := []string{"http://localhost:4200"}
	if extra := os.Getenv("CORS_ORIGINS"); extra != "" {
		for _, o := range strings.Split(extra, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				allowedOrigins = append(allowedOrigins, o)
			}
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, "X-Admin-Secret"},
	}))

	s := &Server{
		DB:       pool,
		Store:    db.NewStore(pool),
		Echo:     e,
		pipeline: pipeline,
	}

	s.routes()
	return s
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)

	api := s.Echo.Group("/api/v1")
	api.GET("/cases", s.handleListCases)
	api.GET("/cases/:id", s.handleGetCase)
	api.GET("/map-data", s.handleMapData)
	api.GET("/dashboard/overview", s.handleOverview)
	api.GET("/alerts/recent", s.handleRecentAlerts)
	api.GET("/imports", s.handleListImports)

	admin := api.Group("")
	admin.Use(s.adminMiddleware)
	admin.POST("/ingest/all", s.handleIngestAll)
	admin.POST("/ingest/:dataset", s.handleIngestDataset)
}

func (s *Server) handleHealth(c echo.Context) error {
	if err := s.DB.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListCases(c echo.Context) error {
	params := db.ListParams{
		State:    c.QueryParam("state"),
		County:   c.QueryParam("county"),
		Category: c.QueryParam("category"),
		Severity: c.QueryParam("severity"),
		Status:   c.QueryParam("status"),
		Source:   c.QueryParam("source"),
	}
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			params.Limit = n
		}
	}
	if v := c.QueryParam("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			params.Offset = n
		}
	}
	for param, dest := range map[string]**time.Time{
		"start_date": &params.StartDate,
		"end_date":   &params.EndDate,
	} {
		if v := c.QueryParam(param); v != "" {
			t, err := time.Parse("2006-01-02", v)
			if err != nil {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": param + " must be YYYY-MM-DD"})
			}
			*dest = &t
		}
	}

	result, err := s.Store.ListCases(c.Request().Context(), params)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list cases"})
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleGetCase(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid case id"})
	}
	rec, err := s.Store.GetCase(c.Request().Context(), id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "case not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get case"})
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) handleMapData(c echo.Context) error {
	points, err := s.Store.MapData(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load map data"})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"points":   points,
		"count":    len(points),
		"hotspots": gridHotspots(points),
	})
}

// hotspot is a one-degree grid cell with enough activity to highlight.
type hotspot struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	CaseCount int     `json:"case_count"`
}

// gridHotspots bins geocoded cases into one-degree cells and returns cells
// with more than one case, ordered by count.
func gridHotspots(points []db.MapPoint) []hotspot {
	type cell struct{ lat, lon int }
	counts := make(map[cell]int)
	for _, p := range points {
		counts[cell{int(math.Floor(p.Latitude)), int(math.Floor(p.Longitude))}]++
	}

	hotspots := []hotspot{}
	for c, n := range counts {
		if n < 2 {
			continue
		}
		hotspots = append(hotspots, hotspot{
			Latitude:  float64(c.lat) + 0.5,
			Longitude: float64(c.lon) + 0.5,
			CaseCount: n,
		})
	}
	sort.Slice(hotspots, func(i, j int) bool { return hotspots[i].CaseCount > hotspots[j].CaseCount })
	return hotspots
}

func (s *Server) handleOverview(c echo.Context) error {
	overview, err := s.Store.DashboardOverview(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to build overview"})
	}
	return c.JSON(http.StatusOK, overview)
}

func (s *Server) handleRecentAlerts(c echo.Context) error {
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	alerts, err := s.Store.RecentAlerts(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load alerts"})
	}
	return c.JSON(http.StatusOK, map[string]any{"alerts": alerts, "count": len(alerts)})
}

func (s *Server) handleListImports(c echo.Context) error {
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	imports, err := s.Store.ListImports(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list imports"})
	}
	return c.JSON(http.StatusOK, map[string]any{"imports": imports, "count": len(imports)})
}

func (s *Server) handleIngestDataset(c echo.Context) error {
	dataset := c.Param("dataset")

	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	report, err := s.pipeline.IngestDataset(c.Request().Context(), dataset)
	if err != nil {
		report.Error = err.Error()
		return c.JSON(http.StatusUnprocessableEntity, report)
	}
	return c.JSON(http.StatusOK, report)
}

func (s *Server) handleIngestAll(c echo.Context) error {
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	reports := s.pipeline.IngestAll(c.Request().Context())
	return c.JSON(http.StatusOK, map[string]any{"reports": reports})
}

func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		secret := strings.TrimSpace(os.Getenv("ADMIN_SECRET"))
		if secret == "" {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Server admin configuration error"})
		}

		authHeader := c.Request().Header.Get("Authorization")
		adminHeader := c.Request().Header.Get("X-Admin-Secret")

		if adminHeader == secret {
			return next(c)
		}
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
			if authHeader[7:] == secret {
				return next(c)
			}
		}
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized admin access"})
	}
}
