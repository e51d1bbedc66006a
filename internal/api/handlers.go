package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/paulmach/orb"

	"github.com/trailforge/trailforge_core/internal/cache"
	"github.com/trailforge/trailforge_core/internal/db"
	"github.com/trailforge/trailforge_core/internal/graph"
	"github.com/trailforge/trailforge_core/internal/models"
	"github.com/trailforge/trailforge_core/internal/store"
)

// Server holds the read-only API state: the persisted routes plus the
// in-memory graph built at startup
type Server struct {
	Store      *store.TrailStore
	Graph      *graph.Graph
	Components []models.Component
	CacheTTL   time.Duration
}

// Register mounts the API routes on the app
func (s *Server) Register(app *fiber.App) {
	app.Get("/health", s.Health)

	v1 := app.Group("/api/v1")
	v1.Get("/routes", s.ListRoutes)
	v1.Get("/routes/:uuid", s.GetRoute)
	v1.Get("/graph/stats", s.GraphStats)
	v1.Get("/vertices/nearest", s.NearestVertex)
}

// Health reports readiness of the database and cache
func (s *Server) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
	defer cancel()

	status := fiber.Map{"status": "ok"}
	code := fiber.StatusOK

	if err := db.HealthCheck(ctx); err != nil {
		status["database"] = err.Error()
		code = fiber.StatusServiceUnavailable
	} else {
		status["database"] = "ok"
	}

	if err := cache.HealthCheck(ctx); err != nil {
		// degraded but usable: the cache is an optimization
		status["cache"] = err.Error()
	} else {
		status["cache"] = "ok"
	}

	if code != fiber.StatusOK {
		status["status"] = "degraded"
	}
	return c.Status(code).JSON(status)
}

// ListRoutes serves stored recommendations filtered by region / pattern /
// shape, with a Redis read-through cache
func (s *Server) ListRoutes(c *fiber.Ctx) error {
	region := c.Query("region")
	pattern := c.Query("pattern")
	shape := c.Query("shape")

	key := cache.RoutesKey(region, pattern, shape)
	if cached, err := cache.GetRoutes(c.Context(), key); err == nil && cached != nil {
		return c.JSON(fiber.Map{"routes": cached, "cached": true})
	}

	routes, err := s.Store.LoadRoutes(c.Context(), region, shape)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("failed to load routes: %v", err),
		})
	}

	if pattern != "" {
		filtered := routes[:0]
		for _, r := range routes {
			if r.PatternName == pattern {
				filtered = append(filtered, r)
			}
		}
		routes = filtered
	}

	if err := cache.SetRoutes(c.Context(), key, routes, s.CacheTTL); err != nil {
		log.Printf("Warning: failed to cache route listing: %v", err)
	}

	return c.JSON(fiber.Map{"routes": routes, "cached": false})
}

// GetRoute serves one recommendation by uuid
func (s *Server) GetRoute(c *fiber.Ctx) error {
	id := c.Params("uuid")

	route, err := s.Store.LoadRoute(c.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": fmt.Sprintf("route %s not found", id),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("failed to load route: %v", err),
		})
	}

	return c.JSON(route)
}

// GraphStats summarizes the in-memory graph: vertex/edge/component counts
// and the degree distribution
func (s *Server) GraphStats(c *fiber.Ctx) error {
	if s.Graph == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "graph not loaded",
		})
	}

	classes := map[string]int{}
	for _, id := range s.Graph.VertexIDs() {
		classes[string(s.Graph.Vertices[id].Class())]++
	}

	comps := make([]fiber.Map, 0, len(s.Components))
	for _, comp := range s.Components {
		comps = append(comps, fiber.Map{
			"id":       comp.ID,
			"vertices": len(comp.VertexIDs),
			"edges":    comp.EdgeCount,
		})
	}

	return c.JSON(fiber.Map{
		"vertices":       len(s.Graph.Vertices),
		"edges":          len(s.Graph.Edges),
		"components":     comps,
		"vertex_classes": classes,
	})
}

// NearestVertex resolves a lat,lng query to the closest graph vertex within
// an optional tolerance (default 100 m)
func (s *Server) NearestVertex(c *fiber.Ctx) error {
	if s.Graph == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "graph not loaded",
		})
	}

	lat, lng, err := parseCoordinates(c.Query("at"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("invalid 'at' coordinates: %v", err),
		})
	}

	tolM := 100.0
	if raw := c.Query("tolerance_m"); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil && parsed > 0 {
			tolM = parsed
		}
	}

	v := s.Graph.NearestVertex(orb.Point{lng, lat}, tolM)
	if v == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": fmt.Sprintf("no vertex within %.0f m", tolM),
		})
	}

	return c.JSON(fiber.Map{
		"id":           v.ID,
		"lng":          v.Point[0],
		"lat":          v.Point[1],
		"elevation_m":  v.ElevationM,
		"cnt":          v.Cnt,
		"class":        string(v.Class()),
		"component_id": v.ComponentID,
	})
}

// parseCoordinates parses "lat,lng" query values
func parseCoordinates(s string) (lat, lng float64, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected lat,lng")
	}

	lat, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad latitude: %w", err)
	}
	lng, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad longitude: %w", err)
	}

	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return 0, 0, fmt.Errorf("coordinates out of range")
	}

	return lat, lng, nil
}
