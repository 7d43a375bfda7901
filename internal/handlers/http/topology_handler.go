package http

import (
	"errors"
	"net/http"
	"time"

	"emberlink/internal/core/domain"
	"emberlink/internal/core/ports"
	"emberlink/internal/core/services"
	"emberlink/internal/infrastructure/alerts"
	"emberlink/internal/infrastructure/middleware"
	"emberlink/internal/infrastructure/monitoring"
	apperrors "emberlink/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// TopologyHandler serves the operator console API over the live topology
// snapshot. Every read works on a snapshot, so a burst of incoming
// reports can never tear a response.
type TopologyHandler struct {
	topology    ports.TopologyService
	heartbeat   *services.HeartbeatMonitor
	alertServer *alerts.AlertServer
	health      *monitoring.HealthChecker
}

func NewTopologyHandler(
	topology ports.TopologyService,
	heartbeat *services.HeartbeatMonitor,
	alertServer *alerts.AlertServer,
	health *monitoring.HealthChecker,
) *TopologyHandler {
	return &TopologyHandler{
		topology:    topology,
		heartbeat:   heartbeat,
		alertServer: alertServer,
		health:      health,
	}
}

func (h *TopologyHandler) SetupRoutes(router *gin.Engine, authService services.AuthService) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws/alerts", gin.WrapF(h.alertServer.HandleWebSocket))

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(authService))
	{
		api.GET("/topology", h.GetTopology)
		api.GET("/endpoints", h.ListEndpoints)
		api.GET("/endpoints/:id", h.GetEndpoint)
		api.GET("/links", h.ListLinks)
		api.GET("/path", h.GetPath)
		api.GET("/reachable", h.GetReachable)
		api.POST("/endpoints/:id/teardown", h.TeardownEndpoint)
	}
}

type endpointView struct {
	ID       domain.EndpointID `json:"id"`
	Role     domain.Role       `json:"role"`
	Liveness domain.Liveness   `json:"liveness"`
	LastSeen time.Time         `json:"last_seen"`
}

type linkView struct {
	From        domain.EndpointID `json:"from"`
	To          domain.EndpointID `json:"to"`
	Iface       string            `json:"iface"`
	RSSI        float64           `json:"rssi"`
	Loss        float64           `json:"loss"`
	Quality     float64           `json:"quality"`
	Unconfirmed bool              `json:"unconfirmed,omitempty"`
	Liveness    domain.Liveness   `json:"liveness"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func endpointViews(g *domain.TopologyGraph) []endpointView {
	out := make([]endpointView, 0, len(g.Endpoints))
	for _, ep := range g.Endpoints {
		out = append(out, endpointView{
			ID:       ep.ID,
			Role:     ep.Role,
			Liveness: ep.Liveness,
			LastSeen: ep.LastSeen,
		})
	}
	return out
}

func linkViewOf(l *domain.Link) linkView {
	return linkView{
		From:        l.Key.From,
		To:          l.Key.To,
		Iface:       string(l.Key.Iface),
		RSSI:        l.RSSI,
		Loss:        l.Loss,
		Quality:     l.QualityScore(),
		Unconfirmed: l.Unconfirmed,
		Liveness:    l.Liveness,
		UpdatedAt:   l.UpdatedAt,
	}
}

func linkViews(g *domain.TopologyGraph) []linkView {
	out := make([]linkView, 0, len(g.Links))
	for _, l := range g.Links {
		out = append(out, linkViewOf(l))
	}
	return out
}

func (h *TopologyHandler) GetTopology(c *gin.Context) {
	snapshot := h.topology.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"endpoints": endpointViews(snapshot),
		"links":     linkViews(snapshot),
	})
}

func (h *TopologyHandler) ListEndpoints(c *gin.Context) {
	snapshot := h.topology.Snapshot()
	c.JSON(http.StatusOK, gin.H{"endpoints": endpointViews(snapshot)})
}

func (h *TopologyHandler) GetEndpoint(c *gin.Context) {
	id := domain.EndpointID(c.Param("id"))

	snapshot := h.topology.Snapshot()
	ep, ok := snapshot.Endpoints[id]
	if !ok {
		h.renderError(c, apperrors.NewNotFound("endpoint"))
		return
	}

	links := make([]linkView, 0)
	for _, key := range snapshot.Adjacency[id] {
		if l, ok := snapshot.Links[key]; ok {
			links = append(links, linkViewOf(l))
		}
	}

	resp := gin.H{
		"endpoint": endpointView{
			ID:       ep.ID,
			Role:     ep.Role,
			Liveness: ep.Liveness,
			LastSeen: ep.LastSeen,
		},
		"links":     links,
		"neighbors": snapshot.Neighbors(id),
	}
	if state, ok := h.heartbeat.State(id); ok {
		resp["heartbeat_state"] = state
	}
	c.JSON(http.StatusOK, resp)
}

func (h *TopologyHandler) ListLinks(c *gin.Context) {
	snapshot := h.topology.Snapshot()
	c.JSON(http.StatusOK, gin.H{"links": linkViews(snapshot)})
}

func (h *TopologyHandler) GetPath(c *gin.Context) {
	from := domain.EndpointID(c.Query("from"))
	to := domain.EndpointID(c.Query("to"))
	if from == "" || to == "" {
		h.renderError(c, apperrors.NewInvalidConfig("from and to query parameters are required"))
		return
	}

	path, cost, err := h.topology.ShortestPath(from, to)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEndpointNotFound):
			h.renderError(c, apperrors.NewNotFound("endpoint"))
		case errors.Is(err, domain.ErrNoPath):
			h.renderError(c, apperrors.New(apperrors.ErrCodeNotFound, "no usable path", http.StatusNotFound))
		default:
			h.renderError(c, apperrors.NewInternal(err.Error()))
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"path": path, "cost": cost})
}

func (h *TopologyHandler) GetReachable(c *gin.Context) {
	from := domain.EndpointID(c.Query("from"))
	if from == "" {
		h.renderError(c, apperrors.NewInvalidConfig("from query parameter is required"))
		return
	}

	reachable, err := h.topology.Reachable(from)
	if err != nil {
		if errors.Is(err, domain.ErrEndpointNotFound) {
			h.renderError(c, apperrors.NewNotFound("endpoint"))
			return
		}
		h.renderError(c, apperrors.NewInternal(err.Error()))
		return
	}

	c.JSON(http.StatusOK, gin.H{"from": from, "reachable": reachable})
}

// TeardownEndpoint marks every link of an endpoint lost, for planned
// shutdowns where waiting out the heartbeat timers would only add noise.
func (h *TopologyHandler) TeardownEndpoint(c *gin.Context) {
	id := domain.EndpointID(c.Param("id"))

	snapshot := h.topology.Snapshot()
	if _, ok := snapshot.Endpoints[id]; !ok {
		h.renderError(c, apperrors.NewNotFound("endpoint"))
		return
	}

	h.topology.Teardown(id)
	c.JSON(http.StatusOK, gin.H{"endpoint": id, "status": "torn down"})
}

func (h *TopologyHandler) Health(c *gin.Context) {
	status := h.health.CheckAll(c.Request.Context())
	code := http.StatusOK
	if status.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

func (h *TopologyHandler) Ready(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ready",
		"subscribers": h.alertServer.SubscriberCount(),
		"timestamp":   time.Now().Unix(),
	})
}

func (h *TopologyHandler) renderError(c *gin.Context, err *apperrors.AppError) {
	c.JSON(err.HTTPStatus, gin.H{"error": err.Message, "code": err.Code})
}
