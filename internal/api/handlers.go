package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rewired-gh/curator/internal/curator"
	"github.com/rewired-gh/curator/internal/datasource"
	"github.com/rewired-gh/curator/internal/logger"
	"github.com/rewired-gh/curator/internal/models"
)

// Meta describes where a response's data came from.
type Meta struct {
	Count     int       `json:"count"`
	Origin    string    `json:"origin"`
	FetchedAt time.Time `json:"fetchedAt"`
	RequestID string    `json:"requestId"`
}

// ProtocolsResponse is the body of GET /api/v1/protocols.
type ProtocolsResponse struct {
	Data []models.ScoredProtocol `json:"data"`
	Meta Meta                    `json:"meta"`
}

// PoolsResponse is the body of GET /api/v1/pools.
type PoolsResponse struct {
	Data    []models.ScoredPool `json:"data"`
	Summary models.Summary      `json:"summary"`
	Meta    Meta                `json:"meta"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId"`
}

// Health reports liveness and the origin of the most recent datasets.
func (h *Handler) Health(c *gin.Context) {
	h.mu.RLock()
	origin, fetched := h.lastOrigin, h.lastFetch
	h.mu.RUnlock()

	body := gin.H{
		"status":        "ok",
		"uptimeSeconds": int64(time.Since(h.startedAt).Seconds()),
		"lastOrigin":    string(origin),
	}
	if !fetched.IsZero() {
		body["lastFetchedAt"] = fetched
	}
	c.JSON(http.StatusOK, body)
}

// Markets returns the built-in protocol records unscored.
func (h *Handler) Markets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": datasource.DefaultProtocols()})
}

// Protocols scores and ranks every protocol.
func (h *Handler) Protocols(c *gin.Context) {
	ds, ok := h.datasets(c)
	if !ok {
		return
	}

	start := time.Now()
	scored, err := h.engine.ScoreProtocols(ds.Protocols, ds.Pools)
	if err != nil {
		h.fail(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.ObserveScoring("protocols", len(scored), time.Since(start))
	}

	c.JSON(http.StatusOK, ProtocolsResponse{
		Data: scored,
		Meta: h.meta(c, ds, len(scored)),
	})
}

// Pools scores pools, optionally filtered by ?tokens=a,b and truncated by ?limit=n.
func (h *Handler) Pools(c *gin.Context) {
	tokens := curator.ParseTokenFilters(c.Query("tokens"))

	limit := h.defaultLimit
	if raw, present := c.GetQuery("limit"); present {
		limit = curator.ParseLimit(raw)
	}

	ds, ok := h.datasets(c)
	if !ok {
		return
	}

	start := time.Now()
	scored, summary, err := h.engine.ScorePools(ds.Protocols, ds.Pools, tokens, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.ObserveScoring("pools", summary.Total, time.Since(start))
	}

	c.JSON(http.StatusOK, PoolsResponse{
		Data:    scored,
		Summary: summary,
		Meta:    h.meta(c, ds, len(scored)),
	})
}

func (h *Handler) datasets(c *gin.Context) (datasource.Datasets, bool) {
	ds, err := h.source.Datasets(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return datasource.Datasets{}, false
	}

	h.mu.Lock()
	h.lastOrigin = ds.Origin
	h.lastFetch = ds.FetchedAt
	h.mu.Unlock()
	return ds, true
}

func (h *Handler) meta(c *gin.Context, ds datasource.Datasets, count int) Meta {
	return Meta{
		Count:     count,
		Origin:    string(ds.Origin),
		FetchedAt: ds.FetchedAt,
		RequestID: requestID(c),
	}
}

// fail maps an error to a status code: an empty upstream dataset is a bad
// gateway, anything else means the data could not be obtained at all.
func (h *Handler) fail(c *gin.Context, err error) {
	status := http.StatusServiceUnavailable
	if errors.Is(err, curator.ErrNoProtocols) || errors.Is(err, curator.ErrNoPools) {
		status = http.StatusBadGateway
	}

	logger.WithField("request_id", requestID(c)).Errorf("request %s failed: %v", c.FullPath(), err)
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:     err.Error(),
		RequestID: requestID(c),
	})
}
