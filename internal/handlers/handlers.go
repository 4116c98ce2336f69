package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"moneyfolio/internal/allocation"
	"moneyfolio/internal/database"
	"moneyfolio/internal/history"
	"moneyfolio/internal/models"
	"moneyfolio/internal/pricecache"
	"moneyfolio/internal/service"
	"moneyfolio/internal/syncer"
)

// AssetAdmin is the asset-management slice of the store the handlers
// need; the portfolio CRUD app drives the engine through it.
type AssetAdmin interface {
	CreateAsset(ctx context.Context, a models.Asset) (string, error)
	ListAssets(ctx context.Context, includeArchived bool) ([]models.Asset, error)
	ArchiveAsset(ctx context.Context, id string) error
	UnarchiveAsset(ctx context.Context, id string) error
}

type Handler struct {
	assets   AssetAdmin
	svc      *service.Portfolio
	syncer   *syncer.Syncer
	recorder *history.Recorder
	cache    *pricecache.Cache
	log      *logrus.Logger
}

func NewHandler(assets AssetAdmin, svc *service.Portfolio, sync *syncer.Syncer, rec *history.Recorder, cache *pricecache.Cache, log *logrus.Logger) *Handler {
	return &Handler{assets: assets, svc: svc, syncer: sync, recorder: rec, cache: cache, log: log}
}

// Register wires every route onto r.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	r.POST("/prices/refresh", h.RefreshPrices)
	r.GET("/prices/cache", h.CacheStats)

	r.GET("/portfolio", h.GetPortfolio)
	r.GET("/allocation/:dimension", h.GetAllocation)

	r.POST("/history/record", h.RecordHistory)
	r.GET("/history", h.GetHistory)

	r.GET("/assets", h.ListAssets)
	r.POST("/assets", h.CreateAsset)
	r.POST("/assets/:id/archive", h.ArchiveAsset)
	r.POST("/assets/:id/unarchive", h.UnarchiveAsset)
}

// RefreshPrices refreshes every refreshable asset and reports the
// batch's counts. Partial failure is a normal outcome, not an error.
func (h *Handler) RefreshPrices(c *gin.Context) {
	res, err := h.syncer.RefreshAll(c.Request.Context())
	if err != nil {
		h.log.Errorf("price refresh failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "refresh failed"})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.cache.Stats())
}

func (h *Handler) GetPortfolio(c *gin.Context) {
	view, err := h.svc.WithPrices(c.Request.Context())
	if err != nil {
		h.log.Errorf("get portfolio failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) GetAllocation(c *gin.Context) {
	dim, err := allocation.ParseDimension(c.Param("dimension"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	items, err := h.svc.Allocation(c.Request.Context(), dim)
	if err != nil {
		h.log.Errorf("get allocation failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) RecordHistory(c *gin.Context) {
	force := c.Query("force") == "true"
	if err := h.recorder.Record(c.Request.Context(), force); err != nil {
		h.log.Errorf("record history failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "record failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "recorded", "force": force})
}

func (h *Handler) GetHistory(c *gin.Context) {
	days := 30
	if v := c.Query("days"); v != "" {
		iv, err := strconv.Atoi(v)
		if err != nil || iv <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a positive integer"})
			return
		}
		days = iv
	}
	entries, err := h.recorder.History(c.Request.Context(), days)
	if err != nil {
		h.log.Errorf("get history failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, entries)
}

type assetRequest struct {
	Ticker           string          `json:"ticker"`
	Name             string          `json:"name" binding:"required"`
	Type             string          `json:"type" binding:"required"`
	Account          string          `json:"account"`
	Currency         string          `json:"currency"`
	Quantity         decimal.Decimal `json:"quantity"`
	AvgCost          decimal.Decimal `json:"avgCost"`
	ManualPrice      decimal.Decimal `json:"manualPrice"`
	Balance          decimal.Decimal `json:"balance"`
	NextDividendDate string          `json:"nextDividendDate"`
}

func (h *Handler) CreateAsset(c *gin.Context) {
	var req assetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("invalid asset body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	a := models.Asset{
		Ticker:           req.Ticker,
		Name:             req.Name,
		Type:             models.AssetType(req.Type),
		Account:          req.Account,
		Currency:         models.Currency(req.Currency),
		Quantity:         req.Quantity,
		AvgCost:          req.AvgCost,
		ManualPrice:      req.ManualPrice,
		Balance:          req.Balance,
		NextDividendDate: req.NextDividendDate,
	}
	id, err := h.assets.CreateAsset(c.Request.Context(), a)
	if errors.Is(err, database.ErrDuplicateAsset) {
		c.JSON(http.StatusConflict, gin.H{"error": "asset already exists"})
		return
	}
	if err != nil {
		h.log.Errorf("create asset failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *Handler) ListAssets(c *gin.Context) {
	includeArchived := c.Query("archived") == "true"
	assets, err := h.assets.ListAssets(c.Request.Context(), includeArchived)
	if err != nil {
		h.log.Errorf("list assets failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, assets)
}

func (h *Handler) ArchiveAsset(c *gin.Context) {
	h.setArchived(c, true)
}

func (h *Handler) UnarchiveAsset(c *gin.Context) {
	h.setArchived(c, false)
}

func (h *Handler) setArchived(c *gin.Context, archived bool) {
	id := c.Param("id")
	var err error
	if archived {
		err = h.assets.ArchiveAsset(c.Request.Context(), id)
	} else {
		err = h.assets.UnarchiveAsset(c.Request.Context(), id)
	}
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "asset not found"})
		return
	}
	if err != nil {
		h.log.Errorf("archive update failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "isArchived": archived})
}

var _ AssetAdmin = (*database.Repo)(nil)
