package tracking

import (
	"net/http"

	"affiliate-platform/pkg/errutil"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

type recordInteractionRequest struct {
	CampaignID string `json:"campaign_id" binding:"required"`
	Kind       string `json:"kind" binding:"required"`
}

type recordInteractionResponse struct {
	InteractionID string `json:"interaction_id"`
	Status        string `json:"status"`
}

type registerPartnerRequest struct {
	PartnerID string `json:"partner_id" binding:"required"`
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type registerRoutesParams struct {
	fx.In
	Router  *gin.Engine
	Handler *Handler
}

func registerRoutes(p registerRoutesParams) {
	v1 := p.Router.Group("/api/v1")
	v1.POST("/interactions", p.Handler.RecordInteraction)
	v1.POST("/campaigns/:campaign_id/partner", p.Handler.RegisterPartner)
	v1.GET("/sagas/:saga_id", p.Handler.GetSagaTrail)
}

func (h *Handler) RecordInteraction(c *gin.Context) {
	var req recordInteractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", errutil.WithErr(err)))
		return
	}

	interactionID, err := h.svc.RecordInteraction(c.Request.Context(), req.CampaignID, InteractionKind(req.Kind))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, recordInteractionResponse{
		InteractionID: interactionID,
		Status:        "recorded",
	})
}

func (h *Handler) RegisterPartner(c *gin.Context) {
	var req registerPartnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", errutil.WithErr(err)))
		return
	}

	campaignID := c.Param("campaign_id")
	if err := h.svc.RegisterCampaignPartner(c.Request.Context(), campaignID, req.PartnerID); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"campaign_id": campaignID, "partner_id": req.PartnerID})
}

func (h *Handler) GetSagaTrail(c *gin.Context) {
	entries, err := h.svc.GetSagaTrail(c.Request.Context(), c.Param("saga_id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"saga_id": c.Param("saga_id"), "entries": entries})
}
