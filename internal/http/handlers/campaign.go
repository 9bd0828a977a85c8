package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Crohnos/dnd-generator/internal/http/response"
	"github.com/Crohnos/dnd-generator/internal/services"
)

type CampaignHandler struct {
	campaigns  services.CampaignService
	generation services.GenerationService
}

func NewCampaignHandler(campaigns services.CampaignService, generation services.GenerationService) *CampaignHandler {
	return &CampaignHandler{campaigns: campaigns, generation: generation}
}

// POST /api/campaigns
func (h *CampaignHandler) Create(c *gin.Context) {
	var in services.CreateCampaignInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	campaign, err := h.campaigns.Create(c.Request.Context(), in)
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"campaign": campaign})
}

// GET /api/campaigns
func (h *CampaignHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	campaigns, err := h.campaigns.List(c.Request.Context(), limit, offset)
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"campaigns": campaigns})
}

// GET /api/campaigns/:id
func (h *CampaignHandler) Get(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}
	campaign, err := h.campaigns.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"campaign": campaign})
}

// PATCH /api/campaigns/:id
func (h *CampaignHandler) Update(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}
	var in services.UpdateCampaignInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	campaign, err := h.campaigns.Update(c.Request.Context(), id, in)
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"campaign": campaign})
}

// DELETE /api/campaigns/:id
func (h *CampaignHandler) Delete(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}
	if err := h.campaigns.Delete(c.Request.Context(), id); err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/campaigns/:id/generate
func (h *CampaignHandler) Generate(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}
	job, created, err := h.generation.Enqueue(c.Request.Context(), id)
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job": job, "created": created})
}

// GET /api/campaigns/:id/status
func (h *CampaignHandler) Status(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}
	st, err := h.campaigns.Status(c.Request.Context(), id)
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, st)
}

// GET /api/campaigns/:id/world
func (h *CampaignHandler) World(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}
	w, err := h.campaigns.World(c.Request.Context(), id)
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, w)
}

func campaignID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.RespondError(c, http.StatusBadRequest, "invalid_campaign_id", fmt.Errorf("invalid campaign id %q", c.Param("id")))
		return 0, false
	}
	return uint(id), true
}
