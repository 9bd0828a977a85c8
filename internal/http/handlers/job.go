package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Crohnos/dnd-generator/internal/http/response"
	"github.com/Crohnos/dnd-generator/internal/services"
)

type JobHandler struct {
	generation services.GenerationService
}

func NewJobHandler(generation services.GenerationService) *JobHandler {
	return &JobHandler{generation: generation}
}

// GET /api/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	job, err := h.generation.GetJob(c.Request.Context(), jobID)
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}
