package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/BabaYagaSystems/aroundly-backend/internal/http/response"
	"github.com/BabaYagaSystems/aroundly-backend/internal/pkg/ctxutil"
)

func incidentIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_incident_id", err)
		return uuid.Nil, false
	}
	return id, true
}

func actorID(c *gin.Context) string {
	return ctxutil.ActorID(c.Request.Context())
}
