package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"github.com/campushq/campus-backend/internal/middleware"
	"github.com/campushq/campus-backend/internal/model"
	"github.com/campushq/campus-backend/internal/response"
	"github.com/campushq/campus-backend/internal/service"
)

// writeServiceError translates a service-layer error into the response
// envelope. Rejections carry their own reason string; a missing row is
// a 404; anything else is an opaque 500.
func writeServiceError(c *gin.Context, err error) {
	if rej, ok := service.AsRejection(err); ok {
		status, code := rej.WireError()
		response.FailWithMessage(c, status, code, rej.Reason)
		return
	}
	if errors.Is(err, pgx.ErrNoRows) {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}
	response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
}

// deviceFromRequest captures the submitting device's fingerprint from
// the HTTP request plus optional geocoordinates from the payload.
func deviceFromRequest(c *gin.Context, lat, lng *float64) model.DeviceFingerprint {
	device := model.DeviceFingerprint{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
	if lat != nil && lng != nil {
		device.Location = &model.GeoPoint{Latitude: *lat, Longitude: *lng}
	}
	return device
}

// userID extracts the authenticated user's ID, set by the JWT
// middleware.
func userID(c *gin.Context) int {
	claims := middleware.GetClaims(c)
	if claims == nil {
		return 0
	}
	return claims.UserID
}
