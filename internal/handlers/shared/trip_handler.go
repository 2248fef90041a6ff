package handlers

import (
	"github.com/gin-gonic/gin"

	"carhire/internal/middleware"
	"carhire/internal/services"
	"carhire/internal/utils"
	"carhire/pkg/logger"
)

type TripHandler struct {
	trips    services.TripService
	location services.LocationService
	log      *logger.Logger
}

func NewTripHandler(trips services.TripService, location services.LocationService, log *logger.Logger) *TripHandler {
	return &TripHandler{trips: trips, location: location, log: log}
}

// CreateTrip books a driver for the calling customer
func (h *TripHandler) CreateTrip(c *gin.Context) {
	var request struct {
		DriverID       string `json:"driver_id" binding:"required"`
		PickupLocation string `json:"pickup_location" binding:"required"`
		Destination    string `json:"destination" binding:"required"`
	}
	if !bindJSON(c, &request) {
		return
	}

	trip, err := h.trips.CreateTrip(c.Request.Context(), middleware.Subject(c), request.DriverID, request.PickupLocation, request.Destination)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	utils.CreatedResponse(c, "Trip created successfully", trip)
}

func (h *TripHandler) GetTrip(c *gin.Context) {
	trip, err := h.trips.GetTrip(c.Request.Context(), middleware.Subject(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, "Trip retrieved successfully", trip)
}

func (h *TripHandler) ListActive(c *gin.Context) {
	trips, err := h.trips.ListActive(c.Request.Context(), middleware.Subject(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	utils.SuccessResponseWithMeta(c, "Active trips retrieved successfully", trips, &utils.Meta{Count: len(trips)})
}

func (h *TripHandler) CompleteTrip(c *gin.Context) {
	trip, err := h.trips.CompleteTrip(c.Request.Context(), middleware.Subject(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, "Trip completed", trip)
}

func (h *TripHandler) CancelTrip(c *gin.Context) {
	trip, err := h.trips.CancelTrip(c.Request.Context(), middleware.Subject(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, "Trip cancelled", trip)
}

func (h *TripHandler) RateTrip(c *gin.Context) {
	var request struct {
		Rating int    `json:"rating" binding:"required,rating_value"`
		Review string `json:"review"`
	}
	if !bindJSON(c, &request) {
		return
	}
	if err := h.trips.RateTrip(c.Request.Context(), middleware.Subject(c), c.Param("id"), request.Rating, request.Review); err != nil {
		respondError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, "Trip rated successfully", nil)
}

// StopSharing stops the caller's location sharing without a live socket, for
// example from a second device. The trip query parameter is optional.
func (h *TripHandler) StopSharing(c *gin.Context) {
	subject := middleware.Subject(c)
	if err := h.location.StopSharing(c.Request.Context(), subject, subject.UserID, c.Query("trip_id")); err != nil {
		respondError(c, h.log, err)
		return
	}
	utils.NoContentResponse(c)
}
