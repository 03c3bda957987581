package handlers

import (
	"net/http"

	"ticketshow/internal/middleware"
	"ticketshow/internal/models"

	"github.com/gin-gonic/gin"
)

// CreateHold - POST /api/booking/create
// Удержать места и создать заказ у платёжного провайдера
func (h *Handlers) CreateHold(c *gin.Context) {
	var req models.CreateHoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Unauthorized"})
		return
	}
	req.UserID = userID

	result, err := h.bookings.CreateHold(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err, "create hold")
		return
	}

	c.JSON(http.StatusCreated, result)
}

// ConfirmPayment - POST /api/booking/verify
// Проверить подпись платежа и подтвердить бронирование
func (h *Handlers) ConfirmPayment(c *gin.Context) {
	var req models.ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	result, err := h.bookings.ConfirmPayment(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err, "confirm payment")
		return
	}

	c.JSON(http.StatusOK, result)
}

// OccupiedSeats - GET /api/booking/seats/:showId
// Занятые места сеанса
func (h *Handlers) OccupiedSeats(c *gin.Context) {
	seats, err := h.bookings.OccupiedSeats(c.Request.Context(), c.Param("showId"))
	if err != nil {
		handleServiceError(c, err, "get occupied seats")
		return
	}

	if seats == nil {
		seats = []string{}
	}
	c.JSON(http.StatusOK, models.OccupiedSeatsResponse{
		Success:       true,
		OccupiedSeats: seats,
	})
}
