package handlers

import (
	"context"
	"errors"
	"net/http"

	apperrors "ticketshow/internal/errors"
	"ticketshow/internal/logger"
	"ticketshow/internal/models"
	"ticketshow/internal/service"

	"github.com/gin-gonic/gin"
)

// BookingCoordinator - операции жизненного цикла бронирования
type BookingCoordinator interface {
	CreateHold(ctx context.Context, req *models.CreateHoldRequest) (*models.HoldResult, error)
	ConfirmPayment(ctx context.Context, req *models.ConfirmPaymentRequest) (*models.ConfirmResult, error)
	OccupiedSeats(ctx context.Context, showID string) ([]string, error)
}

// Handlers содержит все HTTP обработчики
type Handlers struct {
	bookings BookingCoordinator
}

// NewHandlers создает обработчики поверх сервисов
func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{bookings: services.Bookings}
}

// handleServiceError переводит ошибки сервиса в HTTP ответ
func handleServiceError(c *gin.Context, err error, action string) {
	status, message := http.StatusInternalServerError, "Internal server error"

	switch {
	case errors.Is(err, apperrors.ErrInvalidRequest):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, apperrors.ErrSignatureInvalid):
		status, message = http.StatusBadRequest, "Payment verification failed"
	case errors.Is(err, apperrors.ErrUnauthorized):
		status, message = http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, apperrors.ErrForbidden):
		status, message = http.StatusForbidden, "Forbidden"
	case apperrors.IsNotFound(err):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, apperrors.ErrSeatsUnavailable):
		status, message = http.StatusConflict, "Selected seats are not available"
	case errors.Is(err, apperrors.ErrBookingExpired):
		status, message = http.StatusGone, "Booking has expired, please book again"
	case errors.Is(err, apperrors.ErrGatewayTimeout):
		status, message = http.StatusGatewayTimeout, "Payment provider did not respond, please retry"
	}

	log := logger.WithContext(c.Request.Context())
	if status >= http.StatusInternalServerError {
		log.Error("Failed to "+action, "error", err, "status", status)
		_ = c.Error(err)
	} else {
		log.Warn("Rejected "+action, "error", err, "status", status)
	}

	c.JSON(status, gin.H{"success": false, "error": message})
}
