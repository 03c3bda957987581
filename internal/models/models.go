package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SeatList - список мест, принимающий как массив, так и строку через запятую
type SeatList []string

// UnmarshalJSON поддерживает ["A1","A2"] и "A1,A2"
func (sl *SeatList) UnmarshalJSON(data []byte) error {
	str := strings.TrimSpace(string(data))
	if str == "null" {
		*sl = nil
		return nil
	}

	if strings.HasPrefix(str, "[") {
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("invalid seat list: %w", err)
		}
		*sl = items
		return nil
	}

	if strings.HasPrefix(str, `"`) {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("invalid seat list: %w", err)
		}
		var items []string
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				items = append(items, part)
			}
		}
		*sl = items
		return nil
	}

	return fmt.Errorf("invalid seat list: %s", str)
}

// CreateHoldRequest - модель запроса на удержание мест
type CreateHoldRequest struct {
	ShowID  string   `json:"showId" binding:"required"`
	SeatIDs SeatList `json:"seatIds" binding:"required"`
	Email   string   `json:"email,omitempty"`
	UserID  string   `json:"-"`
}

// HoldResult - модель ответа при создании удержания
type HoldResult struct {
	Success   bool   `json:"success"`
	OrderID   string `json:"orderId"`
	BookingID string `json:"bookingId"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Key       string `json:"key,omitempty"`
}

// ConfirmPaymentRequest - подтверждение оплаты от платёжного провайдера
type ConfirmPaymentRequest struct {
	OrderID   string   `json:"orderId" binding:"required"`
	PaymentID string   `json:"paymentId" binding:"required"`
	Signature string   `json:"signature" binding:"required"`
	BookingID string   `json:"bookingId" binding:"required"`
	ShowID    string   `json:"showId,omitempty"`
	SeatIDs   SeatList `json:"seatIds,omitempty"`
}

// ConfirmResult - результат подтверждения оплаты
type ConfirmResult struct {
	Success     bool   `json:"success"`
	BookingID   string `json:"bookingId"`
	AlreadyPaid bool   `json:"alreadyPaid,omitempty"`
}

// ExpireResult - результат освобождения удержания
type ExpireResult struct {
	BookingID     string `json:"booking_id"`
	Released      bool   `json:"released"`
	SeatsReleased int    `json:"seats_released"`
}

// OccupiedSeatsResponse - занятые места сеанса
type OccupiedSeatsResponse struct {
	Success       bool     `json:"success"`
	OccupiedSeats []string `json:"occupiedSeats"`
}

// CleanupResult - результат очистки устаревших данных
type CleanupResult struct {
	BookingsDeleted int64 `json:"bookings_deleted"`
	ShowsDeleted    int64 `json:"shows_deleted"`
	JobsDeleted     int64 `json:"jobs_deleted"`
}
