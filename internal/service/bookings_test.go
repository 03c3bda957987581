package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	apperrors "ticketshow/internal/errors"
	"ticketshow/internal/external"
	"ticketshow/internal/jobs"
	"ticketshow/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test_secret"

type fixture struct {
	svc       *BookingService
	shows     *memShows
	bookings  *memBookings
	gateway   *fakeGateway
	scheduler *fakeScheduler
	events    *fakePublisher
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	showTime := time.Date(2026, 11, 20, 18, 30, 0, 0, time.UTC)
	f := &fixture{
		shows: newMemShows(&models.Show{
			ID:           "show-1",
			MovieID:      "movie-1",
			ShowDateTime: showTime,
			Price:        250,
		}),
		bookings:  newMemBookings(),
		gateway:   newFakeGateway(testSecret),
		scheduler: &fakeScheduler{},
		events:    &fakePublisher{},
		now:       time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC),
	}

	profiles := NewProfileService(nil, nil, fakeUsers{
		"user-1": {ID: "user-1", Email: "ana@example.com", FirstName: "Ana", LastName: "Lopez"},
	})
	movies := fakeMovies{"movie-1": {ID: "movie-1", Title: "Arrival", PrimaryImage: "https://img.example.com/arrival.jpg"}}

	f.svc = NewBookingService(f.shows, f.bookings, f.gateway, f.scheduler, f.events, profiles, movies, BookingConfig{
		HoldDuration:   10 * time.Minute,
		Currency:       "INR",
		GatewayTimeout: 50 * time.Millisecond,
	})
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) hold(t *testing.T, userID string, seats ...string) *models.HoldResult {
	t.Helper()
	result, err := f.svc.CreateHold(context.Background(), &models.CreateHoldRequest{
		ShowID:  "show-1",
		SeatIDs: seats,
		UserID:  userID,
	})
	require.NoError(t, err)
	return result
}

func confirmRequest(hold *models.HoldResult, paymentID string) *models.ConfirmPaymentRequest {
	return &models.ConfirmPaymentRequest{
		OrderID:   hold.OrderID,
		PaymentID: paymentID,
		Signature: external.Sign(testSecret, hold.OrderID, paymentID),
		BookingID: hold.BookingID,
	}
}

func TestCreateHold(t *testing.T) {
	f := newFixture(t)

	result := f.hold(t, "user-1", "A1", "A2")

	assert.True(t, result.Success)
	assert.Equal(t, "order_1", result.OrderID)
	assert.Equal(t, int64(500), result.Amount)
	assert.Equal(t, "INR", result.Currency)
	assert.Equal(t, "rzp_test_key", result.Key)

	// gateway receives minor units
	require.Len(t, f.gateway.amounts, 1)
	assert.Equal(t, int64(500*external.MinorUnitsPerMajor), f.gateway.amounts[0])

	booking, err := f.bookings.GetByID(context.Background(), result.BookingID)
	require.NoError(t, err)
	require.NotNil(t, booking)
	assert.Equal(t, models.BookingStatusPending, booking.Status)
	assert.False(t, booking.Paid)
	assert.Equal(t, []string{"A1", "A2"}, booking.Seats)
	assert.Equal(t, "ana@example.com", booking.Email)
	require.NotNil(t, booking.OrderID)
	assert.Equal(t, "order_1", *booking.OrderID)

	seats, err := f.svc.OccupiedSeats(context.Background(), "show-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "A2"}, seats)

	require.Len(t, f.scheduler.jobs, 1)
	job := f.scheduler.jobs[0]
	assert.Equal(t, jobs.KindReleaseHold, job.Kind)
	assert.Equal(t, f.now.Add(10*time.Minute), job.FireTime)
	assert.Equal(t, jobs.ReleaseHoldKey(result.BookingID), job.UniqueKey)
	assert.Equal(t, jobs.ReleaseHoldPayload{BookingID: result.BookingID}, job.Payload)
}

func TestCreateHold_NormalizesSeats(t *testing.T) {
	f := newFixture(t)

	result := f.hold(t, "user-1", "B3", " B3", "", "B4")

	booking, err := f.bookings.GetByID(context.Background(), result.BookingID)
	require.NoError(t, err)
	assert.Equal(t, []string{"B3", "B4"}, booking.Seats)
	assert.Equal(t, int64(500), result.Amount)
}

func TestCreateHold_RequestEmailWins(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.CreateHold(context.Background(), &models.CreateHoldRequest{
		ShowID:  "show-1",
		SeatIDs: []string{"C1"},
		Email:   " typed@example.com ",
		UserID:  "user-1",
	})
	require.NoError(t, err)

	booking, _ := f.bookings.GetByID(context.Background(), result.BookingID)
	assert.Equal(t, "typed@example.com", booking.Email)
}

func TestCreateHold_Rejections(t *testing.T) {
	tests := []struct {
		name string
		req  *models.CreateHoldRequest
		want error
	}{
		{
			name: "missing user",
			req:  &models.CreateHoldRequest{ShowID: "show-1", SeatIDs: []string{"A1"}},
			want: apperrors.ErrUnauthorized,
		},
		{
			name: "no seats",
			req:  &models.CreateHoldRequest{ShowID: "show-1", SeatIDs: []string{" ", ""}, UserID: "user-1"},
			want: apperrors.ErrInvalidRequest,
		},
		{
			name: "unknown show",
			req:  &models.CreateHoldRequest{ShowID: "show-404", SeatIDs: []string{"A1"}, UserID: "user-1"},
			want: apperrors.ErrShowNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			_, err := f.svc.CreateHold(context.Background(), tt.req)

			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, f.bookings.count())
			assert.Empty(t, f.scheduler.jobs)
		})
	}
}

func TestCreateHold_OverlappingSeatsRejected(t *testing.T) {
	f := newFixture(t)
	first := f.hold(t, "user-1", "A1", "A2")

	_, err := f.svc.CreateHold(context.Background(), &models.CreateHoldRequest{
		ShowID:  "show-1",
		SeatIDs: []string{"A2", "A3"},
		UserID:  "user-2",
	})
	require.ErrorIs(t, err, apperrors.ErrSeatsUnavailable)

	// the losing request must not touch the winner's seats or leave A3 behind
	seats, _ := f.svc.OccupiedSeats(context.Background(), "show-1")
	assert.Equal(t, []string{"A1", "A2"}, seats)
	assert.Equal(t, 1, f.bookings.count())

	booking, _ := f.bookings.GetByID(context.Background(), first.BookingID)
	assert.NotNil(t, booking)
}

func TestCreateHold_ConcurrentHoldsNeverDoubleBook(t *testing.T) {
	f := newFixture(t)

	const workers = 32
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded []string
		conflicts int
	)

	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start

			result, err := f.svc.CreateHold(context.Background(), &models.CreateHoldRequest{
				ShowID:  "show-1",
				SeatIDs: []string{"D1", "D2"},
				UserID:  fmt.Sprintf("user-%d", i),
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded = append(succeeded, result.BookingID)
			case errors.Is(err, apperrors.ErrSeatsUnavailable):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	require.Len(t, succeeded, 1)
	assert.Equal(t, workers-1, conflicts)
	assert.Equal(t, 1, f.bookings.count())

	show, _ := f.shows.GetByID(context.Background(), "show-1")
	assert.Equal(t, map[string]string{"D1": succeeded[0], "D2": succeeded[0]}, show.OccupiedSeats)
}

func TestCreateHold_GatewayTimeoutRollsBack(t *testing.T) {
	f := newFixture(t)
	f.gateway.block = true

	_, err := f.svc.CreateHold(context.Background(), &models.CreateHoldRequest{
		ShowID:  "show-1",
		SeatIDs: []string{"E1"},
		UserID:  "user-1",
	})

	require.ErrorIs(t, err, apperrors.ErrGatewayTimeout)
	seats, _ := f.svc.OccupiedSeats(context.Background(), "show-1")
	assert.Empty(t, seats)
	assert.Zero(t, f.bookings.count())
}

func TestCreateHold_GatewayErrorRollsBack(t *testing.T) {
	f := newFixture(t)
	f.gateway.err = errors.New("gateway rejected the order")

	_, err := f.svc.CreateHold(context.Background(), &models.CreateHoldRequest{
		ShowID:  "show-1",
		SeatIDs: []string{"E1"},
		UserID:  "user-1",
	})

	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrGatewayTimeout)
	seats, _ := f.svc.OccupiedSeats(context.Background(), "show-1")
	assert.Empty(t, seats)
	assert.Zero(t, f.bookings.count())
}

func TestCreateHold_ScheduleFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.scheduler.err = errors.New("jobs table unavailable")

	_, err := f.svc.CreateHold(context.Background(), &models.CreateHoldRequest{
		ShowID:  "show-1",
		SeatIDs: []string{"E1"},
		UserID:  "user-1",
	})

	require.Error(t, err)
	assert.Empty(t, f.gateway.amounts, "no order may be opened for an unreleasable hold")
	seats, _ := f.svc.OccupiedSeats(context.Background(), "show-1")
	assert.Empty(t, seats)
	assert.Zero(t, f.bookings.count())
}

func TestConfirmPayment(t *testing.T) {
	f := newFixture(t)
	hold := f.hold(t, "user-1", "A1", "A2")

	result, err := f.svc.ConfirmPayment(context.Background(), confirmRequest(hold, "pay_1"))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.AlreadyPaid)

	booking, _ := f.bookings.GetByID(context.Background(), hold.BookingID)
	assert.True(t, booking.Paid)
	assert.Equal(t, models.BookingStatusPaid, booking.Status)

	events := f.events.published()
	require.Len(t, events, 1)
	event := events[0]
	assert.Equal(t, hold.BookingID, event.BookingID)
	assert.Equal(t, "ana@example.com", event.Email)
	assert.Equal(t, "Ana Lopez", event.Name)
	assert.Equal(t, "Arrival", event.MovieTitle)
	assert.Equal(t, []string{"A1", "A2"}, event.Seats)
	assert.Equal(t, int64(500), event.Amount)
	assert.False(t, event.ShowDateTime.IsZero())
}

func TestConfirmPayment_Idempotent(t *testing.T) {
	f := newFixture(t)
	hold := f.hold(t, "user-1", "A1")
	req := confirmRequest(hold, "pay_1")

	first, err := f.svc.ConfirmPayment(context.Background(), req)
	require.NoError(t, err)
	second, err := f.svc.ConfirmPayment(context.Background(), req)
	require.NoError(t, err)

	assert.False(t, first.AlreadyPaid)
	assert.True(t, second.AlreadyPaid)

	booking, _ := f.bookings.GetByID(context.Background(), hold.BookingID)
	assert.True(t, booking.Paid)
	require.NotNil(t, booking.PaymentID)
	assert.Equal(t, "pay_1", *booking.PaymentID)

	// redelivery is tolerated downstream
	assert.Len(t, f.events.published(), 2)
}

func TestConfirmPayment_InvalidSignature(t *testing.T) {
	f := newFixture(t)
	hold := f.hold(t, "user-1", "A1")

	tests := []struct {
		name string
		req  *models.ConfirmPaymentRequest
	}{
		{
			name: "wrong secret",
			req: &models.ConfirmPaymentRequest{
				OrderID: hold.OrderID, PaymentID: "pay_1", BookingID: hold.BookingID,
				Signature: external.Sign("other_secret", hold.OrderID, "pay_1"),
			},
		},
		{
			name: "signature for another payment",
			req: &models.ConfirmPaymentRequest{
				OrderID: hold.OrderID, PaymentID: "pay_1", BookingID: hold.BookingID,
				Signature: external.Sign(testSecret, hold.OrderID, "pay_2"),
			},
		},
		{
			name: "empty signature",
			req: &models.ConfirmPaymentRequest{
				OrderID: hold.OrderID, PaymentID: "pay_1", BookingID: hold.BookingID,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.ConfirmPayment(context.Background(), tt.req)
			require.ErrorIs(t, err, apperrors.ErrSignatureInvalid)
		})
	}

	booking, _ := f.bookings.GetByID(context.Background(), hold.BookingID)
	assert.False(t, booking.Paid)
	assert.Equal(t, models.BookingStatusPending, booking.Status)
	assert.Empty(t, f.events.published())
}

func TestConfirmPayment_OrderOfAnotherBooking(t *testing.T) {
	f := newFixture(t)
	mine := f.hold(t, "user-1", "A1")
	other := f.hold(t, "user-2", "A2")

	// validly signed, but for the other booking's order
	req := confirmRequest(other, "pay_1")
	req.BookingID = mine.BookingID

	_, err := f.svc.ConfirmPayment(context.Background(), req)
	require.ErrorIs(t, err, apperrors.ErrSignatureInvalid)

	booking, _ := f.bookings.GetByID(context.Background(), mine.BookingID)
	assert.False(t, booking.Paid)
}

func TestConfirmPayment_AfterExpiry(t *testing.T) {
	f := newFixture(t)
	hold := f.hold(t, "user-1", "A1")

	expired, err := f.svc.ExpireHold(context.Background(), hold.BookingID)
	require.NoError(t, err)
	require.True(t, expired.Released)

	_, err = f.svc.ConfirmPayment(context.Background(), confirmRequest(hold, "pay_1"))
	require.ErrorIs(t, err, apperrors.ErrBookingExpired)
	assert.Empty(t, f.events.published())
}

func TestConfirmPayment_MalformedBookingID(t *testing.T) {
	f := newFixture(t)
	hold := f.hold(t, "user-1", "A1")

	req := confirmRequest(hold, "pay_1")
	req.BookingID = "not-a-uuid'); --"

	_, err := f.svc.ConfirmPayment(context.Background(), req)
	require.ErrorIs(t, err, apperrors.ErrBookingNotFound)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Empty(t, f.events.published())

	booking, _ := f.bookings.GetByID(context.Background(), hold.BookingID)
	assert.False(t, booking.Paid)
}

func TestConfirmPayment_PublishFailureKeepsPayment(t *testing.T) {
	f := newFixture(t)
	f.events.err = errors.New("nats: connection closed")
	hold := f.hold(t, "user-1", "A1")

	result, err := f.svc.ConfirmPayment(context.Background(), confirmRequest(hold, "pay_1"))
	require.NoError(t, err)
	assert.True(t, result.Success)

	booking, _ := f.bookings.GetByID(context.Background(), hold.BookingID)
	assert.True(t, booking.Paid)
}

func TestAmountFixedAtHoldTime(t *testing.T) {
	f := newFixture(t)
	hold := f.hold(t, "user-1", "A1", "A2")

	f.shows.setPrice("show-1", 999)

	_, err := f.svc.ConfirmPayment(context.Background(), confirmRequest(hold, "pay_1"))
	require.NoError(t, err)

	booking, _ := f.bookings.GetByID(context.Background(), hold.BookingID)
	assert.Equal(t, int64(500), booking.Amount)
	events := f.events.published()
	require.Len(t, events, 1)
	assert.Equal(t, int64(500), events[0].Amount)
}

func TestExpireHold_ReleasesUnpaidHold(t *testing.T) {
	f := newFixture(t)
	hold := f.hold(t, "user-1", "A1", "A2")

	result, err := f.svc.ExpireHold(context.Background(), hold.BookingID)
	require.NoError(t, err)
	assert.True(t, result.Released)
	assert.Equal(t, 2, result.SeatsReleased)

	seats, _ := f.svc.OccupiedSeats(context.Background(), "show-1")
	assert.Empty(t, seats)
	assert.Zero(t, f.bookings.count())

	// a redelivered release job is a no-op
	again, err := f.svc.ExpireHold(context.Background(), hold.BookingID)
	require.NoError(t, err)
	assert.False(t, again.Released)
}

func TestExpireHold_NoopAfterPayment(t *testing.T) {
	f := newFixture(t)
	hold := f.hold(t, "user-1", "A1", "A2")

	_, err := f.svc.ConfirmPayment(context.Background(), confirmRequest(hold, "pay_1"))
	require.NoError(t, err)

	result, err := f.svc.ExpireHold(context.Background(), hold.BookingID)
	require.NoError(t, err)
	assert.False(t, result.Released)

	seats, _ := f.svc.OccupiedSeats(context.Background(), "show-1")
	assert.Equal(t, []string{"A1", "A2"}, seats)
	booking, _ := f.bookings.GetByID(context.Background(), hold.BookingID)
	assert.True(t, booking.Paid)
}

func TestExpireHold_DoesNotReleaseSeatsRetakenByAnotherBooking(t *testing.T) {
	f := newFixture(t)
	stale := f.hold(t, "user-1", "A1")

	_, err := f.svc.ExpireHold(context.Background(), stale.BookingID)
	require.NoError(t, err)
	fresh := f.hold(t, "user-2", "A1")

	// redelivery of the stale booking's release job
	released, err := f.shows.ReleaseSeats(context.Background(), "show-1", stale.BookingID, []string{"A1"})
	require.NoError(t, err)
	assert.Zero(t, released)

	show, _ := f.shows.GetByID(context.Background(), "show-1")
	assert.Equal(t, fresh.BookingID, show.OccupiedSeats["A1"])
}

func TestOccupiedSeats(t *testing.T) {
	f := newFixture(t)

	seats, err := f.svc.OccupiedSeats(context.Background(), "show-1")
	require.NoError(t, err)
	assert.Empty(t, seats)

	_, err = f.svc.OccupiedSeats(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrShowNotFound)

	_, err = f.svc.OccupiedSeats(context.Background(), " ")
	assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)
}

func TestNormalizeSeats(t *testing.T) {
	assert.Equal(t, []string{"A1", "A2"}, normalizeSeats([]string{" A1", "A2", "A1 ", ""}))
	assert.Empty(t, normalizeSeats(nil))
}
