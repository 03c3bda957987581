package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "ticketshow/internal/errors"
	"ticketshow/internal/external"
	"ticketshow/internal/models"
)

// memShows is an in-memory seat ledger with the same all-or-nothing
// commit and owner-conditional release as the Postgres one.
type memShows struct {
	mu    sync.Mutex
	shows map[string]*models.Show
}

func newMemShows(shows ...*models.Show) *memShows {
	m := &memShows{shows: make(map[string]*models.Show)}
	for _, show := range shows {
		if show.OccupiedSeats == nil {
			show.OccupiedSeats = make(map[string]string)
		}
		m.shows[show.ID] = show
	}
	return m
}

func (m *memShows) GetByID(_ context.Context, id string) (*models.Show, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	show, ok := m.shows[id]
	if !ok {
		return nil, nil
	}
	cp := *show
	return &cp, nil
}

func (m *memShows) IsAvailable(_ context.Context, showID string, seatIDs []string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	show, ok := m.shows[showID]
	if !ok {
		return false, apperrors.ErrShowNotFound
	}
	for _, seat := range seatIDs {
		if _, taken := show.OccupiedSeats[seat]; taken {
			return false, nil
		}
	}
	return true, nil
}

func (m *memShows) CommitSeats(_ context.Context, showID, bookingID string, seatIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	show, ok := m.shows[showID]
	if !ok {
		return apperrors.ErrShowNotFound
	}
	for _, seat := range seatIDs {
		if _, taken := show.OccupiedSeats[seat]; taken {
			return apperrors.ErrSeatsUnavailable
		}
	}
	for _, seat := range seatIDs {
		show.OccupiedSeats[seat] = bookingID
	}
	return nil
}

func (m *memShows) ReleaseSeats(_ context.Context, showID, bookingID string, seatIDs []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	show, ok := m.shows[showID]
	if !ok {
		return 0, nil
	}
	released := 0
	for _, seat := range seatIDs {
		if show.OccupiedSeats[seat] == bookingID {
			delete(show.OccupiedSeats, seat)
			released++
		}
	}
	return released, nil
}

func (m *memShows) OccupiedSeats(_ context.Context, showID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	show, ok := m.shows[showID]
	if !ok {
		return nil, apperrors.ErrShowNotFound
	}
	seats := make([]string, 0, len(show.OccupiedSeats))
	for seat := range show.OccupiedSeats {
		seats = append(seats, seat)
	}
	sort.Strings(seats)
	return seats, nil
}

func (m *memShows) setPrice(showID string, price int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shows[showID].Price = price
}

type memBookings struct {
	mu       sync.Mutex
	bookings map[string]*models.Booking
}

func newMemBookings() *memBookings {
	return &memBookings{bookings: make(map[string]*models.Booking)}
}

func (m *memBookings) Create(_ context.Context, booking *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *booking
	m.bookings[booking.ID] = &cp
	return nil
}

func (m *memBookings) GetByID(_ context.Context, id string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	booking, ok := m.bookings[id]
	if !ok {
		return nil, nil
	}
	cp := *booking
	return &cp, nil
}

func (m *memBookings) SetOrderID(_ context.Context, id, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	booking, ok := m.bookings[id]
	if !ok {
		return apperrors.ErrBookingNotFound
	}
	booking.OrderID = &orderID
	return nil
}

func (m *memBookings) MarkPaid(_ context.Context, id, paymentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	booking, ok := m.bookings[id]
	if !ok || booking.Status == models.BookingStatusExpired {
		return false, apperrors.ErrBookingExpired
	}
	wasPaid := booking.Paid
	booking.Paid = true
	booking.Status = models.BookingStatusPaid
	if !wasPaid {
		booking.PaymentID = &paymentID
	}
	return wasPaid, nil
}

func (m *memBookings) ClaimForExpiry(_ context.Context, id string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	booking, ok := m.bookings[id]
	if !ok || booking.Paid {
		return nil, nil
	}
	booking.Status = models.BookingStatusExpired
	cp := *booking
	return &cp, nil
}

func (m *memBookings) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if booking, ok := m.bookings[id]; ok && !booking.Paid {
		delete(m.bookings, id)
	}
	return nil
}

func (m *memBookings) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bookings)
}

// fakeGateway issues sequential order ids and verifies signatures with
// the real client's algorithm
type fakeGateway struct {
	verifier *external.PaymentClient

	mu      sync.Mutex
	seq     int
	amounts []int64
	block   bool
	err     error
}

func newFakeGateway(secret string) *fakeGateway {
	return &fakeGateway{
		verifier: external.NewPaymentClient(external.PaymentConfig{KeyID: "rzp_test_key", KeySecret: secret}),
	}
}

func (g *fakeGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*external.Order, error) {
	g.mu.Lock()
	block, err := g.block, g.err
	g.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	g.amounts = append(g.amounts, amount)
	return &external.Order{
		ID:       fmt.Sprintf("order_%d", g.seq),
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
	}, nil
}

func (g *fakeGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return g.verifier.VerifySignature(orderID, paymentID, signature)
}

func (g *fakeGateway) KeyID() string {
	return g.verifier.KeyID()
}

type scheduledJob struct {
	Kind      string
	Payload   any
	FireTime  time.Time
	UniqueKey string
}

type fakeScheduler struct {
	mu   sync.Mutex
	jobs []scheduledJob
	err  error
}

func (f *fakeScheduler) ScheduleAt(_ context.Context, kind string, payload any, fireTime time.Time, uniqueKey string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.jobs = append(f.jobs, scheduledJob{Kind: kind, Payload: payload, FireTime: fireTime, UniqueKey: uniqueKey})
	return fmt.Sprintf("job_%d", len(f.jobs)), nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.BookingConfirmedEvent
	err    error
}

func (f *fakePublisher) Publish(subject string, data any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if event, ok := data.(models.BookingConfirmedEvent); ok && subject == models.EventBookingConfirmed {
		f.events = append(f.events, event)
	}
	return f.err
}

func (f *fakePublisher) published() []models.BookingConfirmedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.BookingConfirmedEvent(nil), f.events...)
}

type fakeMovies map[string]*models.Movie

func (f fakeMovies) GetByID(_ context.Context, id string) (*models.Movie, error) {
	return f[id], nil
}

type fakeUsers map[string]*models.User

func (f fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	return f[id], nil
}

type fakeProfileCache struct {
	mu       sync.Mutex
	profiles map[string]*models.User
}

func (f *fakeProfileCache) GetProfile(_ context.Context, userID string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profiles[userID], nil
}

func (f *fakeProfileCache) SetProfile(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profiles == nil {
		f.profiles = make(map[string]*models.User)
	}
	f.profiles[user.ID] = user
	return nil
}

type fakeIdentity struct {
	users map[string]*models.User
	err   error
	calls int
}

func (f *fakeIdentity) GetUser(_ context.Context, userID string) (*models.User, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.users[userID], nil
}
