package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "ticketshow/internal/errors"
	"ticketshow/internal/logger"
	"ticketshow/internal/metrics"
	"ticketshow/internal/models"
)

const (
	kindBookingConfirmed = "booking-confirmed"
	kindShowAdded        = "show-added"

	dateLayout = "1/2/2006"
	timeLayout = "3:04:05 PM"
	notAvail   = "N/A"
)

type Config struct {
	Timezone      string
	MaxDeliveries int
	AppURL        string
	Currency      string
}

type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) (string, error)
}

type BookingReader interface {
	GetByID(ctx context.Context, id string) (*models.Booking, error)
}

type ShowReader interface {
	GetByID(ctx context.Context, id string) (*models.Show, error)
}

type MovieReader interface {
	GetByID(ctx context.Context, id string) (*models.Movie, error)
}

type RecipientReader interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	ListWithEmail(ctx context.Context) ([]models.User, error)
}

// DeliveryTracker remembers which notifications already went out
type DeliveryTracker interface {
	WasNotified(ctx context.Context, key string) (bool, error)
	MarkNotified(ctx context.Context, key string) error
}

// Dispatcher turns domain events into emails. Deliveries are at-least-once
// upstream; the tracker, when present, suppresses repeats.
type Dispatcher struct {
	mailer     Mailer
	bookings   BookingReader
	shows      ShowReader
	movies     MovieReader
	recipients RecipientReader
	tracker    DeliveryTracker
	loc        *time.Location
	appURL     string
	currency   string
}

func NewDispatcher(mailer Mailer, bookings BookingReader, shows ShowReader, movies MovieReader, recipients RecipientReader, tracker DeliveryTracker, cfg Config) *Dispatcher {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil || cfg.Timezone == "" {
		logger.Get().Warn("Unknown notification timezone, using UTC", "timezone", cfg.Timezone)
		loc = time.UTC
	}

	return &Dispatcher{
		mailer:     mailer,
		bookings:   bookings,
		shows:      shows,
		movies:     movies,
		recipients: recipients,
		tracker:    tracker,
		loc:        loc,
		appURL:     cfg.AppURL,
		currency:   cfg.Currency,
	}
}

// confirmation is the resolved view of a booking.confirmed event
type confirmation struct {
	BookingID string
	ShowID    string
	MovieID   string
	UserID    string
	Email     string
	Name      string
	Title     string
	Image     string
	ShowTime  time.Time
	Seats     []string
	Amount    int64

	user *models.User
}

func (c *confirmation) complete() bool {
	return c.Email != "" && c.Name != "" && c.Title != "" && c.Image != "" && !c.ShowTime.IsZero() && len(c.Seats) > 0
}

type resolver func(ctx context.Context, c *confirmation) error

// OnBookingConfirmed sends the booking confirmation. ErrEmailUnresolved is
// terminal unless a lookup failed along the way.
func (d *Dispatcher) OnBookingConfirmed(ctx context.Context, event *models.BookingConfirmedEvent) error {
	log := logger.WithBooking(ctx, event.BookingID).With("notification", kindBookingConfirmed)

	key := kindBookingConfirmed + ":" + event.BookingID
	if d.alreadySent(ctx, key) {
		log.Info("Confirmation already sent, skipping")
		metrics.NotificationsSent.WithLabelValues(kindBookingConfirmed, "duplicate").Inc()
		return nil
	}

	c := fromEvent(event)
	var lookupErr error
	for _, resolve := range []resolver{d.fromBooking, d.fromShow, d.fromMovie, d.fromRecipient} {
		if c.complete() {
			break
		}
		if err := resolve(ctx, c); err != nil {
			log.Warn("Notification field lookup failed", "error", err)
			lookupErr = errors.Join(lookupErr, err)
		}
	}

	if c.Email == "" {
		metrics.NotificationsSent.WithLabelValues(kindBookingConfirmed, "unresolved").Inc()
		if lookupErr != nil {
			return fmt.Errorf("recipient lookup for booking %s: %w", event.BookingID, lookupErr)
		}
		log.Error("No email for confirmed booking", "user_id", c.UserID)
		return fmt.Errorf("booking %s: %w", event.BookingID, apperrors.ErrEmailUnresolved)
	}

	if c.Name == "" {
		var first, last, username string
		if c.user != nil {
			first, last, username = c.user.FirstName, c.user.LastName, c.user.Username
		}
		c.Name = DisplayName(first, last, username, c.Email, "")
	}
	if c.Title == "" {
		c.Title = notAvail
	}

	view := bookingConfirmedView{
		Name:      c.Name,
		Title:     c.Title,
		ShowDate:  d.formatTime(c.ShowTime, dateLayout),
		ShowTime:  d.formatTime(c.ShowTime, timeLayout),
		BookingID: c.BookingID,
		Seats:     c.Seats,
		Amount:    d.formatAmount(c.Amount),
		Image:     c.Image,
		AppURL:    d.appURL,
	}
	body, err := render(bookingConfirmedTmpl, view)
	if err != nil {
		return fmt.Errorf("failed to render confirmation: %w", err)
	}

	subject := fmt.Sprintf("Payment Confirmation: %q booked!", c.Title)
	messageID, err := d.mailer.Send(ctx, c.Email, subject, body)
	if err != nil {
		metrics.NotificationsSent.WithLabelValues(kindBookingConfirmed, "failed").Inc()
		return fmt.Errorf("failed to send confirmation for booking %s: %w", event.BookingID, err)
	}

	d.markSent(ctx, key)
	metrics.NotificationsSent.WithLabelValues(kindBookingConfirmed, "sent").Inc()
	log.Info("Confirmation sent", "message_id", messageID)
	return nil
}

// OnCatalogItemAdded announces a movie's new shows to every known recipient.
// Per-recipient failures are joined and returned so the event is redelivered;
// recipients already notified are skipped on the retry.
func (d *Dispatcher) OnCatalogItemAdded(ctx context.Context, event *models.ShowAddedEvent) error {
	log := logger.WithContext(ctx).With("notification", kindShowAdded, "movie_id", event.MovieID)

	if d.movies == nil {
		return fmt.Errorf("movie %s: %w", event.MovieID, apperrors.ErrMovieNotFound)
	}
	movie, err := d.movies.GetByID(ctx, event.MovieID)
	if err != nil {
		return fmt.Errorf("failed to load movie %s: %w", event.MovieID, err)
	}
	if movie == nil {
		log.Error("Movie for new show not found")
		return fmt.Errorf("movie %s: %w", event.MovieID, apperrors.ErrMovieNotFound)
	}

	users, err := d.recipients.ListWithEmail(ctx)
	if err != nil {
		return fmt.Errorf("failed to list recipients: %w", err)
	}

	subject := fmt.Sprintf("New Show Added: %s", movie.Title)
	var sendErr error
	sent := 0
	for _, user := range users {
		key := fmt.Sprintf("%s:%s:%s", kindShowAdded, movie.ID, user.ID)
		if d.alreadySent(ctx, key) {
			continue
		}

		view := showAddedView{
			Name:        DisplayName(user.FirstName, user.LastName, user.Username, user.Email, ""),
			Title:       movie.Title,
			ReleaseDate: movie.ReleaseDate,
			Genres:      movie.Genres,
			Description: movie.Description,
			Image:       movie.PrimaryImage,
			BookURL:     strings.TrimRight(d.appURL, "/") + "/movies/" + movie.ID,
			AppURL:      d.appURL,
		}
		body, err := render(showAddedTmpl, view)
		if err != nil {
			return fmt.Errorf("failed to render show announcement: %w", err)
		}

		if _, err := d.mailer.Send(ctx, user.Email, subject, body); err != nil {
			log.Warn("Failed to send show announcement", "user_id", user.ID, "error", err)
			metrics.NotificationsSent.WithLabelValues(kindShowAdded, "failed").Inc()
			sendErr = errors.Join(sendErr, fmt.Errorf("recipient %s: %w", user.ID, err))
			continue
		}

		d.markSent(ctx, key)
		metrics.NotificationsSent.WithLabelValues(kindShowAdded, "sent").Inc()
		sent++
	}

	log.Info("Show announcement processed", "recipients", len(users), "sent", sent)
	return sendErr
}

func fromEvent(event *models.BookingConfirmedEvent) *confirmation {
	return &confirmation{
		BookingID: event.BookingID,
		ShowID:    event.ShowID,
		UserID:    event.UserID,
		Email:     strings.TrimSpace(event.Email),
		Name:      clean(event.Name),
		Title:     clean(event.MovieTitle),
		Image:     event.PrimaryImage,
		ShowTime:  event.ShowDateTime,
		Seats:     event.Seats,
		Amount:    event.Amount,
	}
}

func (d *Dispatcher) fromBooking(ctx context.Context, c *confirmation) error {
	if d.bookings == nil || c.BookingID == "" {
		return nil
	}
	booking, err := d.bookings.GetByID(ctx, c.BookingID)
	if err != nil || booking == nil {
		return err
	}

	if c.Email == "" {
		c.Email = strings.TrimSpace(booking.Email)
	}
	if c.ShowID == "" {
		c.ShowID = booking.ShowID
	}
	if c.UserID == "" {
		c.UserID = booking.UserID
	}
	if len(c.Seats) == 0 {
		c.Seats = booking.Seats
	}
	if c.Amount == 0 {
		c.Amount = booking.Amount
	}
	return nil
}

func (d *Dispatcher) fromShow(ctx context.Context, c *confirmation) error {
	if d.shows == nil || c.ShowID == "" {
		return nil
	}
	if !c.ShowTime.IsZero() && c.Title != "" && c.Image != "" {
		return nil
	}
	show, err := d.shows.GetByID(ctx, c.ShowID)
	if err != nil || show == nil {
		return err
	}

	if c.ShowTime.IsZero() {
		c.ShowTime = show.ShowDateTime
	}
	c.MovieID = show.MovieID
	return nil
}

func (d *Dispatcher) fromMovie(ctx context.Context, c *confirmation) error {
	if d.movies == nil || c.MovieID == "" || (c.Title != "" && c.Image != "") {
		return nil
	}
	movie, err := d.movies.GetByID(ctx, c.MovieID)
	if err != nil || movie == nil {
		return err
	}

	if c.Title == "" {
		c.Title = movie.Title
	}
	if c.Image == "" {
		c.Image = movie.PrimaryImage
	}
	return nil
}

func (d *Dispatcher) fromRecipient(ctx context.Context, c *confirmation) error {
	if d.recipients == nil || c.UserID == "" || (c.Email != "" && c.Name != "") {
		return nil
	}
	user, err := d.recipients.GetByID(ctx, c.UserID)
	if err != nil || user == nil {
		return err
	}

	c.user = user
	if c.Email == "" {
		c.Email = strings.TrimSpace(user.Email)
	}
	return nil
}

func (d *Dispatcher) formatTime(t time.Time, layout string) string {
	if t.IsZero() {
		return notAvail
	}
	return t.In(d.loc).Format(layout)
}

// formatAmount renders a booking amount in major units, e.g. "500 INR"
func (d *Dispatcher) formatAmount(amount int64) string {
	if d.currency == "" {
		return strconv.FormatInt(amount, 10)
	}
	return strconv.FormatInt(amount, 10) + " " + d.currency
}

// alreadySent reports false when the tracker cannot answer
func (d *Dispatcher) alreadySent(ctx context.Context, key string) bool {
	if d.tracker == nil {
		return false
	}
	sent, err := d.tracker.WasNotified(ctx, key)
	if err != nil {
		logger.WithContext(ctx).Warn("Delivery tracker lookup failed", "key", key, "error", err)
		return false
	}
	return sent
}

func (d *Dispatcher) markSent(ctx context.Context, key string) {
	if d.tracker == nil {
		return
	}
	if err := d.tracker.MarkNotified(ctx, key); err != nil {
		logger.WithContext(ctx).Warn("Failed to record delivery", "key", key, "error", err)
	}
}
