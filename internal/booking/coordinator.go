// Package booking converts an active hold into a confirmed booking.  The
// Coordinator is the only code that drives both the lock manager and the
// seat map: it prices the selection, sells the seats, records the booking
// and consumes the hold as one all-or-nothing unit.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v3"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/pricing"
	"github.com/iliyamo/showtime-booking/internal/seatmap"
)

// Locks is the part of the hold lifecycle the coordinator needs.  It is
// satisfied by *seatlock.Manager.
type Locks interface {
	Get(ctx context.Context, holdID string) (*model.Hold, error)
	Consume(ctx context.Context, holdID string) (*model.Hold, error)
}

// Notifier is told about every booking that reaches confirmed.  Delivery
// failures are logged and never fail the confirmation.
type Notifier interface {
	BookingConfirmed(ctx context.Context, b *model.Booking) error
}

// ConfirmRequest carries a checkout for one hold.  HolderID must come from
// the authenticated caller, never from the request body.
type ConfirmRequest struct {
	HoldID        string
	HolderID      string
	Combos        []model.ComboSelection
	PaymentMethod model.PaymentMethod
	PaymentStatus model.PaymentStatus
}

// Coordinator confirms holds into bookings and serves booking reads.
type Coordinator struct {
	store    Store
	seats    *seatmap.SeatMap
	locks    Locks
	notifier Notifier
	now      func() time.Time
	newCode  func(time.Time) string
	log      logrus.FieldLogger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock replaces time.Now for booking timestamps and codes.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithNotifier registers the receiver of booking-confirmed events.
func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

// WithLogger sets the coordinator's logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Coordinator) { c.log = l }
}

// WithCodeGenerator replaces NewBookingCode.
func WithCodeGenerator(f func(time.Time) string) Option {
	return func(c *Coordinator) { c.newCode = f }
}

// New returns a Coordinator over store, using seats for seat transitions
// and locks for hold lookup and consumption.
func New(store Store, seats *seatmap.SeatMap, locks Locks, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:   store,
		seats:   seats,
		locks:   locks,
		now:     time.Now,
		newCode: NewBookingCode,
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewBookingCode returns "BK", the unix milliseconds of now and four
// upper-case random characters.
func NewBookingCode(now time.Time) string {
	return "BK" + strconv.FormatInt(now.UnixMilli(), 10) + strings.ToUpper(shortuuid.New()[:4])
}

// Confirm turns the caller's active hold into a confirmed booking.
//
// A second Confirm for a hold that already produced a booking returns that
// booking unchanged.  A hold that lapsed or was released fails with a
// conflict and nothing is written.  Storage failures are rolled back and
// reported as model.ErrInternal.
func (c *Coordinator) Confirm(ctx context.Context, req ConfirmRequest) (*model.Booking, error) {
	if req.HoldID == "" {
		return nil, model.Invalid("hold_id", "is required")
	}
	if req.HolderID == "" {
		return nil, model.Invalid("holder_id", "is required")
	}
	payment, err := normalizePayment(req.PaymentMethod, req.PaymentStatus)
	if err != nil {
		return nil, err
	}
	selections, err := normalizeCombos(req.Combos)
	if err != nil {
		return nil, err
	}

	hold, err := c.locks.Get(ctx, req.HoldID)
	if err != nil {
		return nil, err
	}
	if hold.HolderID != req.HolderID {
		return nil, fmt.Errorf("%w: hold %s belongs to another holder", model.ErrForbidden, hold.ID)
	}
	if hold.State != model.HoldActive {
		if hold.State == model.HoldConsumed {
			if b := c.existing(ctx, hold.ID); b != nil {
				return b, nil
			}
		}
		return nil, &model.ConflictError{Reason: fmt.Sprintf("hold %s is %s", hold.ID, hold.State)}
	}

	showtime, sold, err := c.seats.Check(ctx, hold.ShowtimeID, hold.SeatNumbers)
	if err != nil {
		return nil, storeErr("load showtime", err)
	}
	if len(sold) > 0 {
		return nil, &model.ConflictError{Seats: sold, Reason: "seats already sold"}
	}

	catalog, err := c.catalog(ctx, selections)
	if err != nil {
		return nil, err
	}
	quote := pricing.QuoteSelection(showtime, hold.SeatNumbers, selections, catalog)

	now := c.now()
	b := &model.Booking{
		Code:          c.newCode(now),
		HoldID:        hold.ID,
		HolderID:      hold.HolderID,
		HolderContact: hold.HolderContact,
		ShowtimeID:    showtime.ID,
		MovieTitle:    showtime.MovieTitle,
		HallName:      showtime.HallName,
		StartsAt:      showtime.StartsAt,
		Seats:         quote.Seats,
		Combos:        quote.Combos,
		Total:         quote.Total,
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: payment,
		Status:        model.BookingPending,
		CreatedAt:     now,
	}
	if b.Combos == nil {
		b.Combos = []model.BookedCombo{}
	}
	log := c.log.WithFields(logrus.Fields{
		"hold_id":      hold.ID,
		"showtime_id":  hold.ShowtimeID,
		"booking_code": b.Code,
	})

	err = c.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.InsertBooking(ctx, b); err != nil {
			return err
		}
		return c.seats.MarkSold(ctx, tx, hold.ShowtimeID, hold.SeatNumbers)
	})
	if err != nil {
		if errors.Is(err, model.ErrConflict) {
			// A concurrent confirm of the same hold may already be done.
			if existing := c.existing(ctx, hold.ID); existing != nil {
				return existing, nil
			}
			return nil, err
		}
		return nil, storeErr("write booking", err)
	}

	if _, err := c.locks.Consume(ctx, hold.ID); err != nil {
		if rerr := c.reconcile(ctx, b); rerr != nil {
			log.WithError(rerr).Error("reconcile failed booking")
			return nil, fmt.Errorf("%w: reconcile booking %s: %v", model.ErrInternal, b.Code, rerr)
		}
		log.WithError(err).Warn("hold not consumable, booking rolled back")
		if errors.Is(err, model.ErrConflict) || errors.Is(err, model.ErrNotFound) {
			return nil, &model.ConflictError{Reason: fmt.Sprintf("hold %s is no longer active", hold.ID)}
		}
		return nil, storeErr("consume hold", err)
	}

	if err := c.finalize(ctx, b.Code); err != nil {
		// The hold is consumed, so a retry of Confirm finishes this booking.
		log.WithError(err).Error("finalize booking")
		return nil, storeErr("finalize booking", err)
	}
	b.Status = model.BookingConfirmed

	log.WithField("total", b.Total).Info("booking confirmed")
	c.notify(ctx, b)
	return b, nil
}

// existing returns the booking recorded for a consumed hold, completing
// it first when its confirmation was interrupted after consumption.
func (c *Coordinator) existing(ctx context.Context, holdID string) *model.Booking {
	b, err := c.store.BookingByHold(ctx, holdID)
	if err != nil {
		return nil
	}
	if b.Status != model.BookingPending {
		return b
	}
	h, err := c.locks.Get(ctx, holdID)
	if err != nil || h.State != model.HoldConsumed {
		return nil
	}
	if err := c.finalize(ctx, b.Code); err != nil {
		return nil
	}
	b.Status = model.BookingConfirmed
	c.notify(ctx, b)
	return b
}

func (c *Coordinator) finalize(ctx context.Context, code string) error {
	return c.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.SetBookingStatus(ctx, code, model.BookingConfirmed)
	})
}

// reconcile undoes a pending booking whose hold could not be consumed.
func (c *Coordinator) reconcile(ctx context.Context, b *model.Booking) error {
	return c.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := c.seats.Revert(ctx, tx, b.ShowtimeID, b.SeatNumbers()); err != nil {
			return err
		}
		return tx.DeleteBooking(ctx, b.Code)
	})
}

func (c *Coordinator) notify(ctx context.Context, b *model.Booking) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.BookingConfirmed(ctx, b); err != nil {
		c.log.WithError(err).WithField("booking_code", b.Code).Warn("booking event not delivered")
	}
}

// catalog loads the combos referenced by selections and rejects unknown
// or inactive ones.
func (c *Coordinator) catalog(ctx context.Context, selections []model.ComboSelection) (map[string]model.Combo, error) {
	if len(selections) == 0 {
		return map[string]model.Combo{}, nil
	}
	ids := make([]string, 0, len(selections))
	for _, s := range selections {
		ids = append(ids, s.ComboID)
	}
	catalog, err := c.store.Combos(ctx, ids)
	if err != nil {
		return nil, storeErr("load combos", err)
	}
	for _, id := range ids {
		combo, ok := catalog[id]
		if !ok {
			return nil, model.Invalid("combos", "unknown combo "+id)
		}
		if !combo.IsActive {
			return nil, model.Invalid("combos", "combo "+id+" is not available")
		}
	}
	return catalog, nil
}

// ListBookings returns the holder's bookings, newest first.
func (c *Coordinator) ListBookings(ctx context.Context, holderID string) ([]model.Booking, error) {
	if holderID == "" {
		return nil, model.Invalid("holder_id", "is required")
	}
	out, err := c.store.BookingsByHolder(ctx, holderID)
	if err != nil {
		return nil, storeErr("list bookings", err)
	}
	return out, nil
}

// GetBooking returns one of the holder's bookings.  Bookings of other
// holders are reported as not found.
func (c *Coordinator) GetBooking(ctx context.Context, code, holderID string) (*model.Booking, error) {
	if code == "" {
		return nil, model.Invalid("booking_code", "is required")
	}
	b, err := c.store.BookingByCode(ctx, code)
	if err != nil {
		return nil, storeErr("load booking", err)
	}
	if b.HolderID != holderID || b.Status == model.BookingPending {
		return nil, fmt.Errorf("%w: booking %s", model.ErrNotFound, code)
	}
	return b, nil
}

// Combos lists the purchasable combo catalog.
func (c *Coordinator) Combos(ctx context.Context) ([]model.Combo, error) {
	out, err := c.store.ActiveCombos(ctx)
	if err != nil {
		return nil, storeErr("list combos", err)
	}
	return out, nil
}

func normalizePayment(method model.PaymentMethod, status model.PaymentStatus) (model.PaymentStatus, error) {
	if !method.Valid() {
		return "", model.Invalid("payment_method", "must be one of momo, vnpay, visa, cod")
	}
	if status == "" {
		status = model.PaymentPaid
	}
	if !status.Valid() {
		return "", model.Invalid("payment_status", "must be one of pending, paid, failed, cancelled")
	}
	if status == model.PaymentFailed || status == model.PaymentCancelled {
		return "", model.Invalid("payment_status", "payment was "+string(status))
	}
	return status, nil
}

// normalizeCombos defaults a zero quantity to one and merges repeated
// combo ids into one line, keeping first-seen order.
func normalizeCombos(in []model.ComboSelection) ([]model.ComboSelection, error) {
	out := make([]model.ComboSelection, 0, len(in))
	index := make(map[string]int, len(in))
	for _, s := range in {
		if s.ComboID == "" {
			return nil, model.Invalid("combos", "combo_id is required")
		}
		if s.Quantity < 0 {
			return nil, model.Invalid("combos", "quantity must not be negative")
		}
		if s.Quantity == 0 {
			s.Quantity = 1
		}
		if i, ok := index[s.ComboID]; ok {
			out[i].Quantity += s.Quantity
			continue
		}
		index[s.ComboID] = len(out)
		out = append(out, s)
	}
	return out, nil
}

func storeErr(op string, err error) error {
	switch {
	case errors.Is(err, model.ErrNotFound),
		errors.Is(err, model.ErrForbidden),
		errors.Is(err, model.ErrConflict),
		errors.Is(err, model.ErrValidation),
		errors.Is(err, model.ErrInternal):
		return err
	}
	return fmt.Errorf("%w: %s: %v", model.ErrInternal, op, err)
}
