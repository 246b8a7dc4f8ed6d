package clubspark

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lmor152/omnibooker-v2/internal/booking"
	"github.com/lmor152/omnibooker-v2/internal/providers/stripe"
)

// Type is the provider type key the handler registers under.
const Type = "clubspark"

// maxSlotAttempts caps how many ranked candidates one task may try.
const maxSlotAttempts = 3

type api interface {
	CurrentUser(ctx context.Context) (CurrentUser, error)
	AppSettings(ctx context.Context, venueSlug string) (AppSettings, error)
	AvailabilityTimes(ctx context.Context, venueSlug, date string, duration int) (Availability, error)
	CreatePayment(ctx context.Context, r CreatePaymentRequest) (Payment, error)
	RequestSession(ctx context.Context, venueSlug string, r RequestSessionRequest) (Session, error)
}

type cardTokenizer interface {
	CreatePaymentMethod(ctx context.Context, publishableKey, stripeAccount, email string, card stripe.Card) (stripe.PaymentMethod, error)
}

// Handler books ClubSpark courts: availability lookup, candidate ranking,
// Stripe card tokenization, then create-payment + request-session per
// candidate until one sticks.
type Handler struct {
	dial  func(username, password string) api
	cards cardTokenizer
	log   zerolog.Logger
}

func NewHandler(log zerolog.Logger) *Handler {
	return &Handler{
		dial:  func(username, password string) api { return New(username, password) },
		cards: stripe.New(),
		log:   log.With().Str("provider", Type).Logger(),
	}
}

type cardDetails struct {
	CardNumber string `json:"cardNumber"`
	ExpiryDate string `json:"expiryDate"` // MM/YY
	CVC        string `json:"cvc"`
}

type credentials struct {
	Username    string      `json:"username"`
	Password    string      `json:"password"`
	CardDetails cardDetails `json:"cardDetails"`
}

type slotOptions struct {
	CourtSlug     string   `json:"courtSlug"`
	DoubleSession bool     `json:"doubleSession"`
	TargetTimes   []string `json:"targetTimes"`
	TargetCourts  []any    `json:"targetCourts"`
}

// Book implements booking.HandlerFunc.
func (h *Handler) Book(ctx context.Context, bc booking.Context) booking.Result {
	var creds credentials
	if err := booking.DecodeMap(bc.Provider.Credentials, &creds); err != nil ||
		creds.Username == "" || creds.Password == "" ||
		creds.CardDetails.CardNumber == "" || creds.CardDetails.ExpiryDate == "" || creds.CardDetails.CVC == "" {
		h.log.Warn().Int64("task_id", bc.Task.ID).Msg("missing or invalid credentials")
		return booking.Result{Message: "missing or invalid ClubSpark credentials"}
	}

	var opts slotOptions
	if err := booking.DecodeMap(bc.Slot.Options, &opts); err != nil {
		return booking.Result{Message: "invalid ClubSpark provider options"}
	}
	if opts.CourtSlug == "" {
		opts.CourtSlug = bc.Slot.Facility
	}
	if opts.CourtSlug == "" {
		return booking.Result{Message: "ClubSpark booking slots must specify a court slug"}
	}

	expMonth, expYear, err := cardExpiryParts(creds.CardDetails.ExpiryDate)
	if err != nil {
		return booking.Result{Message: err.Error()}
	}

	preferredTimes := opts.TargetTimes
	if len(preferredTimes) == 0 {
		preferredTimes = []string{bc.Task.StartLocal.Format("15:04")}
	}
	preferredCourts := canonicalCourts(opts.TargetCourts)

	duration := bc.Slot.DurationMinutes
	if duration <= 0 {
		duration = 60
	}
	if opts.DoubleSession {
		duration = 120
	}
	targetDate := bc.Task.TargetDate.Format("2006-01-02")

	h.log.Info().
		Int64("task_id", bc.Task.ID).
		Str("court_slug", opts.CourtSlug).
		Str("date", targetDate).
		Int("duration", duration).
		Msg("starting booking")

	client := h.dial(creds.Username, creds.Password)

	user, err := client.CurrentUser(ctx)
	if err != nil {
		h.log.Warn().Err(err).Msg("current user lookup failed")
		return booking.Result{Message: err.Error()}
	}
	availability, err := client.AvailabilityTimes(ctx, opts.CourtSlug, targetDate, duration)
	if err != nil {
		h.log.Warn().Err(err).Msg("availability lookup failed")
		return booking.Result{Message: err.Error()}
	}
	if len(availability.Times) == 0 {
		return booking.Result{Message: "no availability returned by ClubSpark"}
	}

	ranked := rankCandidates(availability.Times, preferredTimes, preferredCourts)
	if len(ranked) == 0 {
		return booking.Result{Message: "no courts match the preferred times"}
	}

	settings, err := client.AppSettings(ctx, opts.CourtSlug)
	if err != nil {
		h.log.Warn().Err(err).Msg("venue settings lookup failed")
		return booking.Result{Message: err.Error()}
	}

	method, err := h.cards.CreatePaymentMethod(ctx, settings.StripePublishableKey, settings.Venue.StripeAccountID, user.EmailAddress, stripe.Card{
		Number:   creds.CardDetails.CardNumber,
		ExpMonth: expMonth,
		ExpYear:  expYear,
		CVC:      creds.CardDetails.CVC,
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("card tokenization failed")
		return booking.Result{Message: err.Error()}
	}

	attempts := ranked
	if len(attempts) > maxSlotAttempts {
		attempts = attempts[:maxSlotAttempts]
	}
	for i, cand := range attempts {
		label := minutesToLabel(cand.startTime)
		h.log.Info().Int("attempt", i+1).Str("time", label).Str("court", cand.resource.Name).Msg("attempting court")

		payment, err := client.CreatePayment(ctx, CreatePaymentRequest{
			UserName:        strings.TrimSpace(user.FirstName + " " + user.LastName),
			Cost:            cand.resource.Cost,
			Scope:           cand.resource.SessionID,
			PaymentMethodID: method.ID,
			VenueID:         settings.Venue.ID,
		})
		if err != nil {
			h.log.Warn().Err(err).Msg("payment attempt failed")
			continue
		}
		if payment.ID == "" {
			h.log.Warn().Str("status", payment.Status).Str("error", payment.Error).Msg("payment response missing id")
			continue
		}

		session, err := client.RequestSession(ctx, opts.CourtSlug, RequestSessionRequest{
			PaymentToken: payment.ID,
			Duration:     duration,
			Date:         targetDate,
			TotalPaid:    cand.resource.Cost,
			StartTime:    cand.startTime,
			ResourceID:   cand.resource.ID,
			SessionID:    cand.resource.SessionID,
		})
		if err != nil {
			h.log.Warn().Err(err).Msg("session request failed")
			continue
		}
		if session.Result < 0 {
			h.log.Warn().Int("result", session.Result).Msg("session request rejected")
			continue
		}

		confirmation := session.TransactionID
		if confirmation == "" {
			confirmation = payment.ID
		}
		return booking.Result{
			Success:          true,
			ConfirmationCode: confirmation,
			Message:          fmt.Sprintf("booked %s at %s", opts.CourtSlug, label),
		}
	}

	h.log.Error().Int64("task_id", bc.Task.ID).Msg("exhausted booking attempts")
	return booking.Result{Message: "unable to confirm booking with ClubSpark after multiple attempts"}
}

type candidate struct {
	startTime int
	resource  ResourceSlot
	rank      int
}

// rankCandidates keeps windows matching a preferred time with courts that
// still have capacity, ordered by preference rank. Sort is stable so ties
// keep the provider's original order.
func rankCandidates(times []TimeSlot, preferredTimes, preferredCourts []string) []candidate {
	var out []candidate
	for _, ts := range times {
		label := minutesToLabel(ts.Time)
		if len(preferredTimes) > 0 && indexOf(label, preferredTimes) < 0 {
			continue
		}
		for _, res := range ts.Resources {
			if res.Capacity <= 0 {
				continue
			}
			out = append(out, candidate{
				startTime: ts.Time,
				resource:  res,
				rank:      booking.Rank(label, res.Name, preferredTimes, preferredCourts, booking.MatchExact),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].rank < out[j].rank })
	return out
}

func indexOf(value string, list []string) int {
	for i, v := range list {
		if v == value {
			return i
		}
	}
	return -1
}

// canonicalCourts turns mixed court references (numbers or names) into the
// "Court N" form ClubSpark reports.
func canonicalCourts(raw []any) []string {
	var out []string
	for _, entry := range raw {
		switch v := entry.(type) {
		case string:
			if strings.HasPrefix(strings.ToLower(v), "court") {
				out = append(out, v)
			} else {
				out = append(out, "Court "+v)
			}
		case float64:
			out = append(out, fmt.Sprintf("Court %d", int(v)))
		default:
			out = append(out, fmt.Sprintf("Court %v", v))
		}
	}
	return out
}

func cardExpiryParts(expiry string) (month, year string, err error) {
	parts := strings.Split(expiry, "/")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("card expiry must use MM/YY format")
	}
	m, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || m < 1 || m > 12 {
		return "", "", fmt.Errorf("card expiry must use MM/YY format")
	}
	y, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return "", "", fmt.Errorf("card expiry must use MM/YY format")
	}
	if y <= 99 {
		y += 2000
	}
	return fmt.Sprintf("%02d", m), strconv.Itoa(y), nil
}

func minutesToLabel(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
