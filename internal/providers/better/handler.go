package better

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lmor152/omnibooker-v2/internal/booking"
)

// Type is the provider type key the handler registers under.
const Type = "better"

// maxSlotAttempts caps how many ranked candidates one task may try.
const maxSlotAttempts = 5

type api interface {
	ActivityTimes(ctx context.Context, venueSlug, activitySlug, date string) ([]Activity, error)
	Slots(ctx context.Context, venueSlug, activitySlug string, a Activity) ([]Slot, error)
	ClearCart(ctx context.Context) (Cart, error)
	AddToCart(ctx context.Context, slot Slot) (Cart, error)
	ApplyCredits(ctx context.Context, amount int) error
	PrepareCheckout(ctx context.Context) (PrepareCheckout, error)
	ValidateCVC(ctx context.Context, opayoCardID, cvc, sessionKey string) error
	AuthoriseCheckout(ctx context.Context, r AuthoriseRequest) (AuthoriseCheckout, error)
	CompleteBooking(ctx context.Context, transactionID string, creditsToUse int, cartHash string) error
}

// Handler books Better activities: window lookup, per-window slot lookup,
// candidate ranking, then cart + credits + card checkout per candidate until
// one completes.
type Handler struct {
	dial func(username, password string) api
	log  zerolog.Logger
}

func NewHandler(log zerolog.Logger) *Handler {
	return &Handler{
		dial: func(username, password string) api { return New(username, password) },
		log:  log.With().Str("provider", Type).Logger(),
	}
}

type credentials struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	CardCVC     string `json:"cardCvc"`
	CardDetails struct {
		CVC string `json:"cvc"`
	} `json:"cardDetails"`
}

func (c credentials) cvc() string {
	if c.CardCVC != "" {
		return c.CardCVC
	}
	return c.CardDetails.CVC
}

type slotOptions struct {
	VenueSlug    string   `json:"venueSlug"`
	ActivitySlug string   `json:"activitySlug"`
	UseCredits   *bool    `json:"useCredits"`
	TargetTimes  []string `json:"targetTimes"`
	TargetCourts []string `json:"targetCourts"`
}

// Book implements booking.HandlerFunc.
func (h *Handler) Book(ctx context.Context, bc booking.Context) booking.Result {
	var creds credentials
	if err := booking.DecodeMap(bc.Provider.Credentials, &creds); err != nil ||
		creds.Username == "" || creds.Password == "" || creds.cvc() == "" {
		h.log.Warn().Int64("task_id", bc.Task.ID).Msg("missing or invalid credentials")
		return booking.Result{Message: "missing or invalid Better credentials"}
	}

	var opts slotOptions
	if err := booking.DecodeMap(bc.Slot.Options, &opts); err != nil || opts.VenueSlug == "" || opts.ActivitySlug == "" {
		return booking.Result{Message: "Better booking slots must specify venueSlug and activitySlug"}
	}
	useCredits := opts.UseCredits == nil || *opts.UseCredits

	preferredTimes := opts.TargetTimes
	if len(preferredTimes) == 0 {
		preferredTimes = []string{bc.Task.StartLocal.Format("15:04")}
	}
	preferredCourts := normalizeCourts(opts.TargetCourts)
	targetDate := bc.Task.TargetDate.Format("2006-01-02")

	h.log.Info().
		Int64("task_id", bc.Task.ID).
		Str("venue", opts.VenueSlug).
		Str("activity", opts.ActivitySlug).
		Str("date", targetDate).
		Msg("starting booking")

	client := h.dial(creds.Username, creds.Password)

	activities, err := client.ActivityTimes(ctx, opts.VenueSlug, opts.ActivitySlug, targetDate)
	if err != nil {
		h.log.Warn().Err(err).Msg("activity lookup failed")
		return booking.Result{Message: err.Error()}
	}

	windows := selectWindows(activities, preferredTimes)
	if len(windows) == 0 {
		return booking.Result{Message: "no matching Better activities available"}
	}

	ranked := h.rankSlots(ctx, client, opts.ActivitySlug, windows, preferredTimes, preferredCourts)
	if len(ranked) == 0 {
		return booking.Result{Message: "no bookable Better slots found"}
	}

	cardName := cardHolderName(bc, creds)

	attempts := ranked
	if len(attempts) > maxSlotAttempts {
		attempts = attempts[:maxSlotAttempts]
	}
	for i, cand := range attempts {
		h.log.Info().Int("attempt", i+1).Str("time", cand.slot.StartsAt.Format24).Str("court", cand.slot.Location.Name).Msg("attempting slot")
		confirmation, ok := h.attempt(ctx, client, cand.slot, useCredits, creds.cvc(), cardName)
		if ok {
			return booking.Result{
				Success:          true,
				ConfirmationCode: confirmation,
				Message:          fmt.Sprintf("booked %s at %s", opts.VenueSlug, cand.slot.StartsAt.Format24),
			}
		}
	}

	h.log.Error().Int64("task_id", bc.Task.ID).Msg("exhausted booking attempts")
	return booking.Result{Message: "unable to confirm booking with Better"}
}

// attempt runs the cart/credit/checkout protocol for one candidate. Any
// step-level failure abandons only this candidate.
func (h *Handler) attempt(ctx context.Context, client api, slot Slot, useCredits bool, cvc, cardName string) (string, bool) {
	if _, err := client.ClearCart(ctx); err != nil {
		h.log.Warn().Err(err).Msg("cart clear failed")
		return "", false
	}
	cart, err := client.AddToCart(ctx, slot)
	if err != nil {
		h.log.Warn().Err(err).Msg("cart add failed")
		return "", false
	}

	creditsToUse := 0
	if credit, ok := cart.GeneralCredit(); ok && useCredits {
		creditsToUse = credit.MaxApplicable
	}
	if creditsToUse > 0 {
		if err := client.ApplyCredits(ctx, creditsToUse); err != nil {
			h.log.Warn().Err(err).Msg("credit application failed")
			creditsToUse = 0
		}
	}

	transactionID := ""
	if cart.Total > creditsToUse {
		prepare, err := client.PrepareCheckout(ctx)
		if err != nil {
			h.log.Warn().Err(err).Msg("checkout preparation failed")
			return "", false
		}
		if err := client.ValidateCVC(ctx, prepare.SavedCard.ExternalIdentifier, cvc, prepare.SessionKey); err != nil {
			h.log.Warn().Err(err).Msg("cvc validation failed")
			return "", false
		}
		auth, err := client.AuthoriseCheckout(ctx, AuthoriseRequest{
			CardID:         prepare.SavedCard.ID,
			CreditsToUse:   creditsToUse,
			CartHash:       cart.ItemHash,
			SessionKey:     prepare.SessionKey,
			CardHolderName: cardName,
		})
		if err != nil {
			h.log.Warn().Err(err).Msg("checkout authorisation failed")
			return "", false
		}
		if !strings.EqualFold(auth.TransactionStatus, "authorised") {
			h.log.Warn().Str("status", auth.TransactionStatus).Msg("checkout not authorised")
			return "", false
		}
		transactionID = auth.TransactionUUID
	}

	if err := client.CompleteBooking(ctx, transactionID, creditsToUse, cart.ItemHash); err != nil {
		h.log.Warn().Err(err).Msg("booking completion failed")
		return "", false
	}

	if transactionID != "" {
		return transactionID, true
	}
	return cart.ItemHash, true
}

type candidate struct {
	slot Slot
	rank int
}

// rankSlots fetches the concrete slots for each selected window and ranks the
// bookable ones. A failed slot fetch skips only that window.
func (h *Handler) rankSlots(ctx context.Context, client api, activitySlug string, windows []Activity, preferredTimes, preferredCourts []string) []candidate {
	var out []candidate
	for _, window := range windows {
		slots, err := client.Slots(ctx, window.VenueSlug, activitySlug, window)
		if err != nil {
			h.log.Debug().Err(err).Str("composite_key", window.CompositeKey).Msg("slot fetch failed")
			continue
		}
		for _, slot := range slots {
			if slot.ActionToShow.Status != "BOOK" {
				continue
			}
			out = append(out, candidate{
				slot: slot,
				rank: booking.Rank(slot.StartsAt.Format24, slot.Location.Name, preferredTimes, preferredCourts, booking.MatchSubstring),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].rank < out[j].rank })
	return out
}

// selectWindows keeps activity windows with spaces left that match a
// preferred start time.
func selectWindows(activities []Activity, preferredTimes []string) []Activity {
	var out []Activity
	for _, a := range activities {
		if a.Spaces <= 0 {
			continue
		}
		if len(preferredTimes) > 0 && !contains(preferredTimes, a.StartsAt.Format24) {
			continue
		}
		out = append(out, a)
	}
	return out
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}

// normalizeCourts trims and de-duplicates the preferred court list,
// preserving order.
func normalizeCourts(raw []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, v := range raw {
		text := strings.TrimSpace(v)
		if text == "" {
			continue
		}
		key := strings.ToLower(text)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, text)
	}
	return out
}

func cardHolderName(bc booking.Context, creds credentials) string {
	if bc.User.FullName != "" {
		return bc.User.FullName
	}
	if bc.User.Email != "" {
		return bc.User.Email
	}
	if creds.Username != "" {
		return creds.Username
	}
	return "Member"
}
