package better

// TimeLabel carries both clock formats the API reports for a start or end
// time. Matching always uses the 24-hour form.
type TimeLabel struct {
	Format12 string `json:"format_12_hour"`
	Format24 string `json:"format_24_hour"`
}

// Activity is one bookable window for an activity on a date.
type Activity struct {
	StartsAt     TimeLabel `json:"starts_at"`
	EndsAt       TimeLabel `json:"ends_at"`
	Spaces       int       `json:"spaces"`
	CompositeKey string    `json:"composite_key"`
	VenueSlug    string    `json:"venue_slug"`
	Date         string    `json:"date"`
}

// Slot is one concrete court/lane within an activity window.
type Slot struct {
	ID              int64     `json:"id"`
	PricingOptionID int64     `json:"pricing_option_id"`
	StartsAt        TimeLabel `json:"starts_at"`
	Location        struct {
		Name string `json:"name"`
	} `json:"location"`
	ActionToShow struct {
		Status string `json:"status"`
	} `json:"action_to_show"`
}

type CartCredit struct {
	TotalAvailable int `json:"total_available"`
	MaxApplicable  int `json:"max_applicable"`
}

type Cart struct {
	ItemHash string                `json:"itemHash"`
	Credits  map[string]CartCredit `json:"credits"`
	Items    []struct {
		ID int64 `json:"id"`
	} `json:"items"`
	Total int `json:"total"`
}

// GeneralCredit returns the account-wide credit balance on the cart, if any.
func (c Cart) GeneralCredit() (CartCredit, bool) {
	credit, ok := c.Credits["general"]
	return credit, ok
}

type SavedCard struct {
	ID                 string `json:"id"`
	ExternalIdentifier string `json:"external_identifier"`
}

type PrepareCheckout struct {
	SavedCard  SavedCard `json:"saved_card"`
	SessionKey string    `json:"session_key"`
}

type AuthoriseCheckout struct {
	TransactionUUID   string `json:"transaction_uuid"`
	TransactionStatus string `json:"transaction_status"`
}
