package clubspark

// ResourceSlot is one bookable court within an availability window.
type ResourceSlot struct {
	ID        string  `json:"ID"`
	SessionID string  `json:"SessionID"`
	Cost      float64 `json:"Cost"`
	Capacity  int     `json:"Capacity"`
	Name      string  `json:"Name"`
}

// TimeSlot groups the courts available at one start time, expressed as
// minutes past local midnight.
type TimeSlot struct {
	Time      int            `json:"Time"`
	Resources []ResourceSlot `json:"Resources"`
}

type Availability struct {
	Result    int        `json:"Result"`
	SessionID string     `json:"SessionID"`
	Times     []TimeSlot `json:"Times"`
}

type Venue struct {
	ID              string `json:"ID"`
	Name            string `json:"Name"`
	StripeAccountID string `json:"StripeAccountID"`
}

type AppSettings struct {
	Venue                Venue  `json:"Venue"`
	StripePublishableKey string `json:"StripePublishableKey"`
}

type CurrentUser struct {
	ID           string `json:"ID"`
	FirstName    string `json:"FirstName"`
	LastName     string `json:"LastName"`
	EmailAddress string `json:"EmailAddress"`
}

type Payment struct {
	ID     string `json:"ID"`
	Status string `json:"Status"`
	Error  string `json:"Error"`
}

type Session struct {
	Result        int    `json:"Result"`
	ResourceID    string `json:"ResourceID"`
	SessionID     string `json:"SessionID"`
	TransactionID string `json:"TransactionID"`
}
