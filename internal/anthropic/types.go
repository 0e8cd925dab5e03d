package anthropic

// UsageWindow is one named utilization window of a usage snapshot. A nil
// Utilization means "unknown, do not render". ResetsAt is an ISO-8601
// timestamp, treated as opaque.
type UsageWindow struct {
	Utilization *float64 `json:"utilization,omitempty"`
	ResetsAt    *string  `json:"resets_at,omitempty"`
}

// ExtraUsage reports supplemental-credit consumption beyond the plan limits.
type ExtraUsage struct {
	IsEnabled    *bool    `json:"is_enabled,omitempty"`
	MonthlyLimit *int64   `json:"monthly_limit,omitempty"`
	UsedCredits  *int64   `json:"used_credits,omitempty"`
	Utilization  *float64 `json:"utilization,omitempty"`
}

// UsageSnapshot is the metered-usage endpoint response. Snapshots are
// immutable values; a new one wholesale-replaces the previous.
type UsageSnapshot struct {
	FiveHour       *UsageWindow `json:"five_hour,omitempty"`
	SevenDay       *UsageWindow `json:"seven_day,omitempty"`
	SevenDaySonnet *UsageWindow `json:"seven_day_sonnet,omitempty"`
	SevenDayOpus   *UsageWindow `json:"seven_day_opus,omitempty"`
	ExtraUsage     *ExtraUsage  `json:"extra_usage,omitempty"`
}

// AccountProfile describes the signed-in account. Subscription is derived
// from the stored credentials by the caller, not returned by the profile
// endpoint.
type AccountProfile struct {
	Email        string `json:"email,omitempty"`
	DisplayName  string `json:"display_name,omitempty"`
	FullName     string `json:"full_name,omitempty"`
	Subscription string `json:"subscription,omitempty"`
}

// profileResponse is the profile endpoint's wire format.
type profileResponse struct {
	Account struct {
		Email       string `json:"email"`
		DisplayName string `json:"display_name"`
		FullName    string `json:"full_name"`
	} `json:"account"`
}
