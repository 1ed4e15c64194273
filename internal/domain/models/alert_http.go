package models

// Requests and responses for the alert HTTP surface.

type AlertsQuery struct {
	Limit  int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
	Since  string `query:"since" json:"since"`
	Ticker string `query:"ticker" json:"ticker" validate:"omitempty,max=32"`
}

type FeedStatusResponse struct {
	Status  ConnectionStatus `json:"status"`
	Enabled bool             `json:"enabled"`
	URL     string           `json:"url,omitempty"`
}
