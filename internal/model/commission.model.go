package model

import "time"

// DefaultCommission receives every payment unless configured otherwise.
const DefaultCommission = "FINANCE"

type Commission struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Balance      int64     `json:"balance"`
	TotalRaised  int64     `json:"totalRaised"`
	LastActivity time.Time `json:"lastActivity"`
}
