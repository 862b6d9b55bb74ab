package model

import (
	"time"
)

type ContributionType string

const (
	ContributionAdiyas     ContributionType = "Adiyas"
	ContributionSass       ContributionType = "Sass"
	ContributionZiar       ContributionType = "Ziar"
	ContributionMagal      ContributionType = "Magal"
	ContributionCotisation ContributionType = "Cotisation"
	ContributionDon        ContributionType = "Don"
)

var contributionTypes = map[ContributionType]struct{}{
	ContributionAdiyas:     {},
	ContributionSass:       {},
	ContributionZiar:       {},
	ContributionMagal:      {},
	ContributionCotisation: {},
	ContributionDon:        {},
}

func (t ContributionType) Valid() bool {
	_, ok := contributionTypes[t]
	return ok
}

type ContributionStatus string

const (
	ContributionPending ContributionStatus = "pending"
	ContributionPaid    ContributionStatus = "paid"
	ContributionFailed  ContributionStatus = "failed"
)

type Contribution struct {
	ID            string             `json:"id"`
	MemberID      string             `json:"memberId"`
	Type          ContributionType   `json:"type"`
	Amount        int64              `json:"amount"`
	Status        ContributionStatus `json:"status"`
	TransactionID string             `json:"transactionId"`
	EventLabel    string             `json:"eventLabel,omitempty"`
	ProcessedBy   string             `json:"processedBy"`
	CampaignID    *string            `json:"campaignId,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
}

type ContributionWithMember struct {
	Contribution
	Member MemberSummary `json:"member"`
}

// ContributionFilter controls List queries. Zero values mean "no predicate".
type ContributionFilter struct {
	MemberID *string
	Type     *ContributionType
	From     *time.Time
	To       *time.Time
	Limit    int // default 50
	Offset   int
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 1000
)

// Normalize clamps pagination to the supported range.
func (f ContributionFilter) Normalize() ContributionFilter {
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultListLimit
	case f.Limit > MaxListLimit:
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
