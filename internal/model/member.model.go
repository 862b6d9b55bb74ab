package model

import "time"

type Role string

const (
	RoleAdmin            Role = "admin"
	RoleSecretaryGeneral Role = "secretary_general"
	RoleAssistant        Role = "assistant"
	RoleCategoryLead     Role = "category_lead"
	RoleMember           Role = "member"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSecretaryGeneral, RoleAssistant, RoleCategoryLead, RoleMember:
		return true
	}
	return false
}

// FinancialStats is derived from the contribution ledger and only changes
// inside a payment transaction.
type FinancialStats struct {
	TotalContributed     int64      `json:"totalContributed"`
	LastContributionDate *time.Time `json:"lastContributionDate,omitempty"`
}

type Member struct {
	ID             string         `json:"id"`
	Matricule      string         `json:"matricule"`
	FirstName      string         `json:"firstName"`
	LastName       string         `json:"lastName"`
	Email          string         `json:"email"`
	Role           Role           `json:"role"`
	PasswordHash   string         `json:"-"`
	FinancialStats FinancialStats `json:"financialStats"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// MemberSummary is the display snapshot joined onto contributions.
type MemberSummary struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Matricule string `json:"matricule"`
}
