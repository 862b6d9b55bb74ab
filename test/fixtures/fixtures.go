package fixtures

import (
	"encoding/json"

	"github.com/majmadigital/finance-ledger/internal/model"
)

var (
	Treasurer = model.Member{
		Matricule: "MAJ-001",
		FirstName: "Mame",
		LastName:  "Diarra",
		Email:     "tresorerie@majma.test",
		Role:      model.RoleSecretaryGeneral,
	}

	Lead = model.Member{
		Matricule: "MAJ-014",
		FirstName: "Ousmane",
		LastName:  "Ndiaye",
		Email:     "ousmane@majma.test",
		Role:      model.RoleCategoryLead,
	}

	Talibe = model.Member{
		Matricule: "MAJ-102",
		FirstName: "Fatou",
		LastName:  "Mbaye",
		Email:     "fatou@majma.test",
		Role:      model.RoleMember,
	}

	OtherTalibe = model.Member{
		Matricule: "MAJ-103",
		FirstName: "Ibrahima",
		LastName:  "Diop",
		Email:     "ibrahima@majma.test",
		Role:      model.RoleMember,
	}
)

type Payment struct {
	MemberID       string `json:"memberId"`
	Type           string `json:"type"`
	Amount         any    `json:"amount"`
	EventLabel     string `json:"eventLabel,omitempty"`
	CampaignID     string `json:"campaignId,omitempty"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

func NewPayment(memberID string, t model.ContributionType, amount int64) Payment {
	return Payment{
		MemberID: memberID,
		Type:     string(t),
		Amount:   amount,
	}
}

func (p Payment) JSON() []byte {
	b, _ := json.Marshal(p)
	return b
}

func CampaignJSON(name string, target int64) []byte {
	b, _ := json.Marshal(map[string]any{
		"name":         name,
		"description":  "Préparatifs " + name,
		"targetAmount": target,
	})
	return b
}

func PledgeJSON(memberID string, amount int64) []byte {
	b, _ := json.Marshal(map[string]any{
		"memberId": memberID,
		"amount":   amount,
	})
	return b
}
