package repository

import (
	"time"

	"github.com/majmadigital/finance-ledger/internal/model"
	"github.com/majmadigital/finance-ledger/pkg/pg"
)

type MemberEntity struct {
	pg.Model
	Matricule            string     `gorm:"column:matricule;not null;uniqueIndex"`
	FirstName            string     `gorm:"column:first_name;not null"`
	LastName             string     `gorm:"column:last_name;not null"`
	Email                string     `gorm:"column:email;not null;uniqueIndex"`
	Role                 string     `gorm:"column:role;not null;default:member"`
	PasswordHash         string     `gorm:"column:password_hash;not null"`
	TotalContributed     int64      `gorm:"column:total_contributed;not null;default:0"`
	LastContributionDate *time.Time `gorm:"column:last_contribution_date"`
}

func (MemberEntity) TableName() string {
	return "members"
}

func toMemberEntity(m *model.Member) *MemberEntity {
	if m == nil {
		return nil
	}
	return &MemberEntity{
		Model:                pg.Model{ID: m.ID, CreatedAt: m.CreatedAt},
		Matricule:            m.Matricule,
		FirstName:            m.FirstName,
		LastName:             m.LastName,
		Email:                m.Email,
		Role:                 string(m.Role),
		PasswordHash:         m.PasswordHash,
		TotalContributed:     m.FinancialStats.TotalContributed,
		LastContributionDate: m.FinancialStats.LastContributionDate,
	}
}

func toMemberModel(e *MemberEntity) *model.Member {
	if e == nil {
		return nil
	}
	return &model.Member{
		ID:           e.ID,
		Matricule:    e.Matricule,
		FirstName:    e.FirstName,
		LastName:     e.LastName,
		Email:        e.Email,
		Role:         model.Role(e.Role),
		PasswordHash: e.PasswordHash,
		FinancialStats: model.FinancialStats{
			TotalContributed:     e.TotalContributed,
			LastContributionDate: e.LastContributionDate,
		},
		CreatedAt: e.CreatedAt,
	}
}
