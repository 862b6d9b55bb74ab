package repository

// Entities lists every table the relational store owns, in dependency order.
// Production schemas come from the goose migrations; this list backs
// AutoMigrate for throwaway databases.
func Entities() []interface{} {
	return []interface{}{
		&MemberEntity{},
		&CommissionEntity{},
		&ContributionEntity{},
		&CampaignEntity{},
		&CampaignParticipantEntity{},
	}
}
