package model

import (
	"errors"
	"fmt"
)

// Store-level errors shared by the relational and document backends.
var (
	ErrValidation             = errors.New("validation failed")
	ErrMemberNotFound         = errors.New("member not found")
	ErrCommissionNotFound     = errors.New("commission not found")
	ErrContributionNotFound   = errors.New("contribution not found")
	ErrCampaignNotFound       = errors.New("campaign not found")
	ErrParticipantNotFound    = errors.New("campaign participant not found")
	ErrDuplicateTransactionID = errors.New("duplicate transaction id")
	ErrDuplicateMember        = errors.New("member email or matricule already exists")
	ErrDuplicateCampaign      = errors.New("campaign name already exists")
)

func validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
