package auth

import "github.com/majmadigital/finance-ledger/internal/model"

type Action string

const (
	ActionPayAny            Action = "pay:any"
	ActionPaySelf           Action = "pay:self"
	ActionListContributions Action = "contributions:list"
	ActionManageCampaigns   Action = "campaigns:manage"
	ActionPledge            Action = "campaigns:pledge"
)

// Policy maps each role to the actions it may perform. Routes never check
// roles directly; they name an action and the policy decides.
type Policy map[model.Role]map[Action]struct{}

var staffActions = []Action{
	ActionPayAny,
	ActionPaySelf,
	ActionListContributions,
	ActionManageCampaigns,
	ActionPledge,
}

func DefaultPolicy() Policy {
	p := Policy{}
	for _, r := range []model.Role{model.RoleAdmin, model.RoleSecretaryGeneral, model.RoleAssistant} {
		p.Grant(r, staffActions...)
	}
	p.Grant(model.RoleCategoryLead, ActionPaySelf, ActionListContributions, ActionPledge)
	p.Grant(model.RoleMember, ActionPaySelf, ActionPledge)
	return p
}

func (p Policy) Grant(role model.Role, actions ...Action) {
	set, ok := p[role]
	if !ok {
		set = make(map[Action]struct{}, len(actions))
		p[role] = set
	}
	for _, a := range actions {
		set[a] = struct{}{}
	}
}

func (p Policy) Allows(role model.Role, action Action) bool {
	_, ok := p[role][action]
	return ok
}
