package tier

import (
	"steward/bizerror"
	"steward/domain"
)

// StageTemplate is immutable, versionless catalog content. Templates are
// expanded into stage records at workflow initialization and never consulted
// again for in-flight workflows.
type StageTemplate struct {
	Order         int                 `json:"order"`
	Name          string              `json:"name"`
	RequiredRoles domain.RoleList     `json:"requiredRoles"`
	GateCriteria  domain.JSONDocument `json:"gateCriteria"`
}

var lowTierTemplates = []StageTemplate{
	{Order: 1, Name: "Intake Review", RequiredRoles: domain.RoleList{"governance-analyst"},
		GateCriteria: domain.JSONDocument(`{"checklist":["use case documented","data sources declared"]}`)},
	{Order: 2, Name: "Risk & Compliance Review", RequiredRoles: domain.RoleList{"compliance-officer"},
		GateCriteria: domain.JSONDocument(`{"checklist":["regulatory scan complete","risk register updated"]}`)},
	{Order: 3, Name: "Final Approval", RequiredRoles: domain.RoleList{"governance-lead"},
		GateCriteria: domain.JSONDocument(`{"checklist":["all prior stages signed off"]}`)},
}

var mediumTierTemplates = []StageTemplate{
	{Order: 1, Name: "Intake Review", RequiredRoles: domain.RoleList{"governance-analyst"},
		GateCriteria: domain.JSONDocument(`{"checklist":["use case documented","data sources declared"]}`)},
	{Order: 2, Name: "Data Privacy Review", RequiredRoles: domain.RoleList{"privacy-officer"},
		GateCriteria: domain.JSONDocument(`{"checklist":["PII inventory complete","retention policy assigned"]}`)},
	{Order: 3, Name: "Risk & Compliance Review", RequiredRoles: domain.RoleList{"compliance-officer"},
		GateCriteria: domain.JSONDocument(`{"checklist":["regulatory scan complete","risk register updated"]}`)},
	{Order: 4, Name: "Security Review", RequiredRoles: domain.RoleList{"security-officer"},
		GateCriteria: domain.JSONDocument(`{"checklist":["threat model reviewed","access controls verified"]}`)},
	{Order: 5, Name: "Final Approval", RequiredRoles: domain.RoleList{"governance-lead"},
		GateCriteria: domain.JSONDocument(`{"checklist":["all prior stages signed off"]}`)},
}

var highTierTemplates = []StageTemplate{
	{Order: 1, Name: "Intake Review", RequiredRoles: domain.RoleList{"governance-analyst"},
		GateCriteria: domain.JSONDocument(`{"checklist":["use case documented","data sources declared"]}`)},
	{Order: 2, Name: "Data Privacy Review", RequiredRoles: domain.RoleList{"privacy-officer"},
		GateCriteria: domain.JSONDocument(`{"checklist":["PII inventory complete","retention policy assigned"]}`)},
	{Order: 3, Name: "Model Risk Assessment", RequiredRoles: domain.RoleList{"model-risk-analyst"},
		GateCriteria: domain.JSONDocument(`{"checklist":["model card drafted","bias evaluation attached"]}`)},
	{Order: 4, Name: "Risk & Compliance Review", RequiredRoles: domain.RoleList{"compliance-officer"},
		GateCriteria: domain.JSONDocument(`{"checklist":["regulatory scan complete","risk register updated"]}`)},
	{Order: 5, Name: "Security Review", RequiredRoles: domain.RoleList{"security-officer"},
		GateCriteria: domain.JSONDocument(`{"checklist":["threat model reviewed","access controls verified"]}`)},
	{Order: 6, Name: "Ethics Board Review", RequiredRoles: domain.RoleList{"ethics-board-member"},
		GateCriteria: domain.JSONDocument(`{"checklist":["human oversight plan approved"]}`)},
	{Order: 7, Name: "Executive Approval", RequiredRoles: domain.RoleList{"executive-sponsor"},
		GateCriteria: domain.JSONDocument(`{"checklist":["all prior stages signed off","benefit case confirmed"]}`)},
}

var catalog = map[domain.RiskTier][]StageTemplate{
	domain.RiskTierLow:    lowTierTemplates,
	domain.RiskTierMedium: mediumTierTemplates,
	domain.RiskTierHigh:   highTierTemplates,
}

// TemplatesFor returns the ordered stage templates of a risk tier. The result
// is a copy, callers may not mutate catalog content.
func TemplatesFor(t domain.RiskTier) ([]StageTemplate, error) {
	templates, found := catalog[t]
	if !found {
		return nil, bizerror.ErrUnknownTier
	}
	result := make([]StageTemplate, len(templates))
	copy(result, templates)
	return result, nil
}

func Tiers() []domain.RiskTier {
	return []domain.RiskTier{domain.RiskTierLow, domain.RiskTierMedium, domain.RiskTierHigh}
}
