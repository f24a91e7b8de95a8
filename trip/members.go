package trip

import "fmt"

// DefaultSkillLevel is used when a member has not reported a skill level.
const DefaultSkillLevel = "Intermediate"

// MemberInput is a group member as sent by clients. Older clients send
// id/name/skill instead of memberId/memberName/skillLevel.
type MemberInput struct {
	MemberID    string       `json:"memberId,omitempty"`
	ID          string       `json:"id,omitempty"`
	MemberName  string       `json:"memberName,omitempty"`
	Name        string       `json:"name,omitempty"`
	Address     string       `json:"address,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	SkillLevel  string       `json:"skillLevel,omitempty"`
	Skill       string       `json:"skill,omitempty"`
	Budget      string       `json:"budget,omitempty"`
}

// Profile maps the input onto the strict travel profile.
func (m MemberInput) Profile() MemberTravelProfile {
	return MemberTravelProfile{
		MemberID:    firstNonEmpty(m.MemberID, m.ID),
		MemberName:  firstNonEmpty(m.MemberName, m.Name),
		Address:     m.Address,
		Coordinates: m.Coordinates,
		SkillLevel:  firstNonEmpty(m.SkillLevel, m.Skill, DefaultSkillLevel),
		Budget:      m.Budget,
	}
}

// NormalizeMembers converts client member input into travel profiles.
// Every member needs an id and ids must be unique.
func NormalizeMembers(in []MemberInput) ([]MemberTravelProfile, error) {
	if len(in) == 0 {
		return nil, NewValidationError("members", "at least one member is required")
	}

	seen := make(map[string]bool, len(in))
	out := make([]MemberTravelProfile, 0, len(in))
	for i, m := range in {
		p := m.Profile()
		if p.MemberID == "" {
			return nil, NewValidationError(fmt.Sprintf("members[%d].memberId", i), "is required")
		}
		if seen[p.MemberID] {
			return nil, NewValidationError(fmt.Sprintf("members[%d].memberId", i), fmt.Sprintf("duplicate member id %q", p.MemberID))
		}
		seen[p.MemberID] = true
		out = append(out, p)
	}
	return out, nil
}

// Budgets returns the non-empty member budgets in member order.
func Budgets(members []MemberTravelProfile) []string {
	var budgets []string
	for _, m := range members {
		if m.Budget != "" {
			budgets = append(budgets, m.Budget)
		}
	}
	return budgets
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
