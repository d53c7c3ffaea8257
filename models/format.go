package models

// Format holds the structural settings of a tournament run.
type Format struct {
	Name           string `json:"name"`
	RoundRobinLegs int    `json:"round_robin_legs"` // 1 for single round-robin, 2 for double
	GroupCount     int    `json:"group_count"`
	QualifierCount int    `json:"qualifier_count"`
}

const (
	DefaultQualifierCount = 8
	maxRoundRobinLegs     = 2
)

// DefaultFormat is a single group, single round-robin, top-8 knockout.
func DefaultFormat() Format {
	return Format{
		Name:           "GroupKnockout",
		RoundRobinLegs: 1,
		GroupCount:     1,
		QualifierCount: DefaultQualifierCount,
	}
}

// Normalized returns a copy with out-of-range settings replaced by defaults.
func (f Format) Normalized() Format {
	if f.RoundRobinLegs < 1 || f.RoundRobinLegs > maxRoundRobinLegs {
		f.RoundRobinLegs = 1
	}
	if f.GroupCount < 1 {
		f.GroupCount = 1
	}
	if f.QualifierCount < 2 {
		f.QualifierCount = DefaultQualifierCount
	}
	if f.Name == "" {
		f.Name = "GroupKnockout"
	}
	return f
}
