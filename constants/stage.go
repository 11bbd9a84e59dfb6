package constants

// Stage is an entry of the fixed construction stage catalog.
type Stage struct {
	Name           string
	Order          int
	TypicalPercent float64
}

var stageCatalog = []Stage{
	{Name: "Site Preparation", Order: 1, TypicalPercent: 5},
	{Name: "Foundation", Order: 2, TypicalPercent: 20},
	{Name: "Structure", Order: 3, TypicalPercent: 25},
	{Name: "Brickwork", Order: 4, TypicalPercent: 15},
	{Name: "Roofing", Order: 5, TypicalPercent: 10},
	{Name: "Electrical", Order: 6, TypicalPercent: 8},
	{Name: "Plumbing", Order: 7, TypicalPercent: 7},
	{Name: "Finishing", Order: 8, TypicalPercent: 8},
	{Name: "Final Inspection", Order: 9, TypicalPercent: 2},
}

// Stages returns the catalog in construction order.
func Stages() []Stage {
	out := make([]Stage, len(stageCatalog))
	copy(out, stageCatalog)
	return out
}

// LookupStage finds a stage by exact name.
func LookupStage(name string) (Stage, bool) {
	for _, s := range stageCatalog {
		if s.Name == name {
			return s, true
		}
	}
	return Stage{}, false
}

// StageNames returns the catalog names in order.
func StageNames() []string {
	names := make([]string, len(stageCatalog))
	for i, s := range stageCatalog {
		names[i] = s.Name
	}
	return names
}

// StageOverrunFactor bounds a stage request against its typical share of the budget.
const StageOverrunFactor = 1.5
