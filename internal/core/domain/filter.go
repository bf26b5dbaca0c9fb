package domain

// FilterKind identifies the kind of a search filter definition.
type FilterKind string

// Filter kinds, in the order providers usually declare them.
const (
	FilterHeader    FilterKind = "header"
	FilterSeparator FilterKind = "separator"
	FilterText      FilterKind = "text"
	FilterCheckBox  FilterKind = "checkbox"
	FilterTriState  FilterKind = "tristate"
	FilterSelect    FilterKind = "select"
	FilterSort      FilterKind = "sort"
	FilterGroup     FilterKind = "group"
)

// Tri-state values.
const (
	TriIgnore  = 0
	TriInclude = 1
	TriExclude = 2
)

// Filter is a filter definition together with its current value.
// Which value fields are meaningful depends on Kind.
type Filter struct {
	Kind FilterKind
	Name string

	// Options lists the choices of a Select or Sort filter.
	Options []string

	// Filters holds the children of a Group.
	Filters []Filter

	// Text is the value of a Text filter.
	Text string

	// State is the checked flag of a CheckBox (0/1), the tri-state of a
	// TriState, or the selected option index of a Select or Sort.
	State int

	// Ascending is the direction of a Sort.
	Ascending bool
}

// IsSet reports whether the filter carries a non-default value.
func (f Filter) IsSet() bool {
	switch f.Kind {
	case FilterText:
		return f.Text != ""
	case FilterCheckBox, FilterTriState, FilterSelect:
		return f.State != 0
	case FilterSort:
		return true
	case FilterGroup:
		for _, c := range f.Filters {
			if c.IsSet() {
				return true
			}
		}
	}
	return false
}

// Selected returns the chosen option of a Select or Sort, or "".
func (f Filter) Selected() string {
	if f.State < 0 || f.State >= len(f.Options) {
		return ""
	}
	return f.Options[f.State]
}

// FindFilter returns the first filter named name, searching groups.
func FindFilter(filters []Filter, name string) (Filter, bool) {
	for _, f := range filters {
		if f.Name == name {
			return f, true
		}
		if f.Kind == FilterGroup {
			if c, ok := FindFilter(f.Filters, name); ok {
				return c, true
			}
		}
	}
	return Filter{}, false
}
