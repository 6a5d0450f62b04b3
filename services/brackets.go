package services

import "time"

// AgeBracket is a building-age band used as a comparable-sales
// aggregation key. Ages are inclusive on both ends.
type AgeBracket struct {
	Label  string
	MinAge int
	MaxAge int
}

// AreaBracket is a floor-area band in m², inclusive of MinArea and
// exclusive of MaxArea so fractional areas never fall between bands.
type AreaBracket struct {
	Label   string
	MinArea float64
	MaxArea float64
}

// Bands are ordered, monotonic and non-overlapping. Areas below the
// smallest band are too small to have reliable comparables.
var (
	ageBrackets = []AgeBracket{
		{Label: "0-10", MinAge: 0, MaxAge: 10},
		{Label: "11-20", MinAge: 11, MaxAge: 20},
		{Label: "21-30", MinAge: 21, MaxAge: 30},
		{Label: "31+", MinAge: 31, MaxAge: 999},
	}

	areaBrackets = []AreaBracket{
		{Label: "40-50", MinArea: 40, MaxArea: 50},
		{Label: "50-60", MinArea: 50, MaxArea: 60},
		{Label: "60-70", MinArea: 60, MaxArea: 70},
		{Label: "70-80", MinArea: 70, MaxArea: 80},
		{Label: "80+", MinArea: 80, MaxArea: 1e9},
	}
)

// ContainsAge reports whether a building age in years falls in the band.
func (b AgeBracket) ContainsAge(age int) bool {
	return age >= b.MinAge && age <= b.MaxAge
}

// YearRange converts the band into the completion-year range it matches
// against, relative to the given current year.
func (b AgeBracket) YearRange(currentYear int) (minYear, maxYear int) {
	return currentYear - b.MaxAge, currentYear - b.MinAge
}

// Contains reports whether a floor area falls in the band.
func (b AreaBracket) Contains(area float64) bool {
	return area >= b.MinArea && area < b.MaxArea
}

// AgeBracketFor classifies a building completion year into an age band.
// A nil year or a year in the future yields nil: the listing cannot be
// compared, and estimation fails silently upstream.
func AgeBracketFor(buildingYear *int, currentYear int) *AgeBracket {
	if buildingYear == nil {
		return nil
	}
	age := currentYear - *buildingYear
	if age < 0 {
		return nil
	}
	for i := range ageBrackets {
		if ageBrackets[i].ContainsAge(age) {
			return &ageBrackets[i]
		}
	}
	return nil
}

// AreaBracketFor classifies a floor area into an area band. Areas below
// the smallest band (or a nil area) yield nil.
func AreaBracketFor(area *float64) *AreaBracket {
	if area == nil {
		return nil
	}
	for i := range areaBrackets {
		if areaBrackets[i].Contains(*area) {
			return &areaBrackets[i]
		}
	}
	return nil
}

// CurrentYear is the reference year for age bracketing.
func CurrentYear() int {
	return time.Now().Year()
}
