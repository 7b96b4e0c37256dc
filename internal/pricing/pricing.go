package pricing

import (
	"errors"
	"strings"
)

// PrintType selects monochrome or colour output.
type PrintType string

// SideType selects single or double sided output.
type SideType string

const (
	PrintBW    PrintType = "BW"
	PrintColor PrintType = "COLOR"

	SideSingle SideType = "SINGLE"
	SideDouble SideType = "DOUBLE"
)

// Tier schedule in rupees per page.
const (
	colorSingleRate = 10.0
	colorDoubleRate = 20.0

	bwTierPages      = 10
	bwTierRate       = 2.0
	bwSingleOverRate = 1.0
	bwDoubleOverRate = 1.5
)

var (
	ErrInvalidPages     = errors.New("page count must be a positive integer")
	ErrInvalidPrintType = errors.New("print type must be BW or COLOR")
	ErrInvalidSideType  = errors.New("side type must be SINGLE or DOUBLE")
)

// ParsePrintType accepts BW or COLOR in any case.
func ParsePrintType(s string) (PrintType, error) {
	switch PrintType(strings.ToUpper(strings.TrimSpace(s))) {
	case PrintBW:
		return PrintBW, nil
	case PrintColor:
		return PrintColor, nil
	default:
		return "", ErrInvalidPrintType
	}
}

// ParseSideType accepts SINGLE or DOUBLE in any case.
func ParseSideType(s string) (SideType, error) {
	switch SideType(strings.ToUpper(strings.TrimSpace(s))) {
	case SideSingle:
		return SideSingle, nil
	case SideDouble:
		return SideDouble, nil
	default:
		return "", ErrInvalidSideType
	}
}

// Valid reports whether pt is a known print type.
func (pt PrintType) Valid() bool {
	return pt == PrintBW || pt == PrintColor
}

// Valid reports whether st is a known side type.
func (st SideType) Valid() bool {
	return st == SideSingle || st == SideDouble
}

// ValidatePages rejects page counts below one.
func ValidatePages(pages int) error {
	if pages < 1 {
		return ErrInvalidPages
	}
	return nil
}

// ComputeCost returns the price of a job. It performs no validation: callers
// must run ValidatePages and parse the enums first. Non-positive page counts
// cost nothing.
//
// Beyond the first ten pages double sided BW is charged more per page than
// single sided BW. That is the shop's rate card, keep it.
func ComputeCost(pages int, pt PrintType, st SideType) float64 {
	if pages <= 0 {
		return 0
	}
	p := float64(pages)

	if pt == PrintColor {
		if st == SideDouble {
			return p * colorDoubleRate
		}
		return p * colorSingleRate
	}

	if pages <= bwTierPages {
		return p * bwTierRate
	}
	over := float64(pages - bwTierPages)
	base := bwTierPages * bwTierRate
	if st == SideDouble {
		return base + over*bwDoubleOverRate
	}
	return base + over*bwSingleOverRate
}

// Option is one priced combination of print and side type.
type Option struct {
	PrintType PrintType
	SideType  SideType
	Cost      float64
}

// Quote prices every combination for the given page count.
func Quote(pages int) []Option {
	combos := []struct {
		pt PrintType
		st SideType
	}{
		{PrintBW, SideSingle},
		{PrintBW, SideDouble},
		{PrintColor, SideSingle},
		{PrintColor, SideDouble},
	}
	out := make([]Option, 0, len(combos))
	for _, c := range combos {
		out = append(out, Option{PrintType: c.pt, SideType: c.st, Cost: ComputeCost(pages, c.pt, c.st)})
	}
	return out
}
