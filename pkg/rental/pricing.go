package rental

import "github.com/shopspring/decimal"

// Tiered day-count schedule for the rental surcharge: nothing up to three
// days, a flat fee through six, a week rate at seven, then a per-day rate.
var (
	addedPriceShortTier   = decimal.Zero
	addedPriceMidTier     = decimal.NewFromInt(980)
	addedPriceWeekTier    = decimal.NewFromInt(1000)
	addedPricePerExtraDay = decimal.NewFromInt(50)
)

const (
	shortTierMaxDays = 3
	midTierMaxDays   = 6
	weekTierDays     = 7
)

// AddedPriceFor derives the rental surcharge from a validated date range.
// Deterministic, no side effects.
func AddedPriceFor(dates DateRange) decimal.Decimal {
	duration := dates.Days()
	switch {
	case duration <= shortTierMaxDays:
		return addedPriceShortTier
	case duration <= midTierMaxDays:
		return addedPriceMidTier
	case duration == weekTierDays:
		return addedPriceWeekTier
	default:
		extraDays := int64(duration - weekTierDays)
		return addedPriceWeekTier.Add(addedPricePerExtraDay.Mul(decimal.NewFromInt(extraDays)))
	}
}

// CalculateAddedPrice validates the raw dates and derives the surcharge.
// The end date must be strictly after the start date.
func CalculateAddedPrice(start Date, end Date) (decimal.Decimal, error) {
	dates, err := NewDateRange(start, end)
	if err != nil {
		return decimal.Zero, err
	}
	return AddedPriceFor(dates), nil
}

// CalculateTotalPrice returns basePrice plus the duration surcharge.
func CalculateTotalPrice(basePrice decimal.Decimal, dates DateRange) (decimal.Decimal, error) {
	validatedBase, err := NewPrice(basePrice)
	if err != nil {
		return decimal.Zero, err
	}
	return validatedBase.Add(AddedPriceFor(dates)), nil
}
