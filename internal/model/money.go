package model

import (
	"fmt"
	"strconv"
)

// ParseMinorUnits converts string amounts already in minor units to int64.
// The Store API returns all price fields this way (e.g. "8900" = 8900
// pence = £89.00). Handles empty strings and stray decimals.
// Examples: "8900" → 8900, "123456" → 123456, "" → 0
func ParseMinorUnits(s string) int64 {
	if s == "" {
		return 0
	}
	// Parse as float to handle potential decimal values, then truncate
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int64(f)
}

// FormatMinorUnits renders a minor-unit amount as a decimal string using
// the currency's minor unit count, e.g. (1250, "£", 2) → "£12.50".
// Used by the CLI and agent gateway for human-readable totals.
func FormatMinorUnits(amount int64, symbol string, minorUnit int) string {
	if minorUnit <= 0 {
		return fmt.Sprintf("%s%d", symbol, amount)
	}
	div := int64(1)
	for i := 0; i < minorUnit; i++ {
		div *= 10
	}
	major := amount / div
	minor := amount % div
	if minor < 0 {
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%0*d", symbol, major, minorUnit, minor)
}
