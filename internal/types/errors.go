package types

import "fmt"

// InsufficientHistoryError marks a symbol whose feature window is shorter
// than the model requires. It excludes the symbol for the day, never the day.
type InsufficientHistoryError struct {
	Symbol string
	Need   int
	Have   int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history for %s: have %d rows, need %d", e.Symbol, e.Have, e.Need)
}

// InvalidSignalError marks a NaN/Inf score dropped before portfolio
// construction.
type InvalidSignalError struct {
	Symbol string
}

func (e *InvalidSignalError) Error() string {
	return fmt.Sprintf("invalid signal for %s", e.Symbol)
}

// MissingPriceError is raised when every symbol lacks price data on a date;
// it is the one per-day condition treated as structural.
type MissingPriceError struct {
	Date string
}

func (e *MissingPriceError) Error() string {
	return fmt.Sprintf("no price data for any symbol on %s", e.Date)
}
