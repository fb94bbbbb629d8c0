package trade

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrPriceUnavailable means no quote — fresh or stale — exists for the
// requested ticker. Fatal to a trade, surfaced to the caller.
var ErrPriceUnavailable = errors.New("trade: price unavailable")

// InsufficientFundsError rejects a buy whose total exceeds the session's
// cash balance. Carries the computed amounts for the caller's UX.
type InsufficientFundsError struct {
	Need decimal.Decimal
	Have decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: need $%s, have $%s",
		e.Need.StringFixed(2), e.Have.StringFixed(2))
}

// InsufficientSharesError rejects a sell of more shares than are held.
type InsufficientSharesError struct {
	Ticker    string
	Requested int64
	Held      int64
}

func (e *InsufficientSharesError) Error() string {
	return fmt.Sprintf("insufficient shares of %s: requested %d, hold %d",
		e.Ticker, e.Requested, e.Held)
}
