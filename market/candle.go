package market

import (
	"fmt"
	"time"
)

// Candle is one end-of-day bar for a single symbol.
type Candle struct {
	Open   float64
	High   float64
	Low    float64
	Close  float64
	time.Time
	Volume float64
}

// Validate rejects bars the clock cannot price: the engine assumes the data
// layer has already backfilled gaps.
func (c Candle) Validate() error {
	if !validPrice(c.Open) {
		return fmt.Errorf("%s open price %v is not a positive number", c.Format(DateLayout), c.Open)
	}
	if !validPrice(c.Close) {
		return fmt.Errorf("%s close price %v is not a positive number", c.Format(DateLayout), c.Close)
	}
	if c.High != 0 && c.Low != 0 && c.High < c.Low {
		return fmt.Errorf("%s high %v below low %v", c.Format(DateLayout), c.High, c.Low)
	}
	return nil
}
