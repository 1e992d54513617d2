package paper

import "github.com/shopspring/decimal"

// CommissionModel prices the commission of one fill.
type CommissionModel interface {
	Commission(price, qty decimal.Decimal) decimal.Decimal
}

// RateModel charges rate × filled notional.
type RateModel struct {
	Rate decimal.Decimal
}

// Commission implements CommissionModel.
func (m RateModel) Commission(price, qty decimal.Decimal) decimal.Decimal {
	return price.Mul(qty).Mul(m.Rate)
}

// FreeModel charges nothing.
type FreeModel struct{}

// Commission implements CommissionModel.
func (FreeModel) Commission(_, _ decimal.Decimal) decimal.Decimal {
	return decimal.Zero
}
