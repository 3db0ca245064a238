package models

import "fmt"

// AccountType determines how withdrawals are grossed up for taxes.
type AccountType string

const (
	AccountTaxable     AccountType = "taxable"
	AccountTaxDeferred AccountType = "tax_deferred"
	AccountTaxFree     AccountType = "tax_free"
)

func (a AccountType) Valid() bool {
	switch a {
	case AccountTaxable, AccountTaxDeferred, AccountTaxFree:
		return true
	}
	return false
}

// AssetClass describes the return assumptions for one slice of the portfolio.
// Returns are annual fractions (0.08 = 8%).
type AssetClass struct {
	Name         string  `json:"name" validate:"required"`
	Allocation   float64 `json:"allocation" validate:"gte=0,lte=1"`
	MedianReturn float64 `json:"median_return"`
	StdDeviation float64 `json:"std_deviation" validate:"gte=0"`
	MinReturn    float64 `json:"min_return"`
	MaxReturn    float64 `json:"max_return"`
}

// TaxSettings holds the rates applied when grossing up withdrawals.
type TaxSettings struct {
	AccountType           AccountType `json:"account_type" default:"taxable" validate:"oneof=taxable tax_deferred tax_free"`
	CapitalGainsTaxRate   float64     `json:"capital_gains_tax_rate" validate:"gte=0,lt=1"`
	OrdinaryIncomeTaxRate float64     `json:"ordinary_income_tax_rate" validate:"gte=0,lt=1"`
	StateTaxRate          float64     `json:"state_tax_rate" validate:"gte=0,lt=1"`
}

// CombinedRate returns the tax rate applied to withdrawals for the account type.
func (t TaxSettings) CombinedRate() float64 {
	switch t.AccountType {
	case AccountTaxFree:
		return 0
	case AccountTaxDeferred:
		return t.OrdinaryIncomeTaxRate + t.StateTaxRate
	default:
		return t.CapitalGainsTaxRate + t.StateTaxRate
	}
}

// DrawdownPlan describes the inflation-adjusted withdrawal schedule.
type DrawdownPlan struct {
	Enabled             bool    `json:"enabled"`
	FirstYearWithdrawal float64 `json:"first_year_withdrawal" validate:"gte=0"`
	InflationRate       float64 `json:"inflation_rate"`
}

// ValidationError reports a request constraint violated before any trial runs.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func validationErrorf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
