package catalog

import (
	"time"

	"github.com/matzehuels/appmap/pkg/errors"
)

// CurrencyType tells whether contract values are in rupiah or another currency.
type CurrencyType string

const (
	CurrencyRp    CurrencyType = "rp"
	CurrencyNonRp CurrencyType = "non_rp"
)

// PaymentStatus is the settlement state of one contract period.
type PaymentStatus string

const (
	PaymentPaid              PaymentStatus = "paid"
	PaymentBAProcess         PaymentStatus = "ba_process"
	PaymentMKAProcess        PaymentStatus = "mka_process"
	PaymentSettlementProcess PaymentStatus = "settlement_process"
	PaymentAddendumProcess   PaymentStatus = "addendum_process"
	PaymentNotDue            PaymentStatus = "not_due"
	PaymentHasIssue          PaymentStatus = "has_issue"
	PaymentUnpaid            PaymentStatus = "unpaid"
	PaymentReservedHR        PaymentStatus = "reserved_hr"
	PaymentContractMoved     PaymentStatus = "contract_moved"
)

var paymentLabels = map[PaymentStatus]string{
	PaymentPaid:              "Paid",
	PaymentBAProcess:         "BA Process",
	PaymentMKAProcess:        "MKA Process",
	PaymentSettlementProcess: "Settlement Process",
	PaymentAddendumProcess:   "Addendum Process",
	PaymentNotDue:            "Not Due",
	PaymentHasIssue:          "Has Issue",
	PaymentUnpaid:            "Unpaid",
	PaymentReservedHR:        "Reserved HR",
	PaymentContractMoved:     "Contract Moved",
}

// Valid reports whether s is a known status.
func (s PaymentStatus) Valid() bool {
	_, ok := paymentLabels[s]
	return ok
}

// Label returns the human-readable status.
func (s PaymentStatus) Label() string {
	return paymentLabels[s]
}

// Contract is a commercial agreement covering one or more apps.
type Contract struct {
	ID                 int64            `json:"id" bson:"_id" toml:"id"`
	Title              string           `json:"title" bson:"title" toml:"title"`
	ContractNumber     string           `json:"contract_number" bson:"contract_number" toml:"contract_number"`
	AppIDs             []int64          `json:"app_ids" bson:"app_ids" toml:"app_ids"`
	CurrencyType       CurrencyType     `json:"currency_type" bson:"currency_type" toml:"currency_type"`
	ContractValueRp    float64          `json:"contract_value_rp,omitempty" bson:"contract_value_rp,omitempty" toml:"contract_value_rp"`
	ContractValueNonRp float64          `json:"contract_value_non_rp,omitempty" bson:"contract_value_non_rp,omitempty" toml:"contract_value_non_rp"`
	LumpsumValueRp     float64          `json:"lumpsum_value_rp,omitempty" bson:"lumpsum_value_rp,omitempty" toml:"lumpsum_value_rp"`
	UnitValueRp        float64          `json:"unit_value_rp,omitempty" bson:"unit_value_rp,omitempty" toml:"unit_value_rp"`
	Periods            []ContractPeriod `json:"periods,omitempty" bson:"periods,omitempty" toml:"periods"`
}

// ContractPeriod is one billing window of a contract.
type ContractPeriod struct {
	Name          string        `json:"period_name" bson:"period_name" toml:"period_name"`
	BudgetType    string        `json:"budget_type,omitempty" bson:"budget_type,omitempty" toml:"budget_type"`
	StartDate     time.Time     `json:"start_date" bson:"start_date" toml:"start_date"`
	EndDate       time.Time     `json:"end_date" bson:"end_date" toml:"end_date"`
	PaymentValue  float64       `json:"payment_value,omitempty" bson:"payment_value,omitempty" toml:"payment_value"`
	PaymentStatus PaymentStatus `json:"payment_status" bson:"payment_status" toml:"payment_status"`
}

// Covers reports whether the contract is attached to appID.
func (c *Contract) Covers(appID int64) bool {
	for _, id := range c.AppIDs {
		if id == appID {
			return true
		}
	}
	return false
}

// Validate checks the currency, period statuses and date ranges.
func (c *Contract) Validate() error {
	if c.Title == "" {
		return errors.New(errors.ErrCodeInvalidInput, "contract title is required")
	}
	switch c.CurrencyType {
	case CurrencyRp, CurrencyNonRp:
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown currency type: %q", c.CurrencyType)
	}
	for _, p := range c.Periods {
		if !p.PaymentStatus.Valid() {
			return errors.New(errors.ErrCodeInvalidInput, "period %q: unknown payment status %q", p.Name, p.PaymentStatus)
		}
		if !p.StartDate.IsZero() && !p.EndDate.IsZero() && p.EndDate.Before(p.StartDate) {
			return errors.New(errors.ErrCodeInvalidInput, "period %q ends before it starts", p.Name)
		}
	}
	return nil
}

// OutstandingValue sums payment values of periods that are not yet paid.
func (c *Contract) OutstandingValue() float64 {
	var total float64
	for _, p := range c.Periods {
		if p.PaymentStatus != PaymentPaid && p.PaymentStatus != PaymentContractMoved {
			total += p.PaymentValue
		}
	}
	return total
}
