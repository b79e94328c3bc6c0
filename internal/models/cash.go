package models

import "time"

// Cash adequacy statuses
const (
	CashSafe     = "safe"
	CashTight    = "tight"
	CashCritical = "critical"
)

// CashStatus is the normalized cash position supplied by the accounting sync.
type CashStatus struct {
	AvailableCash      float64   `db:"available_cash" json:"available_cash"`
	PendingPayables    float64   `db:"pending_payables" json:"pending_payables"`
	NetCash            float64   `db:"-" json:"net_cash"`
	CashAdequacyStatus string    `db:"-" json:"cash_adequacy_status"`
	AsOf               time.Time `db:"as_of" json:"as_of"`
}

// ClassifyCashAdequacy buckets net cash against the minimum operating buffer:
// more than twice the buffer is safe, more than the buffer is tight.
func ClassifyCashAdequacy(netCash, minBuffer float64) string {
	switch {
	case netCash > 2*minBuffer:
		return CashSafe
	case netCash > minBuffer:
		return CashTight
	default:
		return CashCritical
	}
}

// NewCashStatus derives net cash and adequacy from the raw balances.
func NewCashStatus(available, pending, minBuffer float64, asOf time.Time) *CashStatus {
	net := available - pending
	return &CashStatus{
		AvailableCash:      available,
		PendingPayables:    pending,
		NetCash:            net,
		CashAdequacyStatus: ClassifyCashAdequacy(net, minBuffer),
		AsOf:               asOf,
	}
}
