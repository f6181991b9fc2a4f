package enums

import "slices"

// CreditTransactionType is the closed set of ledger entry kinds.
type CreditTransactionType string

const (
	CreditTransactionPurchase   CreditTransactionType = "CREDIT_PURCHASE"
	CreditTransactionTaskSpend  CreditTransactionType = "TASK_SPEND"
	CreditTransactionTaskEarn   CreditTransactionType = "TASK_EARNING"
	CreditTransactionRefund     CreditTransactionType = "REFUND"
	CreditTransactionAdjustment CreditTransactionType = "ADJUSTMENT"
)

var validCreditTransactionTypes = []CreditTransactionType{
	CreditTransactionPurchase,
	CreditTransactionTaskSpend,
	CreditTransactionTaskEarn,
	CreditTransactionRefund,
	CreditTransactionAdjustment,
}

// String implements fmt.Stringer.
func (t CreditTransactionType) String() string {
	return string(t)
}

// IsValid reports whether the value matches the canonical transaction type enum.
func (t CreditTransactionType) IsValid() bool {
	return slices.Contains(validCreditTransactionTypes, t)
}

// AllowsSign reports whether amount has a sign this type may carry. Purchases
// and earnings only credit, spends only debit, refunds and adjustments go
// either way.
func (t CreditTransactionType) AllowsSign(amount int64) bool {
	switch t {
	case CreditTransactionPurchase, CreditTransactionTaskEarn:
		return amount > 0
	case CreditTransactionTaskSpend:
		return amount < 0
	case CreditTransactionRefund, CreditTransactionAdjustment:
		return amount != 0
	}
	return false
}

// ParseCreditTransactionType converts raw input into CreditTransactionType.
func ParseCreditTransactionType(value string) (CreditTransactionType, error) {
	return parseEnum(validCreditTransactionTypes, value, "credit transaction type")
}
