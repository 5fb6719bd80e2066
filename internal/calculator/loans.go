package calculator

import "github.com/shopspring/decimal"

// Loan directions understood by the calculator.
const (
	Lent     = "lent"
	Borrowed = "borrowed"
)

// LoanForOutstanding represents a loan with the minimal information needed for outstanding calculations.
type LoanForOutstanding struct {
	ID        string
	Direction string // Lent or Borrowed
	Amount    decimal.Decimal
	Paid      decimal.Decimal
}

// LoanSummary aggregates outstanding loans.
type LoanSummary struct {
	Outstanding map[string]decimal.Decimal // loan id -> amount still open
	Receivable  decimal.Decimal            // owed to the user
	Payable     decimal.Decimal            // owed by the user
	Net         decimal.Decimal            // Receivable - Payable
}

// CalculateLoanOutstanding computes what is still open on each loan. A loan
// paid beyond its amount counts as zero outstanding.
func CalculateLoanOutstanding(loans []LoanForOutstanding) LoanSummary {
	summary := LoanSummary{
		Outstanding: make(map[string]decimal.Decimal, len(loans)),
		Receivable:  decimal.Zero,
		Payable:     decimal.Zero,
	}

	for _, l := range loans {
		open := l.Amount.Sub(l.Paid)
		if open.IsNegative() {
			open = decimal.Zero
		}
		summary.Outstanding[l.ID] = open

		switch l.Direction {
		case Lent:
			summary.Receivable = summary.Receivable.Add(open)
		case Borrowed:
			summary.Payable = summary.Payable.Add(open)
		}
	}

	summary.Net = summary.Receivable.Sub(summary.Payable)
	return summary
}
