package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/lifeboard/internal/apperr"
)

// Transaction kinds. Categories use the same values.
const (
	KindIncome  = "income"
	KindExpense = "expense"
)

// Loan directions.
const (
	LoanLent     = "lent"
	LoanBorrowed = "borrowed"
)

// DateLayout is the calendar-date format used by OccurredOn, StartsOn, etc.
const DateLayout = time.DateOnly

// Wallet is an account holding money (cash, bank, e-wallet).
type Wallet struct {
	Audit
	Scope
	Name           string          `json:"name"`
	Type           string          `json:"type"`
	Currency       string          `json:"currency"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

type WalletDraft struct {
	Name           string          `json:"name"`
	Type           string          `json:"type"`
	Currency       string          `json:"currency"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

func (d WalletDraft) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return apperr.FieldInvalid("name", "wallet name is required")
	}
	if len(d.Currency) != 3 {
		return apperr.FieldInvalid("currency", "currency must be a 3-letter code")
	}
	return nil
}

// Category groups transactions for reporting and budgets.
type Category struct {
	Audit
	Scope
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Color string `json:"color"`
}

type CategoryDraft struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Color string `json:"color"`
}

func (d CategoryDraft) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return apperr.FieldInvalid("name", "category name is required")
	}
	return validKind(d.Kind)
}

// Transaction moves money in or out of a wallet.
type Transaction struct {
	Audit
	Scope
	WalletID   string          `json:"wallet_id"`
	CategoryID *string         `json:"category_id"`
	Kind       string          `json:"kind"`
	Amount     decimal.Decimal `json:"amount"`
	Note       string          `json:"note"`
	OccurredOn string          `json:"occurred_on"`
}

type TransactionDraft struct {
	WalletID   string          `json:"wallet_id"`
	CategoryID *string         `json:"category_id"`
	Kind       string          `json:"kind"`
	Amount     decimal.Decimal `json:"amount"`
	Note       string          `json:"note"`
	OccurredOn string          `json:"occurred_on"`
}

func (d TransactionDraft) Validate() error {
	if d.WalletID == "" {
		return apperr.FieldInvalid("wallet_id", "wallet is required")
	}
	if err := validKind(d.Kind); err != nil {
		return err
	}
	if !d.Amount.IsPositive() {
		return apperr.FieldInvalid("amount", "amount must be greater than zero")
	}
	return validDate("occurred_on", d.OccurredOn)
}

// Budget caps spending in a category over a date window.
type Budget struct {
	Audit
	Scope
	CategoryID string          `json:"category_id"`
	Name       string          `json:"name"`
	Amount     decimal.Decimal `json:"amount"`
	StartsOn   string          `json:"starts_on"`
	EndsOn     string          `json:"ends_on"`
}

type BudgetDraft struct {
	CategoryID string          `json:"category_id"`
	Name       string          `json:"name"`
	Amount     decimal.Decimal `json:"amount"`
	StartsOn   string          `json:"starts_on"`
	EndsOn     string          `json:"ends_on"`
}

func (d BudgetDraft) Validate() error {
	if d.CategoryID == "" {
		return apperr.FieldInvalid("category_id", "category is required")
	}
	if !d.Amount.IsPositive() {
		return apperr.FieldInvalid("amount", "budget amount must be greater than zero")
	}
	if err := validDate("starts_on", d.StartsOn); err != nil {
		return err
	}
	if err := validDate("ends_on", d.EndsOn); err != nil {
		return err
	}
	if d.EndsOn < d.StartsOn {
		return apperr.FieldInvalid("ends_on", "budget must end after it starts")
	}
	return nil
}

// Loan tracks money lent to or borrowed from someone.
type Loan struct {
	Audit
	Scope
	Counterparty string          `json:"counterparty"`
	Direction    string          `json:"direction"`
	Amount       decimal.Decimal `json:"amount"`
	Paid         decimal.Decimal `json:"paid"`
	DueOn        *string         `json:"due_on"`
	Note         string          `json:"note"`
}

type LoanDraft struct {
	Counterparty string          `json:"counterparty"`
	Direction    string          `json:"direction"`
	Amount       decimal.Decimal `json:"amount"`
	Paid         decimal.Decimal `json:"paid"`
	DueOn        *string         `json:"due_on"`
	Note         string          `json:"note"`
}

func (d LoanDraft) Validate() error {
	if strings.TrimSpace(d.Counterparty) == "" {
		return apperr.FieldInvalid("counterparty", "counterparty is required")
	}
	if d.Direction != LoanLent && d.Direction != LoanBorrowed {
		return apperr.FieldInvalid("direction", "direction must be %q or %q", LoanLent, LoanBorrowed)
	}
	if !d.Amount.IsPositive() {
		return apperr.FieldInvalid("amount", "loan amount must be greater than zero")
	}
	if d.Paid.IsNegative() || d.Paid.GreaterThan(d.Amount) {
		return apperr.FieldInvalid("paid", "paid must be between zero and the loan amount")
	}
	if d.DueOn != nil {
		return validDate("due_on", *d.DueOn)
	}
	return nil
}

func validKind(kind string) error {
	if kind != KindIncome && kind != KindExpense {
		return apperr.FieldInvalid("kind", "kind must be %q or %q", KindIncome, KindExpense)
	}
	return nil
}

func validDate(field, value string) error {
	if _, err := time.Parse(DateLayout, value); err != nil {
		return apperr.FieldInvalid(field, "%s must be a date (YYYY-MM-DD)", field)
	}
	return nil
}
