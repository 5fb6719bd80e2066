package resource

import (
	"github.com/mmynk/lifeboard/internal/models"
)

// Resources bundles every hook of the client core.
type Resources struct {
	Wallets       *Wallets
	Categories    *Categories
	Transactions  *Transactions
	Budgets       *Budgets
	Loans         *Loans
	Universes     *Universes
	Shows         *Shows
	Episodes      *Episodes
	EpisodeStatus *EpisodeStatuses
	Organizations *Organizations
	Roles         *Roles
}

// New builds every hook over deps.
func New(deps Deps) (*Resources, error) {
	if err := deps.normalize(); err != nil {
		return nil, err
	}
	d := &deps

	transactions := &Transactions{NewCollection[models.Transaction, models.TransactionDraft](d, transactionSpec)}
	return &Resources{
		Wallets:       &Wallets{NewCollection[models.Wallet, models.WalletDraft](d, walletSpec), transactions},
		Categories:    &Categories{NewCollection[models.Category, models.CategoryDraft](d, categorySpec)},
		Transactions:  transactions,
		Budgets:       &Budgets{NewCollection[models.Budget, models.BudgetDraft](d, budgetSpec), transactions},
		Loans:         &Loans{NewCollection[models.Loan, models.LoanDraft](d, loanSpec)},
		Universes:     &Universes{NewCollection[models.Universe, models.UniverseDraft](d, universeSpec)},
		Shows:         &Shows{NewCollection[models.Show, models.ShowDraft](d, showSpec)},
		Episodes:      &Episodes{NewCollection[models.Episode, models.EpisodeDraft](d, episodeSpec)},
		EpisodeStatus: &EpisodeStatuses{deps: d},
		Organizations: &Organizations{NewCollection[models.Organization, models.OrganizationDraft](d, organizationSpec)},
		Roles:         &Roles{deps: d},
	}, nil
}
