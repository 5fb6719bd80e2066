package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/lifeboard/internal/currency"
	"github.com/mmynk/lifeboard/internal/models"
	"github.com/mmynk/lifeboard/internal/resource"
)

// WalletsCmd groups the wallet commands.
type WalletsCmd struct {
	List WalletsListCmd `cmd:"" default:"1" help:"List wallets with balances."`
	Add  WalletsAddCmd  `cmd:"" help:"Add a wallet."`
}

type WalletsListCmd struct{}

func (c *WalletsListCmd) Run(ctx context.Context, globals *Globals) error {
	client, err := globals.Client()
	if err != nil {
		return err
	}
	wallets, err := client.Resources.Wallets.Balances(ctx)
	if err != nil {
		return err
	}
	w := table("ID\tNAME\tTYPE\tBALANCE\tINCOME\tEXPENSE")
	for _, wallet := range wallets {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			wallet.ID, wallet.Name, orDash(wallet.Type),
			currency.Format(wallet.Balance, wallet.Currency),
			currency.Format(wallet.TotalIncome, wallet.Currency),
			currency.Format(wallet.TotalExpense, wallet.Currency))
	}
	return w.Flush()
}

type WalletsAddCmd struct {
	Name     string          `arg:"" help:"Wallet name."`
	Currency string          `help:"ISO currency code." default:"USD"`
	Type     string          `help:"Wallet type, e.g. cash or bank." default:"cash"`
	Initial  decimal.Decimal `help:"Initial balance." default:"0"`
}

func (c *WalletsAddCmd) Run(ctx context.Context, globals *Globals) error {
	client, err := globals.Client()
	if err != nil {
		return err
	}
	wallet, err := client.Resources.Wallets.Create(ctx, models.WalletDraft{
		Name:           c.Name,
		Type:           c.Type,
		Currency:       c.Currency,
		InitialBalance: c.Initial,
	})
	if err != nil {
		return err
	}
	fmt.Println(wallet.ID)
	return nil
}

// TxCmd groups the transaction commands.
type TxCmd struct {
	List TxListCmd `cmd:"" default:"1" help:"List transactions."`
	Add  TxAddCmd  `cmd:"" help:"Record a transaction."`
}

type TxListCmd struct {
	Wallet   string `help:"Only this wallet."`
	Category string `help:"Only this category."`
	From     string `help:"First day, YYYY-MM-DD."`
	To       string `help:"Last day, YYYY-MM-DD."`
	Limit    int    `help:"Page size." default:"50"`
	Offset   int    `help:"Rows to skip."`
}

func (c *TxListCmd) Run(ctx context.Context, globals *Globals) error {
	client, err := globals.Client()
	if err != nil {
		return err
	}
	txs, err := client.Resources.Transactions.ListFiltered(ctx, resource.TransactionFilter{
		WalletID:   c.Wallet,
		CategoryID: c.Category,
		From:       c.From,
		To:         c.To,
		Limit:      c.Limit,
		Offset:     c.Offset,
	})
	if err != nil {
		return err
	}
	w := table("DATE\tKIND\tAMOUNT\tWALLET\tNOTE")
	for _, tx := range txs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", tx.OccurredOn, tx.Kind, tx.Amount.StringFixed(2), tx.WalletID, orDash(tx.Note))
	}
	return w.Flush()
}

type TxAddCmd struct {
	Wallet   string          `arg:"" help:"Wallet id."`
	Amount   decimal.Decimal `arg:"" help:"Amount, always positive."`
	Kind     string          `help:"income or expense." default:"expense" enum:"income,expense"`
	Category string          `help:"Category id."`
	Note     string          `help:"Free-form note."`
	Date     string          `help:"Day of the transaction, YYYY-MM-DD. Defaults to today."`
}

func (c *TxAddCmd) Run(ctx context.Context, globals *Globals) error {
	client, err := globals.Client()
	if err != nil {
		return err
	}
	draft := models.TransactionDraft{
		WalletID:   c.Wallet,
		Kind:       c.Kind,
		Amount:     c.Amount,
		Note:       c.Note,
		OccurredOn: c.Date,
	}
	if draft.OccurredOn == "" {
		draft.OccurredOn = time.Now().Format(time.DateOnly)
	}
	if c.Category != "" {
		draft.CategoryID = &c.Category
	}
	tx, err := client.Resources.Transactions.Create(ctx, draft)
	if err != nil {
		return err
	}
	fmt.Println(tx.ID)
	return nil
}
