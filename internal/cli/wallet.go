package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"github.com/Krchnk/valutatrade-wallet/internal/domain"
)

type showPortfolioCmd struct {
	app  *App
	base string
}

func (*showPortfolioCmd) Name() string     { return "show-portfolio" }
func (*showPortfolioCmd) Synopsis() string { return "list wallets valued in a base currency" }
func (*showPortfolioCmd) Usage() string {
	return `show-portfolio [-base <code>]

  Shows every wallet of the logged-in user and the total in the base currency.
`
}

func (c *showPortfolioCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.base, "base", domain.USD, "currency to value the portfolio in")
}

func (c *showPortfolioCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	session, err := c.app.currentSession(ctx)
	if err != nil {
		return c.app.fail(err)
	}
	p, err := c.app.engine.Portfolio(ctx, session.UserID)
	if err != nil {
		return c.app.fail(err)
	}
	report, err := c.app.reporter.Build(p, c.base)
	if err != nil {
		return c.app.fail(err)
	}

	if len(report.Lines) == 0 {
		c.app.printf("Portfolio of '%s' is empty\n", session.Username)
		return subcommands.ExitSuccess
	}

	rows := make([][]string, 0, len(report.Lines))
	for _, line := range report.Lines {
		rate, value := "n/a", "n/a"
		if line.Known {
			rate, value = formatRate(line.Rate), formatMoney(line.Value)
		}
		rows = append(rows, []string{line.Currency, formatAmount(line.Balance), rate, value})
	}

	c.app.printf("Portfolio of '%s' (base: %s):\n", session.Username, report.Base)
	c.app.printf("%s\n", renderTable(
		[]string{"CURRENCY", "BALANCE", "RATE", "VALUE " + report.Base},
		rows, 1, 2, 3))
	c.app.printf("TOTAL: %s %s\n", formatMoney(report.Total), report.Base)
	if len(report.Skipped) > 0 {
		c.app.printf("Not valued, no rate: %v\n", report.Skipped)
	}
	return subcommands.ExitSuccess
}

// tradeFlags are shared by deposit, buy and sell.
type tradeFlags struct {
	currency string
	amount   decimalFlag
}

func (t *tradeFlags) set(f *flag.FlagSet) {
	f.StringVar(&t.currency, "currency", "", "currency code, e.g. BTC")
	f.Var(&t.amount, "amount", "positive amount in units of the currency")
}

func (t *tradeFlags) check() error {
	if t.currency == "" || !t.amount.set {
		return fmt.Errorf("-currency and -amount are required")
	}
	return nil
}

type depositCmd struct {
	app *App
	tradeFlags
}

func (*depositCmd) Name() string     { return "deposit" }
func (*depositCmd) Synopsis() string { return "credit a wallet, typically USD" }
func (*depositCmd) Usage() string {
	return `deposit -currency <code> -amount <n>
`
}

func (c *depositCmd) SetFlags(f *flag.FlagSet) { c.set(f) }

func (c *depositCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.check(); err != nil {
		return c.app.usage(err.Error())
	}
	session, err := c.app.currentSession(ctx)
	if err != nil {
		return c.app.fail(err)
	}
	r, err := c.app.engine.Deposit(ctx, session.UserID, c.currency, c.amount.value)
	if err != nil {
		return c.app.fail(err)
	}
	c.app.printf("Deposited %s %s. Balance: %s → %s\n",
		formatAmount(r.Amount), r.Currency, formatAmount(r.OldBalance), formatAmount(r.NewBalance))
	return subcommands.ExitSuccess
}

type buyCmd struct {
	app *App
	tradeFlags
}

func (*buyCmd) Name() string     { return "buy" }
func (*buyCmd) Synopsis() string { return "buy a currency with USD" }
func (*buyCmd) Usage() string {
	return `buy -currency <code> -amount <n>

  Pays amount times the current rate from the USD wallet.
`
}

func (c *buyCmd) SetFlags(f *flag.FlagSet) { c.set(f) }

func (c *buyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.check(); err != nil {
		return c.app.usage(err.Error())
	}
	session, err := c.app.currentSession(ctx)
	if err != nil {
		return c.app.fail(err)
	}
	r, err := c.app.engine.Buy(ctx, session.UserID, c.currency, c.amount.value)
	if err != nil {
		return c.app.fail(err)
	}
	c.app.printReceipt("Purchase", "Cost", r)
	return subcommands.ExitSuccess
}

type sellCmd struct {
	app *App
	tradeFlags
}

func (*sellCmd) Name() string     { return "sell" }
func (*sellCmd) Synopsis() string { return "sell a currency for USD" }
func (*sellCmd) Usage() string {
	return `sell -currency <code> -amount <n>

  Credits amount times the current rate to the USD wallet.
`
}

func (c *sellCmd) SetFlags(f *flag.FlagSet) { c.set(f) }

func (c *sellCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.check(); err != nil {
		return c.app.usage(err.Error())
	}
	session, err := c.app.currentSession(ctx)
	if err != nil {
		return c.app.fail(err)
	}
	r, err := c.app.engine.Sell(ctx, session.UserID, c.currency, c.amount.value)
	if err != nil {
		return c.app.fail(err)
	}
	c.app.printReceipt("Sale", "Income", r)
	return subcommands.ExitSuccess
}

func (a *App) printReceipt(kind, totalLabel string, r *domain.TradeReceipt) {
	a.printf("%s completed: %s %s at rate %s USD/%s\n",
		kind, formatAmount(r.Amount), r.Currency, formatRate(r.Rate), r.Currency)
	a.printf("Changes in the portfolio:\n")
	a.printf("  - %s: was %s → now %s\n", r.Currency, formatAmount(r.OldBalance), formatAmount(r.NewBalance))
	a.printf("  - USD: was %s → now %s\n", formatMoney(r.USDBefore), formatMoney(r.USDAfter))
	a.printf("%s: %s USD\n", totalLabel, formatMoney(r.Total))
	a.printf("Trade id: %s\n", r.TradeID)
}
