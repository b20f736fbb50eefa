package cli

import (
	"context"
	"flag"
	"strings"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

type getRateCmd struct {
	app  *App
	from string
	to   string
}

func (*getRateCmd) Name() string     { return "get-rate" }
func (*getRateCmd) Synopsis() string { return "show the exchange rate between two currencies" }
func (*getRateCmd) Usage() string {
	return `get-rate -from <code> -to <code>
`
}

func (c *getRateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.from, "from", "", "source currency")
	f.StringVar(&c.to, "to", "", "target currency")
}

func (c *getRateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.from == "" || c.to == "" {
		return c.app.usage("-from and -to are required")
	}
	res, err := c.app.rates.Lookup(ctx, c.from, c.to)
	if err != nil {
		return c.app.fail(err)
	}

	updated := "fallback table"
	switch {
	case !res.UpdatedAt.IsZero():
		updated = res.UpdatedAt.Local().Format(timeLayout)
	case res.From == res.To:
		updated = "identity"
	}
	c.app.printf("Rate %s→%s: %s (updated: %s)\n", res.From, res.To, formatRate(res.Rate), updated)
	c.app.printf("Reverse rate %s→%s: %s\n", res.To, res.From, formatRate(decimal.NewFromInt(1).Div(res.Rate)))
	return subcommands.ExitSuccess
}

type setRateCmd struct {
	app  *App
	from string
	to   string
	rate decimalFlag
}

func (*setRateCmd) Name() string     { return "set-rate" }
func (*setRateCmd) Synopsis() string { return "store a fresh exchange rate" }
func (*setRateCmd) Usage() string {
	return `set-rate -from <code> -to <code> -rate <n>

  Records that one unit of from is worth rate units of to. A stored quote
  for the reverse direction is replaced.
`
}

func (c *setRateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.from, "from", "", "source currency")
	f.StringVar(&c.to, "to", "", "target currency")
	f.Var(&c.rate, "rate", "units of to per one unit of from")
}

func (c *setRateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.from == "" || c.to == "" || !c.rate.set {
		return c.app.usage("-from, -to and -rate are required")
	}
	if err := c.app.rates.SetRate(ctx, c.from, c.to, c.rate.value); err != nil {
		return c.app.fail(err)
	}
	c.app.printf("Rate %s→%s set to %s\n", strings.ToUpper(c.from), strings.ToUpper(c.to), c.rate.value.String())
	return subcommands.ExitSuccess
}

type currenciesCmd struct {
	app *App
}

func (*currenciesCmd) Name() string             { return "currencies" }
func (*currenciesCmd) Synopsis() string         { return "list supported currencies" }
func (*currenciesCmd) Usage() string            { return "currencies\n" }
func (*currenciesCmd) SetFlags(_ *flag.FlagSet) {}

func (c *currenciesCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	all := c.app.currencies.All()
	rows := make([][]string, 0, len(all))
	for _, cur := range all {
		rows = append(rows, []string{cur.Code, cur.Kind.String(), cur.DisplayInfo()})
	}
	c.app.printf("%s\n", renderTable([]string{"CODE", "TYPE", "DETAILS"}, rows))
	return subcommands.ExitSuccess
}
