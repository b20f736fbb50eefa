package cli

import (
	"bytes"
	"context"
	"flag"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/subcommands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Krchnk/valutatrade-wallet/internal/auth"
	"github.com/Krchnk/valutatrade-wallet/internal/config"
	"github.com/Krchnk/valutatrade-wallet/internal/logging"
)

type harness struct {
	app    *App
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{}
	cfg := config.Config{
		DataDir:    filepath.Join(t.TempDir(), "data"),
		Storage:    config.StorageJSON,
		JWTSecret:  "test-secret",
		SessionTTL: time.Hour,
		RateTTL:    5 * time.Minute,
	}
	app, err := New(context.Background(), cfg, logging.Discard(),
		WithOutput(&h.stdout, &h.stderr),
		WithAuthOptions(auth.WithCost(bcrypt.MinCost)))
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })
	h.app = app
	return h
}

// run executes one command line on a fresh commander, the way main does.
func (h *harness) run(args ...string) subcommands.ExitStatus {
	h.stdout.Reset()
	h.stderr.Reset()

	fs := flag.NewFlagSet("wallet", flag.ContinueOnError)
	commander := subcommands.NewCommander(fs, "wallet")
	commander.Output = &h.stdout
	commander.Error = &h.stderr
	Register(commander, h.app)
	if err := fs.Parse(args); err != nil {
		return subcommands.ExitUsageError
	}
	return commander.Execute(context.Background())
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	require.Equal(t, subcommands.ExitSuccess, h.run("register", "-username", "alice", "-password", "pass1234"), h.stderr.String())
	require.Equal(t, subcommands.ExitSuccess, h.run("login", "-username", "alice", "-password", "pass1234"), h.stderr.String())
}

func TestAccountCommands(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, subcommands.ExitFailure, h.run("whoami"))
	assert.Contains(t, h.stderr.String(), "Error: ")
	assert.Contains(t, h.stderr.String(), "not logged in")

	assert.Equal(t, subcommands.ExitSuccess, h.run("register", "-username", "alice", "-password", "pass1234"))
	assert.Contains(t, h.stdout.String(), "User 'alice' registered (id=1)")

	assert.Equal(t, subcommands.ExitFailure, h.run("register", "-username", "alice", "-password", "pass1234"))
	assert.Contains(t, h.stderr.String(), "already taken")

	assert.Equal(t, subcommands.ExitFailure, h.run("login", "-username", "alice", "-password", "wrong"))
	assert.Contains(t, h.stderr.String(), "authentication failed")

	assert.Equal(t, subcommands.ExitSuccess, h.run("login", "-username", "alice", "-password", "pass1234"))
	assert.Contains(t, h.stdout.String(), "You are logged in as 'alice'")

	assert.Equal(t, subcommands.ExitSuccess, h.run("whoami"))
	assert.Contains(t, h.stdout.String(), "alice (id=1)")

	assert.Equal(t, subcommands.ExitSuccess, h.run("logout"))
	assert.Equal(t, subcommands.ExitFailure, h.run("show-portfolio"))
}

func TestTradeCommands(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	assert.Equal(t, subcommands.ExitSuccess, h.run("show-portfolio"))
	assert.Contains(t, h.stdout.String(), "is empty")

	assert.Equal(t, subcommands.ExitFailure, h.run("buy", "-currency", "BTC", "-amount", "0.01"))
	assert.Contains(t, h.stderr.String(), "wallet does not exist")

	assert.Equal(t, subcommands.ExitSuccess, h.run("deposit", "-currency", "USD", "-amount", "1000"), h.stderr.String())
	assert.Contains(t, h.stdout.String(), "Deposited 1000.0000 USD")

	assert.Equal(t, subcommands.ExitSuccess, h.run("buy", "-currency", "btc", "-amount", "0.01"), h.stderr.String())
	out := h.stdout.String()
	assert.Contains(t, out, "Purchase completed: 0.0100 BTC at rate 100000.00 USD/BTC")
	assert.Contains(t, out, "BTC: was 0.0000 → now 0.0100")
	assert.Contains(t, out, "Cost: 1000.00 USD")

	assert.Equal(t, subcommands.ExitFailure, h.run("sell", "-currency", "BTC", "-amount", "1"))
	assert.Contains(t, h.stderr.String(), "insufficient funds")

	assert.Equal(t, subcommands.ExitSuccess, h.run("show-portfolio", "-base", "USD"))
	out = h.stdout.String()
	assert.Contains(t, out, "BTC")
	assert.Contains(t, out, "TOTAL: 1000.00 USD")

	assert.Equal(t, subcommands.ExitSuccess, h.run("sell", "-currency", "BTC", "-amount", "0.01"), h.stderr.String())
	assert.Contains(t, h.stdout.String(), "Income: 1000.00 USD")

	assert.Equal(t, subcommands.ExitFailure, h.run("show-portfolio", "-base", "XYZ"))
	assert.Contains(t, h.stderr.String(), "unknown currency")
}

func TestTradeCommandUsage(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	assert.Equal(t, subcommands.ExitUsageError, h.run("buy", "-currency", "BTC"))
	assert.Equal(t, subcommands.ExitUsageError, h.run("buy", "-currency", "BTC", "-amount", "lots"))
	assert.Equal(t, subcommands.ExitFailure, h.run("buy", "-currency", "BTC", "-amount", "-1"))
	assert.Contains(t, h.stderr.String(), "invalid argument")
}

func TestRateCommands(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, subcommands.ExitSuccess, h.run("get-rate", "-from", "EUR", "-to", "JPY"))
	assert.Contains(t, h.stdout.String(), "Rate EUR→JPY: 129.41")

	assert.Equal(t, subcommands.ExitSuccess, h.run("set-rate", "-from", "usd", "-to", "btc", "-rate", "0.00002"))
	assert.Contains(t, h.stdout.String(), "Rate USD→BTC set to 0.00002")

	assert.Equal(t, subcommands.ExitSuccess, h.run("get-rate", "-from", "BTC", "-to", "USD"))
	assert.Contains(t, h.stdout.String(), "Rate BTC→USD: 50000.00")

	assert.Equal(t, subcommands.ExitFailure, h.run("set-rate", "-from", "USD", "-to", "USD", "-rate", "1"))
	assert.Equal(t, subcommands.ExitFailure, h.run("get-rate", "-from", "CHF", "-to", "USD"))
	assert.Contains(t, h.stderr.String(), "exchange rate unavailable")
	assert.Equal(t, subcommands.ExitUsageError, h.run("get-rate", "-from", "USD"))
}

func TestCurrenciesCommand(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, subcommands.ExitSuccess, h.run("currencies"))
	out := h.stdout.String()
	assert.Contains(t, out, "[FIAT] USD")
	assert.Contains(t, out, "[CRYPTO] BTC")
}

func TestServeStopsWhenContextIsCancelled(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan subcommands.ExitStatus, 1)
	go func() {
		cmd := &serveCmd{app: h.app, addr: "127.0.0.1:0"}
		done <- cmd.Execute(ctx, nil)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case status := <-done:
		assert.Equal(t, subcommands.ExitSuccess, status)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return after cancellation")
	}
	assert.Contains(t, h.stdout.String(), "Serving on 127.0.0.1:0")
}
