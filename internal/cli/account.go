package cli

import (
	"context"
	"flag"

	"github.com/google/subcommands"
)

type registerCmd struct {
	app      *App
	username string
	password string
}

func (*registerCmd) Name() string     { return "register" }
func (*registerCmd) Synopsis() string { return "create a new user" }
func (*registerCmd) Usage() string {
	return `register -username <name> -password <password>

  Creates a user with an empty portfolio.
`
}

func (c *registerCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.username, "username", "", "user name, at least 3 characters")
	f.StringVar(&c.password, "password", "", "password, at least 4 characters")
}

func (c *registerCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	user, err := c.app.auth.Register(ctx, c.username, c.password)
	if err != nil {
		return c.app.fail(err)
	}
	c.app.printf("User '%s' registered (id=%d). Log in with: login -username %s -password ****\n",
		user.Username, user.ID, user.Username)
	return subcommands.ExitSuccess
}

type loginCmd struct {
	app      *App
	username string
	password string
}

func (*loginCmd) Name() string     { return "login" }
func (*loginCmd) Synopsis() string { return "log in and remember the session" }
func (*loginCmd) Usage() string {
	return `login -username <name> -password <password>
`
}

func (c *loginCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.username, "username", "", "user name")
	f.StringVar(&c.password, "password", "", "password")
}

func (c *loginCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	user, token, err := c.app.auth.Login(ctx, c.username, c.password)
	if err != nil {
		return c.app.fail(err)
	}
	if err := c.app.session.Save(token); err != nil {
		return c.app.fail(err)
	}
	c.app.printf("You are logged in as '%s'\n", user.Username)
	return subcommands.ExitSuccess
}

type logoutCmd struct {
	app *App
}

func (*logoutCmd) Name() string             { return "logout" }
func (*logoutCmd) Synopsis() string         { return "forget the current session" }
func (*logoutCmd) Usage() string            { return "logout\n" }
func (*logoutCmd) SetFlags(_ *flag.FlagSet) {}

func (c *logoutCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.app.session.Clear(); err != nil {
		return c.app.fail(err)
	}
	c.app.printf("Logged out\n")
	return subcommands.ExitSuccess
}

type whoamiCmd struct {
	app *App
}

func (*whoamiCmd) Name() string             { return "whoami" }
func (*whoamiCmd) Synopsis() string         { return "show the logged-in user" }
func (*whoamiCmd) Usage() string            { return "whoami\n" }
func (*whoamiCmd) SetFlags(_ *flag.FlagSet) {}

func (c *whoamiCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	session, err := c.app.currentSession(ctx)
	if err != nil {
		return c.app.fail(err)
	}
	c.app.printf("%s (id=%d), session valid until %s\n",
		session.Username, session.UserID, session.ExpiresAt.Format(timeLayout))
	return subcommands.ExitSuccess
}
