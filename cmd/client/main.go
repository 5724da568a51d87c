// Command levitt is a terminal front end for the session lifecycle: it keeps
// the session token in a local SQLite file and drives the same controller
// and navigation gate the app uses.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/levitt-app/levitt/internal/client"
	"github.com/levitt-app/levitt/internal/logging"
)

type cliConfig struct {
	APIURL  string        `env:"LEVITT_API_URL" envDefault:"http://localhost:3333"`
	DBPath  string        `env:"LEVITT_SESSION_DB" envDefault:"session.db"`
	Timeout time.Duration `env:"LEVITT_TIMEOUT" envDefault:"15s"`
	Verbose bool          `env:"LEVITT_VERBOSE"`
}

const usage = `usage: levitt <command> [flags]

commands:
  status    restore the stored session and show who is signed in
  me        print the signed-in account as the server sees it
  verse     print the verse of the day (no sign-in needed)
  login     -id <email or username> -password <password>
  register  -name <full name> -email <email> -username <username> -password <password>
  google    -id-token <google id token>
  refresh   refetch the account and verse of the day
  logout    forget the stored session
  forgot    -email <email>
  reset     -token <token> -password <password> -confirm <password>
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err := run(os.Args[1], os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(cmd string, args []string, out io.Writer) error {
	_ = godotenv.Load()
	var cfg cliConfig
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	level := slog.LevelWarn
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	store, err := client.OpenSQLiteStore(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	state := client.NewStateStore()
	api := client.NewAPI(cfg.APIURL, nil)
	ctrl := client.NewController(api, store, state, log)

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	switch cmd {
	case "status":
		route := fs.String("route", "/home", "screen the app is opening")
		if err := fs.Parse(args); err != nil {
			return err
		}
		nav := client.NewMemoryRouter(*route)
		gate := client.NewGate(client.DefaultGateConfig(), state, nav)
		gate.Start()
		defer gate.Stop()
		ctrl.Bootstrap(ctx)
		printState(out, ctrl.State())
		fmt.Fprintf(out, "screen: %s\n", nav.Location())
		return nil

	case "me":
		if err := fs.Parse(args); err != nil {
			return err
		}
		ctrl.Bootstrap(ctx)
		session := ctrl.Session()
		if session == nil {
			return errors.New("not signed in")
		}
		acc, err := session.Me(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "id: %s\nname: %s\nusername: %s\nemail: %s\n", acc.ID, acc.FullName, acc.Username, acc.Email)
		return nil

	case "verse":
		if err := fs.Parse(args); err != nil {
			return err
		}
		v, err := api.DailyVerse(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%q %s\n", v.Text, v.Reference)
		return nil

	case "login":
		id := fs.String("id", "", "email or username")
		password := fs.String("password", "", "password")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if err := ctrl.Login(ctx, *id, *password); err != nil {
			return err
		}
		printState(out, ctrl.State())
		return nil

	case "register":
		var in client.RegisterInput
		fs.StringVar(&in.FullName, "name", "", "full name")
		fs.StringVar(&in.Email, "email", "", "email address")
		fs.StringVar(&in.Username, "username", "", "username")
		fs.StringVar(&in.Password, "password", "", "password")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if err := ctrl.Register(ctx, in); err != nil {
			return err
		}
		printState(out, ctrl.State())
		return nil

	case "google":
		idToken := fs.String("id-token", "", "Google ID token")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if err := ctrl.SignInWithGoogle(ctx, *idToken); err != nil {
			return err
		}
		printState(out, ctrl.State())
		return nil

	case "refresh":
		if err := fs.Parse(args); err != nil {
			return err
		}
		ctrl.Bootstrap(ctx)
		if err := ctrl.Refresh(ctx); err != nil && !client.IsSessionRejected(err) {
			return err
		}
		printState(out, ctrl.State())
		return nil

	case "logout":
		if err := fs.Parse(args); err != nil {
			return err
		}
		if err := ctrl.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "signed out")
		return nil

	case "forgot":
		email := fs.String("email", "", "account email")
		if err := fs.Parse(args); err != nil {
			return err
		}
		msg, err := ctrl.ForgotPassword(ctx, *email)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, msg)
		return nil

	case "reset":
		token := fs.String("token", "", "token from the reset email")
		password := fs.String("password", "", "new password")
		confirm := fs.String("confirm", "", "new password again")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *password != *confirm {
			return errors.New("passwords do not match")
		}
		msg, err := ctrl.ResetPassword(ctx, *token, *password)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, msg)
		return nil

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printState(out io.Writer, st client.State) {
	fmt.Fprintf(out, "status: %s\n", st.Status)
	if st.Account != nil {
		fmt.Fprintf(out, "user: %s (@%s) <%s>\n", st.Account.FullName, st.Account.Username, st.Account.Email)
	}
	if st.DailyVerse != nil {
		fmt.Fprintf(out, "verse of the day: %q %s\n", st.DailyVerse.Text, st.DailyVerse.Reference)
	}
}
