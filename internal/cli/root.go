// Package cli implements the keylinectl command tree. Commands talk to the
// identity service through the public SDK; nothing here reaches around it.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/keylineid/keyline-go/pkg/keyline"
	"github.com/keylineid/keyline-go/pkg/slogx"
)

// App carries the state shared by every keylinectl command: the SDK client,
// the credentials file, and the I/O streams. Streams and the navigator are
// injectable so command tests can script prompts and fake the browser.
type App struct {
	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer

	// Navigator overrides how `oauth login` opens the authorization URL.
	// Nil selects the system browser.
	Navigator keyline.Navigator

	client *keyline.Client
	creds  *credentialsFile
	logger *slog.Logger
	stdin  *bufio.Reader
	nav    keyline.Navigator

	baseURL         string
	clientID        string
	credentialsPath string
	insecure        bool
	verbose         bool
}

// NewRootCmd builds the keylinectl command tree around app.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "keylinectl",
		Short: "Command-line client for the Keyline identity service",
		Long: `keylinectl manages accounts, sessions, and OAuth logins against a
Keyline identity service.

Configuration comes from KEYLINE_* environment variables (KEYLINE_BASE_URL,
KEYLINE_CLIENT_ID, ...) and can be overridden per invocation with flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return app.setup()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&app.baseURL, "base-url", "", "identity service base URL (overrides KEYLINE_BASE_URL)")
	pf.StringVar(&app.clientID, "client-id", "", "OAuth client ID (overrides KEYLINE_CLIENT_ID)")
	pf.StringVar(&app.credentialsPath, "credentials", "", "path to the stored credentials file")
	pf.BoolVar(&app.insecure, "insecure-localhost", false, "allow a plain-HTTP base URL on loopback addresses")
	pf.BoolVarP(&app.verbose, "verbose", "v", false, "log SDK request details to stderr")

	root.AddCommand(
		newRegisterCmd(app),
		newLoginCmd(app),
		newWhoamiCmd(app),
		newSessionsCmd(app),
		newLogoutCmd(app),
		newOAuthCmd(app),
	)

	return root
}

// Execute runs keylinectl against the real process environment and returns
// the exit code for main.
func Execute() int {
	app := &App{In: os.Stdin, Out: os.Stdout, ErrOut: os.Stderr}
	root := NewRootCmd(app)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(app.ErrOut, "Error:", err)
		return 1
	}
	return 0
}

// setup resolves configuration, builds the SDK client, and installs any
// stored access token. It runs once per invocation before the subcommand.
func (a *App) setup() error {
	cfg, err := keyline.ConfigFromEnv()
	if err != nil {
		return err
	}
	if a.baseURL != "" {
		cfg.BaseURL = a.baseURL
	}
	if a.clientID != "" {
		cfg.ClientID = a.clientID
	}
	if a.insecure {
		cfg.AllowInsecureLocalhost = true
	}
	if cfg.BaseURL == "" {
		return fmt.Errorf("no identity service configured: set KEYLINE_BASE_URL or pass --base-url")
	}

	a.logger = slogx.Discard()
	if a.verbose {
		a.logger = slogx.New(slogx.Config{
			Service: "keylinectl",
			Level:   "debug",
			Format:  "text",
			Output:  a.ErrOut,
		})
	}

	a.nav = a.Navigator
	if a.nav == nil {
		a.nav = systemBrowser{}
	}

	client, err := keyline.New(cfg,
		keyline.WithLogger(a.logger),
		keyline.WithNavigator(a.nav),
	)
	if err != nil {
		return err
	}
	a.client = client

	path := a.credentialsPath
	if path == "" {
		path, err = defaultCredentialsPath()
		if err != nil {
			return err
		}
	}
	a.creds = &credentialsFile{path: path}

	stored, err := a.creds.load()
	if err != nil {
		return err
	}
	// Credentials stored for a different service must not leak onto this
	// one's requests.
	if stored != nil && stored.BaseURL == client.BaseURL() {
		a.client.SetAccessToken(stored.AccessToken)
	}

	return nil
}

// requireAuth fails with a uniform message when no token is installed.
func (a *App) requireAuth() error {
	if !a.client.IsAuthenticated() {
		return fmt.Errorf("not logged in: run 'keylinectl login' first")
	}
	return nil
}

// saveCredentials persists the client's current tokens for later
// invocations.
func (a *App) saveCredentials(refreshToken string) error {
	return a.creds.save(storedCredentials{
		AccessToken:  a.client.Token(),
		RefreshToken: refreshToken,
		BaseURL:      a.client.BaseURL(),
	})
}

func (a *App) reader() *bufio.Reader {
	if a.stdin == nil {
		a.stdin = bufio.NewReader(a.In)
	}
	return a.stdin
}
