// Package main provides stitchctl, a command line client for a Stitch app.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/nghyane/stitch-sdk/internal/cmd"
	"github.com/nghyane/stitch-sdk/internal/config"
	log "github.com/nghyane/stitch-sdk/internal/logging"
	"github.com/nghyane/stitch-sdk/internal/service"
)

var (
	Version           = "dev"
	Commit            = "none"
	DefaultConfigPath = "$XDG_CONFIG_HOME/stitch/stitch.yaml"
)

const usage = `Usage: stitchctl [flags] <command> [args]

Commands:
  init                         write a default config file
  login                        log in and print the user id
  profile                      log in and print the user profile
  call <function> [json-args]  log in and call a function
  api-keys [action] [arg]      list|create <name>|enable|disable|delete <id>
  register                     register --username/--password
  confirm <token> <token-id>   confirm a registration
  reset-password               send a password reset email to --username
  oauth-url <google|facebook>  print and open a browser login URL
  watch                        hot-reload the config file until interrupted
  version                      print the version

Flags:
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(argv []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("stitchctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		_, _ = fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	var (
		configPath string
		envFile    string
		baseURL    string
		appID      string
		logLevel   string
		force      bool
		serviceArg string
		redirect   string
		link       bool
		noBrowser  bool
		logout     bool
		login      cmd.LoginOptions
	)
	fs.StringVarP(&configPath, "config", "c", DefaultConfigPath, "config file path")
	fs.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")
	fs.StringVar(&baseURL, "base-url", "", "override base-url")
	fs.StringVar(&appID, "app-id", "", "override app-id")
	fs.StringVar(&logLevel, "log-level", "", "override log level")
	fs.BoolVar(&force, "force", false, "overwrite an existing config (init)")
	fs.StringVarP(&login.Provider, "provider", "p", "", "login provider: anon|userpass|apikey|server-apikey|custom-token|custom-function")
	fs.StringVar(&login.ProviderName, "provider-name", "", "provider name when it differs from the type")
	fs.StringVarP(&login.Username, "username", "u", "", "email for userpass")
	fs.StringVar(&login.Password, "password", "", "password for userpass")
	fs.StringVar(&login.APIKey, "api-key", "", "key for apikey providers")
	fs.StringVar(&login.Token, "token", "", "JWT for custom-token")
	fs.StringVar(&login.Payload, "payload", "{}", "JSON document for custom-function")
	fs.StringVar(&serviceArg, "service", "", "service name for call")
	fs.StringVar(&redirect, "redirect", "", "redirect URL for oauth-url")
	fs.BoolVar(&link, "link", false, "link the identity to the current user (oauth-url)")
	fs.BoolVar(&noBrowser, "no-browser", false, "don't open the browser for oauth-url")
	fs.BoolVar(&logout, "logout", false, "log out on the server after the command")
	_ = fs.MarkHidden("password")

	if err := fs.Parse(argv); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	resolved, err := config.ResolvePath(configPath)
	if err != nil {
		log.Errorf("%v", err)
		return 1
	}
	configPath = resolved

	args := fs.Args()
	if len(args) == 0 {
		fs.Usage()
		return 2
	}
	command, args := args[0], args[1:]

	switch command {
	case "version":
		_, _ = fmt.Fprintf(stdout, "stitchctl %s (%s), sdk %s\n", Version, Commit, service.SDKVersion)
		return 0
	case "init":
		if err := cmd.DoInitConfig(configPath, force, stdout); err != nil {
			log.Errorf("%v", err)
			return 1
		}
		return 0
	}

	if err := config.LoadDotEnv(envFile); err != nil {
		log.Warnf("%v", err)
	}
	cfg, err := loadConfig(configPath, baseURL, appID, logLevel)
	if err != nil {
		log.Errorf("%v", err)
		return 1
	}
	if err = service.ConfigureLogging(cfg); err != nil {
		log.Errorf("%v", err)
		return 1
	}
	defer log.Close()

	app, err := service.NewBuilder().
		WithConfig(cfg).
		WithConfigPath(configPath).
		Build()
	if err != nil {
		log.Errorf("%v", err)
		return 1
	}
	defer func() { _ = app.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = dispatch(ctx, app, command, args, commandOptions{
		login:     login,
		service:   serviceArg,
		redirect:  redirect,
		link:      link,
		noBrowser: noBrowser,
	}, stdout); err != nil {
		log.Errorf("%v", err)
		return 1
	}
	if logout && app.Auth().IsLoggedIn() {
		if err = cmd.DoLogout(ctx, app, stdout); err != nil {
			log.Errorf("%v", err)
			return 1
		}
	}
	return 0
}

type commandOptions struct {
	login     cmd.LoginOptions
	service   string
	redirect  string
	link      bool
	noBrowser bool
}

func dispatch(ctx context.Context, app *service.App, command string, args []string, opts commandOptions, out io.Writer) error {
	arg := func(i int) string {
		if i < len(args) {
			return args[i]
		}
		return ""
	}
	needsLogin := map[string]bool{"login": true, "profile": true, "call": true, "api-keys": true}
	if needsLogin[command] {
		if _, err := cmd.DoLogin(ctx, app, opts.login, out); err != nil {
			return err
		}
	}

	switch command {
	case "login":
		return nil
	case "profile":
		return cmd.DoProfile(app, out)
	case "call":
		if arg(0) == "" {
			return fmt.Errorf("call needs a function name")
		}
		return cmd.DoCallFunction(ctx, app, opts.service, arg(0), arg(1), out)
	case "api-keys":
		return cmd.DoAPIKeys(ctx, app, arg(0), arg(1), out)
	case "register":
		return cmd.DoRegister(ctx, app, opts.login.ProviderName, opts.login.Username, opts.login.Password, out)
	case "confirm":
		return cmd.DoConfirm(ctx, app, opts.login.ProviderName, arg(0), arg(1), out)
	case "reset-password":
		return cmd.DoSendResetEmail(ctx, app, opts.login.ProviderName, opts.login.Username, out)
	case "oauth-url":
		return cmd.DoOAuthURL(app, cmd.OAuthOptions{
			Provider:     arg(0),
			ProviderName: opts.login.ProviderName,
			RedirectURL:  opts.redirect,
			Link:         opts.link,
			NoBrowser:    opts.noBrowser,
		}, out)
	case "watch":
		return cmd.DoWatch(ctx, app, out)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// loadConfig reads the optional config file, then the environment, then
// the command line overrides.
func loadConfig(path, baseURL, appID, logLevel string) (*config.Config, error) {
	cfg, err := config.LoadConfigOptional(path, true)
	if err != nil {
		return nil, err
	}
	if err = cfg.ApplyEnv(nil); err != nil {
		return nil, err
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if appID != "" {
		cfg.AppID = appID
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}
