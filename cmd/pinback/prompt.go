package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"pinback/pkg/auth"
	"pinback/pkg/config"
	"pinback/pkg/logger"
	"pinback/pkg/ui"
)

// stdin is shared so buffered input is not lost between prompts
var stdin = bufio.NewReader(os.Stdin)

// prompter asks the user for values that were not configured
type prompter interface {
	Line(label string) (string, error)
	Secret(label string) (string, error)
}

type terminalPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newTerminalPrompter() *terminalPrompter {
	return &terminalPrompter{in: stdin, out: os.Stderr}
}

func (p *terminalPrompter) Line(label string) (string, error) {
	fmt.Fprint(p.out, label)
	input, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && input != "") {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// Secret reads without echo when stdin is a terminal
func (p *terminalPrompter) Secret(label string) (string, error) {
	fmt.Fprint(p.out, label)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		password, err := term.ReadPassword(fd)
		fmt.Fprintln(p.out)
		if err == nil {
			return string(password), nil
		}
	}

	input, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && input != "") {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// confirm asks a yes/no question, defaulting to no
func confirm(question string) bool {
	fmt.Printf("%s (y/N): ", question)
	input, _ := stdin.ReadString('\n')
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y")
}

// credentialManager opens the credential store. A store that cannot be
// opened is not fatal; flags, env and prompts still work without it.
func credentialManager() *auth.Manager {
	manager, err := auth.NewManager()
	if err != nil {
		logger.WithError(err).Warn("Credential store unavailable")
		return nil
	}
	return manager
}

// resolveCredentials fills in the Pinboard username and password. Values
// from flags, env or the config file win; then the credential store; then
// the prompter.
func resolveCredentials(cfg *config.Config, manager *auth.Manager, p prompter) error {
	if cfg.Pinboard.Username != "" && cfg.Pinboard.Password != "" {
		return nil
	}

	if manager != nil {
		var account *auth.Account
		var err error
		if cfg.Pinboard.Username != "" {
			account, err = manager.Retrieve(cfg.Pinboard.Username)
		} else {
			account, err = manager.RetrieveDefault()
		}
		if err == nil && account != nil {
			cfg.Pinboard.Username = account.Username
			cfg.Pinboard.Password = account.Password
			logger.WithField("account", account.Username).Info("Using stored credentials")
			return nil
		}
	}

	if p == nil {
		return errors.New("no Pinboard credentials found; run 'pinback auth login' or pass --username and --password")
	}

	if cfg.Pinboard.Username == "" {
		username, err := p.Line("Pinboard username: ")
		if err != nil {
			return fmt.Errorf("failed to read username: %w", err)
		}
		cfg.Pinboard.Username = username
	}
	if cfg.Pinboard.Password == "" {
		password, err := p.Secret(fmt.Sprintf("Password for %s: ", cfg.Pinboard.Username))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		cfg.Pinboard.Password = password
	}

	if cfg.Pinboard.Username == "" || cfg.Pinboard.Password == "" {
		return errors.New("username and password are required")
	}
	return nil
}

// loadConfig loads configuration for a command and initializes logging
func loadConfig(flags map[string]interface{}) (*config.Config, error) {
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintWarning("Failed to initialize logger", err)
	}
	return cfg, nil
}
