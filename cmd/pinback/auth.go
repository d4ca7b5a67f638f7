package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"pinback/pkg/auth"
	"pinback/pkg/logger"
	"pinback/pkg/pinboard"
	"pinback/pkg/ui"
)

var skipVerify bool

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored Pinboard credentials",
	Long: `Manage stored Pinboard credentials.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - PINBACK_USERNAME and PINBACK_PASSWORD (read only)`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Store Pinboard credentials",
	Long: `Store a Pinboard username and password for later runs.

The password is checked by signing in to Pinboard before it is saved,
unless --no-verify is given.`,
	Example: `  # Interactive login
  pinback auth login

  # Login with username
  pinback auth login maciej`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [username]",
	Short: "Remove stored credentials",
	Long: `Remove stored Pinboard credentials.

If no username is provided, you will be shown a list of stored accounts
to choose from. You can also remove all accounts at once.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored accounts",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)

	loginCmd.Flags().BoolVar(&skipVerify, "no-verify", false, "store the password without signing in first")
}

func openManager() (*auth.Manager, error) {
	manager, err := auth.NewManager()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	return manager, nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := openManager()
	if err != nil {
		return err
	}
	p := newTerminalPrompter()

	var name string
	if len(args) > 0 {
		name = strings.TrimSpace(args[0])
	}
	if name == "" {
		name, err = p.Line("Pinboard username: ")
		if err != nil {
			return fmt.Errorf("failed to read username: %w", err)
		}
	}
	if name == "" {
		return errors.New("username is required")
	}

	if existing, _ := manager.Retrieve(name); existing != nil {
		if !confirm(fmt.Sprintf("Account '%s' already exists. Update password?", name)) {
			return nil
		}
	}

	secret, err := p.Secret("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if secret == "" {
		return errors.New("password is required")
	}

	if !skipVerify {
		if err := verifyLogin(cmd, name, secret); err != nil {
			return err
		}
		ui.PrintSuccess("Signed in to Pinboard")
	}

	if err := manager.Store(&auth.Account{Username: name, Password: secret}); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	ui.PrintSuccess("Account saved: " + name)
	fmt.Println("\nRun a backup with:")
	fmt.Println("  pinback metadata")
	fmt.Println("  pinback archive")
	return nil
}

// verifyLogin signs in once against the configured Pinboard site
func verifyLogin(cmd *cobra.Command, name, secret string) error {
	cfg, err := loadConfig(globalFlags(cmd))
	if err != nil {
		return err
	}

	client, err := pinboard.NewClient(cfg.Pinboard.BaseURL, cfg.Pinboard.RequestTimeout, logger.GetLogger())
	if err != nil {
		return err
	}
	if cfg.Pinboard.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.Pinboard.UserAgent)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if _, err := pinboard.NewAuthenticator(client).Login(ctx, name, secret); err != nil {
		return fmt.Errorf("could not sign in as %s: %w", name, err)
	}
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := openManager()
	if err != nil {
		return err
	}

	if len(args) > 0 {
		if err := manager.Delete(args[0]); err != nil {
			return fmt.Errorf("failed to remove account: %w", err)
		}
		ui.PrintSuccess("Account removed: " + args[0])
		return nil
	}

	accounts, err := manager.List()
	if err != nil || len(accounts) == 0 {
		ui.PrintWarning("No stored accounts found")
		return nil
	}

	if len(accounts) == 1 {
		account := accounts[0]
		if !confirm(fmt.Sprintf("Remove account '%s'?", account.Username)) {
			return nil
		}
		if err := manager.Delete(account.Username); err != nil {
			return fmt.Errorf("failed to remove account: %w", err)
		}
		ui.PrintSuccess("Account removed: " + account.Username)
		return nil
	}

	fmt.Println("Select account to remove:")
	for i, account := range accounts {
		fmt.Printf("  %d. %s\n", i+1, account.Username)
	}
	fmt.Printf("  %d. Remove all accounts\n", len(accounts)+1)
	fmt.Printf("  0. Cancel\n\n")

	fmt.Print("Choice: ")
	input, _ := stdin.ReadString('\n')

	var choice int
	fmt.Sscanf(strings.TrimSpace(input), "%d", &choice)

	switch {
	case choice == 0:
		return nil
	case choice == len(accounts)+1:
		fmt.Print("Remove ALL accounts? This cannot be undone! (yes/N): ")
		answer, _ := stdin.ReadString('\n')
		if strings.TrimSpace(answer) != "yes" {
			return nil
		}
		if err := manager.DeleteAll(); err != nil {
			return fmt.Errorf("failed to remove all accounts: %w", err)
		}
		ui.PrintSuccess("All accounts removed")
		return nil
	case choice > 0 && choice <= len(accounts):
		account := accounts[choice-1]
		if err := manager.Delete(account.Username); err != nil {
			return fmt.Errorf("failed to remove account: %w", err)
		}
		ui.PrintSuccess("Account removed: " + account.Username)
		return nil
	default:
		return errors.New("invalid choice")
	}
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := openManager()
	if err != nil {
		return err
	}

	accounts, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}

	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "Use 'pinback auth login' to add an account")
		return nil
	}

	ui.PrintHighlight("Stored Accounts")
	fmt.Println()
	for i, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		fmt.Printf("%d. Username: %s\n", i+1, sanitized.Username)
		fmt.Printf("   Password: %s\n", sanitized.Password)
		fmt.Printf("   Stored in: %s\n", sanitized.Source)
		if !sanitized.LastModified.IsZero() {
			fmt.Printf("   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		}
		fmt.Println()
	}
	return nil
}
