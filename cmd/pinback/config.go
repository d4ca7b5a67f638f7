package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pinback/pkg/config"
	"pinback/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage pinback configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (PINBACK_*)
  - .env in the working directory or ~/.pinback.env
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as '.pinback.yaml'
unless a different path is specified with the --config flag.`,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the configuration pinback would run with, after merging every
source. The password is masked.`,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

const exampleConfig = `# pinback configuration file
#
# Every option can also be set with an environment variable, for example
# PINBACK_USERNAME, PINBACK_OUTPUT_DIR or PINBACK_CONCURRENCY.

pinboard:
  # Account to back up. Prefer 'pinback auth login' over storing the
  # password here.
  username: ""
  password: ""

  base_url: "https://pinboard.in"
  api_url: "https://api.pinboard.in/v1"
  # user_agent: "pinback/1.0 (+https://pinboard.in)"

  # Time limit for a single request to Pinboard
  request_timeout: 30s

rate_limit:
  # Index pages requested per minute while crawling
  requests_per_minute: 60

output:
  # Archived pages go to <base_directory>/<bookmark id>
  base_directory: "pinboard"

  # Written by 'pinback metadata'
  metadata_file: "pinboard.json"

archive:
  # Pages downloaded at once
  concurrency: 32

  # Time limit for one page, after which its download is abandoned
  job_timeout: 60s

  wget_path: "wget"

  # Extra arguments appended to every wget call
  # extra_args: ["--no-check-certificate"]

  # Fail a page when one of its images or stylesheets could not be fetched
  strict_assets: false

notifications:
  enabled: true
  on_complete: true
  on_error: true

logging:
  # debug, info, warn, error or disabled
  level: "info"

  # Also write logs to this file
  file: ""
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = ".pinback.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		return fmt.Errorf("configuration file already exists: %s", configPath)
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0600); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Edit the configuration file")
	fmt.Println("2. Run 'pinback auth login' to store your password")
	fmt.Println("3. Run 'pinback config validate' to check the configuration")
	return nil
}

// maskedConfig returns a copy of cfg that is safe to print
func maskedConfig(cfg *config.Config) config.Config {
	display := *cfg
	if display.Pinboard.Password != "" {
		display.Pinboard.Password = "********"
	}
	return display
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, globalFlags(cmd))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	display := maskedConfig(cfg)
	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	source := configFile
	if source == "" {
		source = config.FindConfigFile()
	}
	if source == "" {
		source = "(none found)"
	}
	fmt.Printf("\nConfiguration file: %s\n", source)
	return nil
}

// checkConfig reports problems that Validate does not treat as errors
func checkConfig(cfg *config.Config) (warnings []string, problems []string) {
	if cfg.Pinboard.Username == "" {
		warnings = append(warnings, "Pinboard username not configured; it will be taken from the credential store or prompted for")
	}
	if cfg.Pinboard.Password != "" {
		warnings = append(warnings, "password is stored in plain text; consider 'pinback auth login'")
	}

	if _, err := exec.LookPath(cfg.Archive.WgetPath); err != nil {
		problems = append(problems, fmt.Sprintf("wget not found at %q: %v", cfg.Archive.WgetPath, err))
	}

	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("Cannot create log directory: %v", err))
		}
	}
	return warnings, problems
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = config.FindConfigFile()
	}
	if path == "" {
		return errors.New("no configuration file found; specify one with --config")
	}

	ui.PrintInfo("Validating configuration", path)

	cfg, err := config.Load(path, nil)
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	warnings, problems := checkConfig(cfg)
	if len(problems) > 0 {
		ui.PrintError("Configuration has errors:")
		for _, p := range problems {
			fmt.Printf("  - %s\n", p)
		}
		return fmt.Errorf("%d configuration errors", len(problems))
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, warn := range warnings {
			fmt.Printf("  - %s\n", warn)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Output directory: %s\n", cfg.Output.BaseDirectory)
	fmt.Printf("  Metadata file: %s\n", cfg.Output.MetadataFile)
	fmt.Printf("  Concurrency: %d\n", cfg.Archive.Concurrency)
	fmt.Printf("  Job timeout: %s\n", cfg.Archive.JobTimeout)
	fmt.Printf("  Rate limit: %d requests/minute\n", cfg.RateLimit.RequestsPerMinute)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
	return nil
}
