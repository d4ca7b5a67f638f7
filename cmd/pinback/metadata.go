package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"pinback/pkg/logger"
	"pinback/pkg/metadata"
	"pinback/pkg/storage"
	"pinback/pkg/ui"
)

var outputFile string

// metadataCmd represents the metadata command
var metadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: "Save all bookmarks as JSON",
	Long: `Fetch every bookmark of the account from the Pinboard v1 API
(posts/all) and write the response, unmodified, to a JSON file.`,
	Example: `  # Save to ./pinboard.json
  pinback metadata -u maciej

  # Save somewhere else
  pinback metadata -u maciej -o ~/backups/bookmarks.json`,
	Args: cobra.NoArgs,
	RunE: runMetadata,
}

func init() {
	rootCmd.AddCommand(metadataCmd)

	metadataCmd.Flags().StringVarP(&username, "username", "u", "", "Pinboard username")
	metadataCmd.Flags().StringVarP(&password, "password", "p", "", "Pinboard password (prompted for when missing)")
	metadataCmd.Flags().StringVarP(&outputFile, "output", "o", "pinboard.json", "file to write the bookmarks to")
}

func metadataFlags(cmd *cobra.Command) map[string]interface{} {
	flags := globalFlags(cmd)
	if username != "" {
		flags["username"] = username
	}
	if password != "" {
		flags["password"] = password
	}
	if cmd.Flags().Changed("output") {
		flags["output"] = outputFile
	}
	return flags
}

func runMetadata(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(metadataFlags(cmd))
	if err != nil {
		return err
	}

	if err := resolveCredentials(cfg, credentialManager(), newTerminalPrompter()); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	exporter := metadata.NewExporter(cfg.Pinboard.APIURL, cfg.Pinboard.RequestTimeout, logger.GetLogger())
	exporter.SetUserAgent(cfg.Pinboard.UserAgent)

	data, err := exporter.Export(ctx, cfg.Pinboard.Username, cfg.Pinboard.Password)
	if err != nil {
		return fmt.Errorf("metadata export failed: %w", err)
	}

	path := cfg.Output.MetadataFile
	if err := storage.WriteFileAtomic(path, data, 0644); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}

	count, err := metadata.Summarize(data)
	if err != nil {
		logger.WithError(err).Warn("Saved export is not a bookmark list")
		ui.PrintWarning("Saved response could not be read as bookmarks", err)
		return nil
	}

	logger.WithFields(map[string]interface{}{
		"bookmarks": count,
		"path":      path,
	}).Info("Metadata saved")
	if !quiet {
		ui.PrintSuccess(fmt.Sprintf("Saved %d bookmarks to %s", count, path))
	}
	return nil
}
