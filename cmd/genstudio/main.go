package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"genstudio/internal/app"
	"genstudio/internal/config"
	"genstudio/internal/studio"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a StudioApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Generate", "TrainModel").
func newApp(ctx context.Context, operation string) (*app.StudioApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewStudioApp(ctx, cfg, operation, app.Options{})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

func printEntry(e studio.HistoryEntry) {
	fmt.Printf("%s  %-12s  %d image(s)  %s\n", e.ID, e.Variant, len(e.Images), e.Prompt)
	if g := e.Generate; g != nil && (g.ModelID != "" || g.Style != "" || g.AspectRatio != "") {
		fmt.Printf("    model:%s  style:%s  aspect:%s\n", orDash(g.ModelID), orDash(g.Style), orDash(g.AspectRatio))
	}
	for i, ref := range e.Images {
		note := ""
		if ref.Placeholder {
			note = "  [generation failed]"
		}
		fmt.Printf("    [%d] %s  %s%s\n", i, shortChecksum(ref.Checksum), ref.MimeType, note)
	}
}

func printModel(m studio.TrainedModel) {
	fmt.Printf("%s  %-8s  %s  %d preview(s)", m.ID, m.Status, m.Name, len(m.PreviewImages))
	if m.Description != "" {
		fmt.Printf("  %s", m.Description)
	}
	fmt.Println()
}

func shortChecksum(sum string) string {
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

var rootCmd = &cobra.Command{
	Use:          "genstudio",
	Short:        "AI image generation studio",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		installationID := uuid.New().String()
		cfg := config.NewConfig(installationID, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Installation ID: %s\n", installationID)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		fmt.Printf("Set %s to your API key before generating.\n", cfg.Generator.APIKeyEnv)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		m := &config.Manager{}
		return m.Write(os.Stdout, cfg)
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage media encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the media encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "SetupKeys")
		if err != nil {
			return err
		}
		defer a.Close()

		pass, err := app.ReadNewPassphrase()
		if err != nil {
			return err
		}
		if err := a.SetupKeys(pass); err != nil {
			return fmt.Errorf("setting up keys: %w", err)
		}
		fmt.Println("Key pair created. Media will be encrypted at rest.")
		return nil
	},
}

// generate command
var generateCmd = &cobra.Command{
	Use:   "generate PROMPT...",
	Short: "Generate images from a text prompt",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		model, _ := cmd.Flags().GetString("model")
		style, _ := cmd.Flags().GetString("style")
		aspect, _ := cmd.Flags().GetString("aspect-ratio")
		save, _ := cmd.Flags().GetBool("save-prompt")

		a, err := newApp(cmd.Context(), "Generate")
		if err != nil {
			return err
		}
		defer a.Close()

		prompt := strings.Join(args, " ")
		entry, err := a.Generate(cmd.Context(), studio.GenerateOptions{
			Prompt:      prompt,
			ModelID:     model,
			Style:       style,
			AspectRatio: aspect,
		})
		if err != nil {
			return fmt.Errorf("generate failed: %w", err)
		}
		printEntry(entry)

		if save {
			if _, err := a.SavePrompt(prompt); err != nil {
				return err
			}
		}
		return nil
	},
}

// styles command
var stylesCmd = &cobra.Command{
	Use:   "styles",
	Short: "List styles and aspect ratios",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Styles:")
		for _, s := range studio.Styles {
			fmt.Printf("  %s\n", s)
		}
		fmt.Println("Aspect ratios:")
		for _, r := range studio.AspectRatios {
			fmt.Printf("  %s\n", r)
		}
	},
}

// settings command
var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show the generate options used when flags are omitted",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ShowSettings")
		if err != nil {
			return err
		}
		defer a.Close()

		prefs := a.Preferences()
		fmt.Printf("style:         %s\n", orDash(prefs.Style))
		fmt.Printf("aspect ratio:  %s\n", orDash(prefs.AspectRatio))
		fmt.Printf("model:         %s\n", orDash(prefs.ModelID))
		return nil
	},
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the saved generate options",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ResetSettings")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ResetPreferences(); err != nil {
			return err
		}
		fmt.Println("Settings reset.")
		return nil
	},
}

// edit commands
var editCmd = &cobra.Command{
	Use:   "edit IMAGE PROMPT...",
	Short: "Edit an image with a prompt",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "Edit")
		if err != nil {
			return err
		}
		defer a.Close()

		entry, err := a.Edit(cmd.Context(), strings.Join(args[1:], " "), args[0])
		if err != nil {
			return fmt.Errorf("edit failed: %w", err)
		}
		printEntry(entry)
		return nil
	},
}

var contextEditCmd = &cobra.Command{
	Use:   "context-edit IMAGE PROMPT...",
	Short: "Create a new image using an image as context",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ContextEdit")
		if err != nil {
			return err
		}
		defer a.Close()

		entry, err := a.ContextEdit(cmd.Context(), strings.Join(args[1:], " "), args[0])
		if err != nil {
			return fmt.Errorf("context edit failed: %w", err)
		}
		printEntry(entry)
		return nil
	},
}

var editSessionCmd = &cobra.Command{
	Use:   "edit-session IMAGE",
	Short: "Edit an image interactively with undo and redo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "EditSession")
		if err != nil {
			return err
		}
		defer a.Close()

		return a.RunEditSession(cmd.Context(), args[0], os.Stdin, os.Stdout)
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage generation history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List history entries, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		variant, _ := cmd.Flags().GetString("variant")
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), "ListHistory")
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.History(variant)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No history.")
			return nil
		}
		if limit > 0 && len(entries) > limit {
			entries = entries[:limit]
		}
		for _, e := range entries {
			printEntry(e)
		}
		return nil
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a history entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "DeleteHistory")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DeleteHistory(args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

var historyRegenerateCmd = &cobra.Command{
	Use:   "regenerate ID",
	Short: "Re-run the generation recorded in a history entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "Regenerate")
		if err != nil {
			return err
		}
		defer a.Close()

		entry, err := a.Regenerate(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("regenerate failed: %w", err)
		}
		printEntry(entry)
		return nil
	},
}

// prompts command
var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Manage saved prompts",
}

var promptsSaveCmd = &cobra.Command{
	Use:   "save TEXT...",
	Short: "Save a prompt for reuse",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "SavePrompt")
		if err != nil {
			return err
		}
		defer a.Close()

		added, err := a.SavePrompt(strings.Join(args, " "))
		if err != nil {
			return err
		}
		if !added {
			fmt.Println("Prompt already saved.")
			return nil
		}
		fmt.Println("Prompt saved.")
		return nil
	},
}

var promptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved prompts, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ListPrompts")
		if err != nil {
			return err
		}
		defer a.Close()

		prompts := a.Prompts()
		if len(prompts) == 0 {
			fmt.Println("No saved prompts.")
			return nil
		}
		for _, p := range prompts {
			fmt.Printf("%s  %s\n", p.ID, p.Text)
		}
		return nil
	},
}

var promptsDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a saved prompt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "DeletePrompt")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DeletePrompt(args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

// models command
var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage custom models",
}

var modelsTrainCmd = &cobra.Command{
	Use:   "train NAME IMAGE...",
	Short: "Train a custom model from images",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")

		a, err := newApp(cmd.Context(), "TrainModel")
		if err != nil {
			return err
		}
		defer a.Close()

		model, err := a.TrainModel(cmd.Context(), args[0], description, args[1:])
		if err != nil {
			return fmt.Errorf("training failed: %w", err)
		}
		printModel(model)
		return nil
	},
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List custom models",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ListModels")
		if err != nil {
			return err
		}
		defer a.Close()

		models := a.Models()
		if len(models) == 0 {
			fmt.Println("No custom models.")
			return nil
		}
		for _, m := range models {
			printModel(m)
		}
		return nil
	},
}

var modelsUpdateCmd = &cobra.Command{
	Use:   "update ID NAME",
	Short: "Rename a custom model",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")

		a, err := newApp(cmd.Context(), "UpdateModel")
		if err != nil {
			return err
		}
		defer a.Close()

		model, err := a.UpdateModel(args[0], args[1], description)
		if err != nil {
			return err
		}
		printModel(model)
		return nil
	},
}

var modelsDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a custom model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "DeleteModel")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DeleteModel(args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

// media command
var mediaCmd = &cobra.Command{
	Use:   "media",
	Short: "Access stored images",
}

var mediaExportCmd = &cobra.Command{
	Use:   "export ID DEST",
	Short: "Write an image of a history entry to a file or directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, _ := cmd.Flags().GetInt("index")

		a, err := newApp(cmd.Context(), "ExportImage")
		if err != nil {
			return err
		}
		defer a.Close()

		path, err := a.ExportImage(cmd.Context(), args[0], index, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

var mediaCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the media vault is reachable and writable",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ValidateMedia")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ValidateMedia(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Media vault OK.")
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Maintain the record database",
}

var dbBackupCmd = &cobra.Command{
	Use:   "backup DEST",
	Short: "Write a consistent snapshot of the database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "BackupDatabase")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.BackupDatabase(args[0]); err != nil {
			return err
		}
		fmt.Printf("Database written to %s\n", args[0])
		return nil
	},
}

var dbCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the database schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "CheckDatabase")
		if err != nil {
			return err
		}
		defer a.Close()

		current, latest, err := a.CheckDatabase()
		if err != nil {
			return err
		}
		fmt.Printf("Database schema is current (version %d of %d).\n", current, latest)
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	keysCmd.AddCommand(keysInitCmd)

	generateCmd.Flags().StringP("model", "m", "", "Custom model ID to condition on ('"+app.NoModel+"' drops the saved model)")
	generateCmd.Flags().StringP("style", "s", "", "Style prefix (see 'genstudio styles'); defaults to the last used")
	generateCmd.Flags().StringP("aspect-ratio", "a", "", "Aspect ratio to record; defaults to the last used")
	generateCmd.Flags().Bool("save-prompt", false, "Also save the prompt for reuse")

	settingsCmd.AddCommand(settingsResetCmd)

	historyCmd.AddCommand(historyListCmd)
	historyListCmd.Flags().String("variant", "", "Only show generate, edit or context-edit entries")
	historyListCmd.Flags().IntP("limit", "n", 0, "Maximum number of entries to show")
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyRegenerateCmd)

	promptsCmd.AddCommand(promptsSaveCmd)
	promptsCmd.AddCommand(promptsListCmd)
	promptsCmd.AddCommand(promptsDeleteCmd)

	modelsCmd.AddCommand(modelsTrainCmd)
	modelsTrainCmd.Flags().StringP("description", "d", "", "Model description")
	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsUpdateCmd)
	modelsUpdateCmd.Flags().StringP("description", "d", "", "New description")
	modelsCmd.AddCommand(modelsDeleteCmd)

	mediaCmd.AddCommand(mediaExportCmd)
	mediaExportCmd.Flags().IntP("index", "i", 0, "Image index within the entry")
	mediaCmd.AddCommand(mediaCheckCmd)

	dbCmd.AddCommand(dbBackupCmd)
	dbCmd.AddCommand(dbCheckCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(stylesCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(contextEditCmd)
	rootCmd.AddCommand(editSessionCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(promptsCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(mediaCmd)
	rootCmd.AddCommand(dbCmd)
}
