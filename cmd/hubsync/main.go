package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hubsync/internal/app"
	"hubsync/internal/auth"
	"hubsync/internal/config"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer
// app.Close().
func newApp() (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "hubsync",
	Short: "Publish local file changes to a remote repository",
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
		endpoint, _ := cmd.Flags().GetString("endpoint")
		repoID, _ := cmd.Flags().GetString("repo")
		repoType, _ := cmd.Flags().GetString("type")

		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(endpoint, defaults["base_dir"])
		cfg.RepoID = repoID
		if repoType != "" {
			cfg.RepoType = repoType
		}

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Endpoint:   %s\n", cfg.Endpoint)
		fmt.Printf("Repository: %s (%s)\n", cfg.RepoID, cfg.RepoType)
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
		fmt.Printf("Endpoint:   %s\n", cfg.Endpoint)
		fmt.Printf("Repository: %s (%s)\n", cfg.RepoID, cfg.RepoType)
		fmt.Printf("Revision:   %s\n", cfg.Revision)
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		if cfg.Watch.Folder != "" {
			fmt.Printf("Watching:   %s every %.1f minute(s)\n", cfg.Watch.Folder, cfg.Watch.EveryMinutes)
		}
		return nil
	},
}

// auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage credentials",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store an access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}
		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Print("Token: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("reading token: %w", err)
		}

		if err := auth.SaveToken(cfg.TokenPath, string(raw)); err != nil {
			return fmt.Errorf("saving token: %w", err)
		}
		fmt.Printf("Token stored at %s\n", cfg.TokenPath)
		return nil
	},
}

// push command
var pushCmd = &cobra.Command{
	Use:   "push [PATH]",
	Short: "Publish a file or folder as one commit",
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, _ := cmd.Flags().GetString("message")
		dest, _ := cmd.Flags().GetString("dest")
		deletions, _ := cmd.Flags().GetStringArray("delete")
		createPR, _ := cmd.Flags().GetBool("pr")
		parent, _ := cmd.Flags().GetString("parent")

		target := ""
		if len(args) > 0 {
			target = args[0]
		}
		if target == "" && len(deletions) == 0 {
			return fmt.Errorf("nothing to push: provide a path or --delete")
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		result, added, err := a.Push(cmd.Context(), target, dest, summary, parent, deletions, createPR)
		if err != nil {
			return fmt.Errorf("push failed: %w", err)
		}

		fmt.Printf("Pushed %d file(s), deleted %d\n", added, len(deletions))
		if result.PullRequestURL != "" {
			fmt.Printf("Pull request: %s (%s)\n", result.PullRequestURL, result.PullRequestRevision)
		}
		return nil
	},
}

// watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the configured folder and push changes on a timer",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		sched, err := a.NewScheduler()
		if err != nil {
			return err
		}

		// Stop (with one best-effort final push) on SIGINT/SIGTERM.
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sched.Start()
		fmt.Println("Watching. Press Ctrl-C to stop.")
		<-ctx.Done()
		sched.Stop()

		if last := sched.LastResult(); last != nil && last.Err != nil {
			return fmt.Errorf("last push failed: %w", last.Err)
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View push history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		records, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(records) == 0 {
			fmt.Println("No pushes recorded.")
			return nil
		}

		for _, rec := range records {
			duration := ""
			if !rec.FinishedAt.IsZero() {
				duration = rec.FinishedAt.Sub(rec.StartedAt).Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-14s  %s  %-8s  %d file(s)  %s\n",
				rec.ID,
				rec.Operation,
				rec.StartedAt.Format("2006-01-02 15:04:05"),
				rec.Status,
				rec.FilesUploaded,
				duration,
			)
			if rec.Error != "" {
				fmt.Printf("     error: %s\n", rec.Error)
			}
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configInitCmd.Flags().String("endpoint", "", "Service base URL")
	configInitCmd.Flags().String("repo", "", "Repository identifier")
	configInitCmd.Flags().String("type", "", "Repository type (model, dataset, space)")
	configInitCmd.MarkFlagRequired("endpoint")
	configInitCmd.MarkFlagRequired("repo")

	authCmd.AddCommand(authLoginCmd)

	pushCmd.Flags().StringP("message", "m", "Upload with hubsync", "Commit summary")
	pushCmd.Flags().String("dest", "", "Destination sub-path in the repository")
	pushCmd.Flags().StringArray("delete", nil, "Remote path to delete (repeatable)")
	pushCmd.Flags().Bool("pr", false, "Open a pull request instead of committing directly")
	pushCmd.Flags().String("parent", "", "Require the revision to be at this commit hash")

	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of pushes to show")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(historyCmd)
}
