package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Jayphen/habisnooze/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long:  `Manage habisnooze configuration files.`,
		// A broken config file must not prevent 'config init' or 'config path'.
		PersistentPreRunE: setupLenient,
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  `Display the current configuration values from all sources.`,
		RunE:  runConfigShow,
	}
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create example configuration file",
		Long: `Create an example configuration file at ~/.config/habisnooze/config.yaml.

The generated file contains all available options with their default values.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing config file")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file paths",
		Long:  `Display the paths where configuration files are searched.`,
		RunE:  runConfigPath,
	}
}

// setupLenient is setup for commands that work without a valid config.
func setupLenient(cmd *cobra.Command, args []string) error {
	if err := setup(cmd, args); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v (using defaults)\n", err)
		cfg = config.Default()
	}
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	fmt.Println("Current configuration:")
	fmt.Println()
	fmt.Println("  habitica:")
	fmt.Printf("    base_url:            %s\n", cfg.Habitica.BaseURL)
	fmt.Printf("    user_id:             %s\n", valueOrDefault(cfg.Habitica.UserID, "(not set)"))
	fmt.Printf("    api_key:             %s\n", maskSecret(cfg.Habitica.APIKey))
	fmt.Printf("    client_name:         %s\n", cfg.Habitica.ClientName)
	fmt.Printf("    timeout:             %s\n", cfg.Habitica.Timeout)
	fmt.Printf("    requests_per_minute: %d\n", cfg.Habitica.RequestsPerMinute)
	fmt.Println()
	fmt.Println("  snooze:")
	fmt.Printf("    tag_id:                        %s\n", valueOrDefault(cfg.Snooze.TagID, "(not set)"))
	fmt.Printf("    compare_due_task_to_yesterday: %t\n", cfg.Snooze.CompareDueTaskToYesterday)
	fmt.Printf("    timezone:                      %s\n", cfg.Snooze.Timezone)
	fmt.Printf("    checklist:                     %s\n", cfg.Snooze.Checklist)
	fmt.Printf("    reminder_offset:               %s\n", cfg.Snooze.ReminderOffset)
	fmt.Printf("    notes:                         %s\n", valueOrDefault(cfg.Snooze.Notes, "(copied from daily)"))
	fmt.Println()
	fmt.Println("  schedule:")
	fmt.Printf("    interval:     %s\n", cfg.Schedule.Interval)
	fmt.Printf("    run_on_start: %t\n", cfg.Schedule.RunOnStart)
	fmt.Printf("    run_timeout:  %s\n", cfg.Schedule.RunTimeout)
	fmt.Println()
	fmt.Println("  webhook:")
	fmt.Printf("    addr:   %s\n", cfg.Webhook.Addr)
	fmt.Printf("    path:   %s\n", cfg.Webhook.Path)
	fmt.Printf("    secret: %s\n", maskSecret(cfg.Webhook.Secret))
	fmt.Println()
	fmt.Printf("  redis_url: %s\n", valueOrDefault(cfg.RedisURL, "(disabled)"))
	fmt.Println()
	fmt.Println("  logging:")
	fmt.Printf("    level:     %s\n", cfg.Logging.Level)
	fmt.Printf("    file_path: %s\n", valueOrDefault(cfg.Logging.FilePath, "(stderr only)"))
	fmt.Printf("    json:      %t\n", cfg.Logging.JSON)

	if err := cfg.Validate(); err != nil {
		fmt.Println()
		fmt.Printf("Configuration is not usable yet: %v\n", err)
	}

	return nil
}

func runConfigInit(force bool) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, ".config", "habisnooze", "config.yaml")

	// Check if file exists
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", configPath)
	}

	if err := config.WriteExample(configPath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Created config file at: %s\n", configPath)
	fmt.Println()
	fmt.Println("Fill in habitica.user_id, habitica.api_key and snooze.tag_id.")
	fmt.Println("Run 'habisnooze config show' to see current values.")

	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	fmt.Println("Configuration file search paths (in priority order):")
	fmt.Println()

	paths := config.ConfigPaths()
	for i, p := range paths {
		exists := "not found"
		if _, err := os.Stat(p); err == nil {
			exists = "found"
		}
		fmt.Printf("  %d. %s (%s)\n", i+1, p, exists)
	}

	fmt.Println()
	fmt.Println("Environment variables can override file settings.")
	fmt.Println("Supported env vars:")
	for _, name := range envVars {
		fmt.Println("  " + name)
	}

	return nil
}

var envVars = []string{
	"HABISNOOZE_HABITICA_BASE_URL",
	"HABISNOOZE_HABITICA_USER_ID",
	"HABISNOOZE_HABITICA_API_KEY",
	"HABISNOOZE_HABITICA_CLIENT_NAME",
	"HABISNOOZE_HABITICA_TIMEOUT",
	"HABISNOOZE_HABITICA_REQUESTS_PER_MINUTE",
	"HABISNOOZE_SNOOZE_TAG_ID",
	"HABISNOOZE_SNOOZE_COMPARE_DUE_TASK_TO_YESTERDAY",
	"HABISNOOZE_SNOOZE_TIMEZONE",
	"HABISNOOZE_SNOOZE_CHECKLIST",
	"HABISNOOZE_SNOOZE_REMINDER_OFFSET",
	"HABISNOOZE_SNOOZE_NOTES",
	"HABISNOOZE_SCHEDULE_INTERVAL",
	"HABISNOOZE_SCHEDULE_RUN_ON_START",
	"HABISNOOZE_SCHEDULE_RUN_TIMEOUT",
	"HABISNOOZE_WEBHOOK_ADDR",
	"HABISNOOZE_WEBHOOK_PATH",
	"HABISNOOZE_WEBHOOK_SECRET",
	"HABISNOOZE_REDIS_URL (or REDIS_URL)",
	"HABISNOOZE_LOG_LEVEL",
	"HABISNOOZE_LOG_FILE",
	"HABISNOOZE_LOG_JSON",
	"HABISNOOZE_LOG_CONSOLE",
}

func valueOrDefault(val, def string) string {
	if val == "" {
		return def
	}
	return val
}

func maskSecret(val string) string {
	if val == "" {
		return "(not set)"
	}
	if len(val) <= 8 {
		return "***"
	}
	return val[:4] + "..." + val[len(val)-4:]
}
