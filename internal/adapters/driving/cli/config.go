package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/tidemark/internal/core/domain"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage tidemark configuration",
	Long: `View and edit the TOML configuration file.

Keys use dot notation, for example sources.enabled or aws.region.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print a single configuration value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a configuration value",
	Long: `Sets a configuration value and saves the file.

Values are coerced to the closest TOML type: booleans, integers and
floats are recognised; comma-separated values become string lists.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	cmd.Println(headingStyle.Render("Current Configuration"))
	cmd.Println("=====================")
	cmd.Println()
	cmd.Printf("File: %s\n", configStore.Path())
	cmd.Println()

	cmd.Println("[Sources]")
	if enabled := configStore.GetStringSlice("sources.enabled"); len(enabled) > 0 {
		cmd.Printf("  Enabled: %s\n", strings.Join(enabled, ", "))
	} else {
		cmd.Printf("  Enabled: (none, defaulting to %s)\n", domain.DefaultSourceName)
	}
	cmd.Println()

	cmd.Println("[AWS]")
	if region := resolveRegion(); region != "" {
		cmd.Printf("  Region: %s\n", region)
	} else {
		cmd.Println("  Region: (from shared AWS config)")
	}
	if table := resolveLedgerTable(); table != "" {
		cmd.Printf("  Ledger: DynamoDB table %s\n", table)
	} else {
		cmd.Println("  Ledger: local SQLite")
	}
	if rps := configStore.GetFloat("aws.scan_rps"); rps > 0 {
		cmd.Printf("  Scan rate limit: %.1f pages/s\n", rps)
	} else {
		cmd.Println("  Scan rate limit: unlimited")
	}
	cmd.Println()

	cmd.Println("[OpenAI]")
	if key := resolveAPIKey(""); key != "" {
		cmd.Printf("  API key: %s\n", maskAPIKey(key))
	} else {
		cmd.Println("  API key: (not set)")
	}
	if base := configStore.GetString("openai.base_url"); base != "" {
		cmd.Printf("  Base URL: %s\n", base)
	}
	cmd.Println()

	cmd.Println("[Batch]")
	hours := configStore.GetInt("batch.hours")
	if hours <= 0 {
		hours = defaultLookbackHours
	}
	cmd.Printf("  Look-back: %dh\n", hours)
	model := resolveModelKey()
	cmd.Printf("  Model: %s (%s)\n", model, domain.ResolveModel(model))
	if dataDir, err := resolveDataDir(); err == nil {
		cmd.Printf("  Data dir: %s\n", dataDir)
	}
	cmd.Println()

	cmd.Println("[Daemon]")
	cmd.Printf("  Schedule: %s\n", resolveSchedule())
	cmd.Println()

	cmd.Println("[Archive]")
	if bucket := configStore.GetString("archive.s3_bucket"); bucket != "" {
		cmd.Printf("  S3 bucket: %s\n", bucket)
	} else {
		cmd.Println("  S3 bucket: (disabled)")
	}

	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	value, ok := configStore.Get(args[0])
	if !ok {
		return fmt.Errorf("key %s is not set", args[0])
	}
	cmd.Printf("%v\n", value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	key, raw := args[0], args[1]
	value := parseConfigValue(key, raw)
	if err := configStore.Set(key, value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}

	cmd.Printf("%s = %v\n", key, value)
	return nil
}

func runConfigPath(cmd *cobra.Command, _ []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	cmd.Println(configStore.Path())
	return nil
}

// listKeys always store as string lists, even with a single element.
var listKeys = map[string]bool{
	"sources.enabled": true,
}

// parseConfigValue coerces a CLI argument to the closest TOML type.
// Numbers are tried before booleans so "1" stays an integer.
func parseConfigValue(key, raw string) any {
	if listKeys[key] {
		return splitSources([]string{raw})
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	if strings.Contains(raw, ",") {
		return splitSources([]string{raw})
	}
	return raw
}
