package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage provider credentials",
	Long: `Store and inspect the OpenAI API key used for batch submission.

The key is written to the tidemark config file with owner-only
permissions. The OPENAI_API_KEY environment variable and the --api-key
flag override it at run time.`,
}

var authSetKeyCmd = &cobra.Command{
	Use:   "set-key [key]",
	Short: "Store the OpenAI API key",
	Long: `Stores the OpenAI API key in the config file.

With no argument the key is prompted for without echo.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAuthSetKey,
}

var authShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active API key (masked)",
	RunE:  runAuthShow,
}

func init() {
	authCmd.AddCommand(authSetKeyCmd)
	authCmd.AddCommand(authShowCmd)
	rootCmd.AddCommand(authCmd)
}

func runAuthSetKey(cmd *cobra.Command, args []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	var key string
	if len(args) == 1 {
		key = strings.TrimSpace(args[0])
	} else {
		cmd.Print("Enter API key: ")
		key = readPassword()
		cmd.Println()
	}
	if key == "" {
		return errors.New("API key is required")
	}

	if err := configStore.Set("openai.api_key", key); err != nil {
		return fmt.Errorf("store API key: %w", err)
	}

	cmd.Printf("API key stored in %s\n", configStore.Path())
	return nil
}

func runAuthShow(cmd *cobra.Command, _ []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	key := resolveAPIKey("")
	if key == "" {
		cmd.Println("No API key configured.")
		cmd.Println("Set one with: tidemark auth set-key")
		return nil
	}

	cmd.Printf("API key: %s\n", maskAPIKey(key))
	return nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readPassword() string {
	// Try to read password without echo
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return string(password)
		}
	}
	// Fallback to regular input
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
