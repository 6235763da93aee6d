package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and change settings stored in ~/.ragdesk/config.toml.

Environment variables override stored values: OLLAMA_HOST, EMBEDDING_MODEL,
LLM_MODEL and RAGDESK_<KEY> with dots replaced by underscores, for example
RAGDESK_RETRIEVAL_K. A .env file in the working directory is also read.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	Args:  cobra.NoArgs,
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Change a setting",
	Args:  cobra.ExactArgs(2),
	RunE:  runSettingsSet,
}

var settingsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the configured providers are reachable",
	Args:  cobra.NoArgs,
	RunE:  runSettingsCheck,
}

var settingsWizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Interactive provider setup",
	Long:  `Choose the embedding and answer providers, models and API keys step by step.`,
	Args:  cobra.NoArgs,
	RunE:  runSettingsWizard,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsCheckCmd)
	settingsCmd.AddCommand(settingsWizardCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	entries, err := settingsService.Entries()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	st := newStyles(cmd.OutOrStdout())
	section := ""
	for _, e := range entries {
		group, name, _ := strings.Cut(e.Key, ".")
		if group != section {
			if section != "" {
				cmd.Println()
			}
			section = group
			cmd.Println(st.Title.Render("[" + group + "]"))
		}

		value := e.Value
		if value == "" {
			value = st.Muted.Render("(not set)")
		}
		line := fmt.Sprintf("  %-22s %s", name, value)
		if e.Value != e.Default && e.Default != "" {
			line += st.Muted.Render(" (default " + e.Default + ")")
		}
		cmd.Println(line)
	}

	cmd.Println()
	if _, err := settingsService.Config(); err != nil {
		cmd.Println(st.Warning.Render(fmt.Sprintf("Warning: %v", err)))
		return nil
	}
	cmd.Println(st.Success.Render("Configuration is valid."))
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	if err := settingsService.Set(args[0], args[1]); err != nil {
		return err
	}
	cmd.Printf("%s updated.\n", args[0])
	return nil
}

func runSettingsCheck(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	st := newStyles(cmd.OutOrStdout())
	var failed error

	cmd.Print("Embedding provider... ")
	if err := settingsService.ValidateEmbeddingConfig(); err != nil {
		cmd.Println(st.Error.Render("FAILED: " + err.Error()))
		failed = err
	} else {
		cmd.Println(st.Success.Render("OK"))
	}

	cmd.Print("LLM provider... ")
	if err := settingsService.ValidateLLMConfig(); err != nil {
		cmd.Println(st.Error.Render("FAILED: " + err.Error()))
		failed = errors.Join(failed, err)
	} else {
		cmd.Println(st.Success.Render("OK"))
	}

	return failed
}

func runSettingsWizard(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	st := newStyles(cmd.OutOrStdout())
	reader := bufio.NewReader(stdin)

	cmd.Println(st.Title.Render("ragdesk settings wizard"))
	cmd.Println()

	cmd.Println(st.Label.Render("Step 1: Embedding provider"))
	if err := configureProvider(cmd, reader, "embedding",
		domain.AllEmbeddingProviders(), domain.DefaultEmbeddingModels()); err != nil {
		return err
	}
	cmd.Print("Validating... ")
	if err := settingsService.ValidateEmbeddingConfig(); err != nil {
		cmd.Println(st.Error.Render("FAILED"))
		return fmt.Errorf("embedding configuration validation failed: %w", err)
	}
	cmd.Println(st.Success.Render("OK"))
	cmd.Println()

	cmd.Println(st.Label.Render("Step 2: LLM provider"))
	if err := configureProvider(cmd, reader, "llm",
		domain.AllLLMProviders(), domain.DefaultLLMModels()); err != nil {
		return err
	}
	cmd.Print("Validating... ")
	if err := settingsService.ValidateLLMConfig(); err != nil {
		cmd.Println(st.Error.Render("FAILED"))
		return fmt.Errorf("LLM configuration validation failed: %w", err)
	}
	cmd.Println(st.Success.Render("OK"))
	cmd.Println()

	cmd.Println(st.Success.Render("All settings are valid and saved."))
	return nil
}

// configureProvider asks for a provider, model and API key and stores them
// under the given key prefix.
func configureProvider(
	cmd *cobra.Command,
	reader *bufio.Reader,
	prefix string,
	providers []domain.AIProvider,
	defaults map[domain.AIProvider]string,
) error {
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("Enter choice [1]: ")
	provider := providers[parseChoice(readLine(reader), len(providers), 1)-1]

	defaultModel := defaults[provider]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	var apiKey string
	if provider.RequiresAPIKey() {
		cmd.Print("Enter API key: ")
		apiKey = readPassword(reader)
		cmd.Println()
		if apiKey == "" {
			return fmt.Errorf("%w: API key is required for %s", domain.ErrInvalidConfig, provider.Description())
		}
	}

	values := [][2]string{
		{prefix + ".provider", provider.String()},
		{prefix + ".model", model},
	}
	if apiKey != "" {
		values = append(values, [2]string{prefix + ".api_key", apiKey})
	}
	for _, kv := range values {
		if err := settingsService.Set(kv[0], kv[1]); err != nil {
			return fmt.Errorf("failed to save %s: %w", kv[0], err)
		}
	}

	cmd.Printf("Configured %s: %s (%s)\n", prefix, provider.Description(), model)
	return nil
}

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads without echo from a terminal, otherwise a plain line.
func readPassword(reader *bufio.Reader) string {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if password, err := term.ReadPassword(int(f.Fd())); err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	return readLine(reader)
}

// isTerminal reports whether r is an interactive terminal.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
