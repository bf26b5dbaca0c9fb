package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/tomes-cli/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure HTTP, catalog and download settings.

Use subcommands to change one setting or run the interactive wizard.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Change one setting",
	Long: `Change one setting by key.

Keys:
  http.timeout           request timeout (e.g. 30s)
  http.user_agent        User-Agent header
  http.rate_per_second   requests per second per host, 0 for no limit
  catalog.registry_url   registry index URL
  catalog.packages_dir   installed packages directory
  catalog.system_dir     system-wide packages directory
  catalog.release_grace  how long uninstall waits for references (e.g. 2s)
  downloads.dir          where chapters are written`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsWizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Interactive setup wizard",
	Long:  `Run an interactive wizard to configure all settings step by step.`,
	RunE:  runSettingsWizard,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsWizardCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[HTTP]")
	cmd.Printf("  Timeout: %s\n", settings.HTTP.Timeout)
	cmd.Printf("  User agent: %s\n", settings.HTTP.UserAgent)
	if settings.HTTP.RatePerSecond > 0 {
		cmd.Printf("  Rate limit: %g requests/s per host\n", settings.HTTP.RatePerSecond)
	} else {
		cmd.Printf("  Rate limit: none\n")
	}
	cmd.Println()

	cmd.Println("[Catalog]")
	if settings.Catalog.RegistryURL != "" {
		cmd.Printf("  Registry: %s\n", settings.Catalog.RegistryURL)
	} else {
		cmd.Printf("  Registry: (not set)\n")
	}
	cmd.Printf("  Packages dir: %s\n", settings.Catalog.PackagesDir)
	if settings.Catalog.SystemDir != "" {
		cmd.Printf("  System dir: %s\n", settings.Catalog.SystemDir)
	}
	cmd.Printf("  Release grace: %s\n", settings.Catalog.ReleaseGrace)
	cmd.Println()

	cmd.Println("[Downloads]")
	cmd.Printf("  Directory: %s\n", settings.Downloads.Dir)
	q := settings.Downloads.Queue
	cmd.Printf("  Max concurrent: %d\n", q.MaxConcurrent)
	cmd.Printf("  Retries: %d every %s (auto: %t)\n", q.MaxRetries, q.RetryDelay, q.AutoRetry)
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	if err := applySetting(settings, args[0], args[1]); err != nil {
		return err
	}
	if err := settingsService.Save(settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	cmd.Printf("%s = %s\n", args[0], args[1])
	return nil
}

// applySetting parses value into the field named by key.
func applySetting(s *domain.AppSettings, key, value string) error {
	duration := func() (time.Duration, error) {
		d, err := time.ParseDuration(value)
		if err != nil || d < 0 {
			return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, domain.ErrInvalidInput)
		}
		return d, nil
	}

	switch key {
	case "http.timeout":
		d, err := duration()
		if err != nil {
			return err
		}
		s.HTTP.Timeout = d
	case "http.user_agent":
		s.HTTP.UserAgent = value
	case "http.rate_per_second":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("%s: invalid rate %q: %w", key, value, domain.ErrInvalidInput)
		}
		s.HTTP.RatePerSecond = f
	case "catalog.registry_url":
		s.Catalog.RegistryURL = value
	case "catalog.packages_dir":
		s.Catalog.PackagesDir = value
	case "catalog.system_dir":
		s.Catalog.SystemDir = value
	case "catalog.release_grace":
		d, err := duration()
		if err != nil {
			return err
		}
		s.Catalog.ReleaseGrace = d
	case "downloads.dir":
		s.Downloads.Dir = value
	default:
		return fmt.Errorf("unknown setting %q: %w", key, domain.ErrInvalidInput)
	}
	return nil
}

func runSettingsWizard(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return errors.New("the wizard needs an interactive terminal")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Tomes Setup Wizard")
	cmd.Println("==================")
	cmd.Println("Press Enter to keep the current value.")
	cmd.Println()

	reader := bufio.NewReader(cmd.InOrStdin())
	prompts := []struct {
		key     string
		label   string
		current string
	}{
		{"catalog.registry_url", "Registry URL", settings.Catalog.RegistryURL},
		{"downloads.dir", "Download directory", settings.Downloads.Dir},
		{"http.timeout", "Request timeout", settings.HTTP.Timeout.String()},
		{"http.rate_per_second", "Requests per second per host", strconv.FormatFloat(settings.HTTP.RatePerSecond, 'g', -1, 64)},
	}
	for _, p := range prompts {
		for {
			cmd.Printf("%s [%s]: ", p.label, p.current)
			input := readLine(reader)
			if input == "" {
				break
			}
			if err := applySetting(settings, p.key, input); err != nil {
				cmd.Printf("  %s\n", domain.FailureMessage(err))
				continue
			}
			break
		}
	}

	cmd.Println()
	cmd.Println("Download concurrency:")
	cmd.Println("  [1] 1 (gentle)")
	cmd.Println("  [2] 3 (default)")
	cmd.Println("  [3] 6 (fast)")
	cmd.Print("Select [1-3]: ")
	settings.Downloads.Queue.MaxConcurrent = []int{1, 3, 6}[parseChoice(readLine(reader), 3, 2)-1]

	if err := settingsService.Save(settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	cmd.Println()
	cmd.Println("Settings saved.")
	return nil
}

// Helper functions.

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
