package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/tomes-cli/internal/core/domain"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage source packages",
	Long: `List, install and remove source packages.

Packages are bundled with tomes, installed from the registry into the
packages directory, or shared system-wide.`,
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List bundled, installed and system-wide packages",
	RunE:  runCatalogList,
}

var catalogAvailableCmd = &cobra.Command{
	Use:   "available",
	Short: "List packages in the registry",
	RunE:  runCatalogAvailable,
}

var catalogInstallCmd = &cobra.Command{
	Use:   "install [package]",
	Short: "Install a package from the registry",
	Args:  cobra.ExactArgs(1),
	RunE:  runCatalogInstall,
}

var catalogUninstallCmd = &cobra.Command{
	Use:   "uninstall [package]",
	Short: "Remove an installed package",
	Args:  cobra.ExactArgs(1),
	RunE:  runCatalogUninstall,
}

var catalogSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Retry deletion of package files left by uninstall",
	RunE:  runCatalogSweep,
}

func init() {
	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogAvailableCmd)
	catalogCmd.AddCommand(catalogInstallCmd)
	catalogCmd.AddCommand(catalogUninstallCmd)
	catalogCmd.AddCommand(catalogSweepCmd)
	rootCmd.AddCommand(catalogCmd)
}

func runCatalogList(cmd *cobra.Command, _ []string) error {
	if catalogManager == nil {
		return errors.New("catalog manager not configured")
	}

	entries, err := catalogManager.LoadAll(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	if len(entries) == 0 {
		cmd.Println("No packages.")
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		id, state := "-", string(e.State)
		if e.IsLoaded() {
			id = strconv.FormatInt(e.SourceID(), 10)
		}
		if e.Error != "" {
			state += ": " + truncate(e.Error, 40)
		}
		rows = append(rows, []string{
			e.PkgName, e.Name, e.Lang, strconv.Itoa(e.Version), string(e.Kind), string(e.Origin), state, id,
		})
	}
	cmd.Println(renderTable(cmd.OutOrStdout(),
		[]string{"Package", "Name", "Lang", "Version", "Kind", "Origin", "State", "Source ID"}, rows))
	return nil
}

func runCatalogAvailable(cmd *cobra.Command, _ []string) error {
	if catalogManager == nil {
		return errors.New("catalog manager not configured")
	}

	pkgs, err := catalogManager.Remote(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to fetch registry: %w", err)
	}
	if len(pkgs) == 0 {
		cmd.Println("Registry is empty.")
		return nil
	}

	rows := make([][]string, 0, len(pkgs))
	for _, p := range pkgs {
		status := ""
		switch {
		case p.HasUpdate:
			status = "update available"
		case p.Installed:
			status = "installed"
		}
		rows = append(rows, []string{
			p.Record.PkgName, p.Record.Name, p.Record.Lang, strconv.Itoa(p.Record.Version),
			string(p.Record.Kind()), status,
		})
	}
	cmd.Println(renderTable(cmd.OutOrStdout(),
		[]string{"Package", "Name", "Lang", "Version", "Kind", "Status"}, rows))
	return nil
}

func runCatalogInstall(cmd *cobra.Command, args []string) error {
	if catalogManager == nil {
		return errors.New("catalog manager not configured")
	}
	ctx := cmd.Context()
	name := args[0]

	pkgs, err := catalogManager.Remote(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch registry: %w", err)
	}
	var record *domain.RegistryRecord
	for i := range pkgs {
		if pkgs[i].Record.PkgName == name {
			record = &pkgs[i].Record
			break
		}
	}
	if record == nil {
		return fmt.Errorf("package %q: %w", name, domain.ErrNotFound)
	}

	var last domain.InstallStep
	for step := range catalogManager.Install(ctx, *record) {
		last = step
		switch step.Kind {
		case domain.StepIdle:
			cmd.Printf("Waiting for another operation on %s...\n", name)
		case domain.StepDownloading:
			cmd.Printf("Downloading %s...\n", name)
		case domain.StepInstalling:
			cmd.Printf("Installing %s...\n", name)
		}
	}

	if last.Kind != domain.StepSuccess {
		msg := last.Message
		if msg == "" {
			msg = "install did not complete"
		}
		cmd.PrintErrln(paint(cmd.ErrOrStderr(), errorStyle, "Error: "+msg))
		return fmt.Errorf("install %s: %w", name, domain.ErrInstall)
	}
	cmd.Printf("Installed %s (%s v%d).\n", name, record.Name, record.Version)
	return nil
}

func runCatalogUninstall(cmd *cobra.Command, args []string) error {
	if catalogManager == nil {
		return errors.New("catalog manager not configured")
	}

	if err := catalogManager.Uninstall(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to uninstall %s: %w", args[0], err)
	}
	cmd.Printf("Uninstalled %s.\n", args[0])
	return nil
}

func runCatalogSweep(cmd *cobra.Command, _ []string) error {
	if catalogManager == nil {
		return errors.New("catalog manager not configured")
	}

	n := catalogManager.SweepPending()
	cmd.Printf("Removed %d leftover paths.\n", n)
	return nil
}
