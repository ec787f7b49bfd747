package main

import (
	"fmt"
	"os"

	"github.com/rpggio/supportbill/internal/domain/catalogue"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(catalogueCmd)
	catalogueCmd.AddCommand(catalogueImportCmd)
}

var catalogueCmd = &cobra.Command{
	Use:   "catalogue",
	Short: "Manage the support item catalogue",
}

var catalogueImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import support items and caps from a YAML file",
	Long: `Import support items from YAML. Existing items are replaced, caps
included. The file lists items with code, name, unit, quote_required and a
list of caps:

  items:
    - code: 01_011_0107_1_1
      name: Assistance With Self-Care Activities - Standard - Weekday Daytime
      unit: hour
      caps:
        - {tier: standard, region: NSW, amount: "67.56"}
        - {tier: high_intensity, region: NSW, amount: "70.00"}`,
	Args: cobra.ExactArgs(1),
	RunE: runCatalogueImport,
}

func runCatalogueImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	items, err := catalogue.ParseYAML(f)
	if err != nil {
		return err
	}

	rt, err := setup(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer rt.close()

	n, err := rt.app.Catalogue.Import(cmd.Context(), items)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d items\n", n)
	return nil
}
