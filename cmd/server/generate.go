package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rpggio/supportbill/internal/domain/generation"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().String("tenant", "", "Tenant ID (defaults to SUPPORTBILL_DEFAULT_TENANT)")
	generateCmd.Flags().String("subject", "", "Subject ID to bill")
	generateCmd.Flags().String("start", "", "First day of the period, YYYY-MM-DD")
	generateCmd.Flags().String("end", "", "Last day of the period, YYYY-MM-DD (inclusive)")
	generateCmd.Flags().String("requester", "cli", "Acting user recorded in the audit log")
	generateCmd.Flags().Bool("skip-prompts", false, "Drop unpriced items instead of raising price prompts")
	generateCmd.Flags().Bool("exclude-expenses", false, "Leave reimbursable expenses off the result")
	_ = generateCmd.MarkFlagRequired("subject")
	_ = generateCmd.MarkFlagRequired("start")
	_ = generateCmd.MarkFlagRequired("end")
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate line items for one subject and print them as JSON",
	Args:  cobra.NoArgs,
	RunE:  runGenerate,
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	rt, err := setup(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer rt.close()

	flags := cmd.Flags()
	tenantID, _ := flags.GetString("tenant")
	if tenantID == "" {
		tenantID = rt.cfg.Auth.DefaultTenant
	}
	subjectID, _ := flags.GetString("subject")
	start, _ := flags.GetString("start")
	end, _ := flags.GetString("end")
	requester, _ := flags.GetString("requester")
	skipPrompts, _ := flags.GetBool("skip-prompts")
	excludeExpenses, _ := flags.GetBool("exclude-expenses")

	result, err := rt.app.Generation.Generate(cmd.Context(), generation.Request{
		TenantID:         tenantID,
		SubjectID:        subjectID,
		RequesterID:      requester,
		StartDate:        start,
		EndDate:          end,
		SkipPricePrompts: skipPrompts,
		ExcludeExpenses:  excludeExpenses,
	})
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
