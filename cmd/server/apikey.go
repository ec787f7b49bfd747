package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(apiKeyCmd)
	apiKeyCmd.AddCommand(apiKeyCreateCmd)
	apiKeyCreateCmd.Flags().String("tenant", "", "Tenant the key authenticates as")
	apiKeyCreateCmd.Flags().String("description", "", "Free-form note stored with the key")
	_ = apiKeyCreateCmd.MarkFlagRequired("tenant")
}

var apiKeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage api keys for the HTTP transport",
}

var apiKeyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an api key and print it once",
	Long:  `Create an api key for a tenant. Only a hash is stored, so the printed key cannot be recovered later.`,
	Args:  cobra.NoArgs,
	RunE:  runAPIKeyCreate,
}

func runAPIKeyCreate(cmd *cobra.Command, _ []string) error {
	tenantID, _ := cmd.Flags().GetString("tenant")
	description, _ := cmd.Flags().GetString("description")

	rt, err := setup(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer rt.close()

	token := uuid.NewString()
	if err := rt.app.APIKeys.Add(cmd.Context(), token, tenantID, description); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
