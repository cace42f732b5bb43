package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"receivables/internal/config"
	"receivables/internal/credentials"
	"receivables/internal/ledger"
	"receivables/internal/logger"
	"receivables/internal/sheets"
)

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Show which Google credentials would be used",
	Long: `Credentials resolves the service-account key the same way consolidate
does (GOOGLE_CREDENTIALS_JSON, then the key file) and prints where it was
found together with its identity fields. The private key is never printed.

With --check the workbook is opened and its worksheets are listed, which
verifies that the service account has been granted access.`,
	Example: `  # Show the resolved service account
  receivables credentials

  # Also verify access to the configured workbook
  receivables credentials --check`,
	RunE: runCredentials,
}

func init() {
	rootCmd.AddCommand(credentialsCmd)

	credentialsCmd.Flags().Bool("check", false, "Open the configured workbook and list its worksheets")
}

func runCredentials(cmd *cobra.Command, args []string) error {
	const op = "runCredentials"
	log := logger.WithComponent("credentials")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	creds, err := credentials.Source{
		JSON: cfg.GoogleCredentialsJSON,
		File: cfg.GoogleCredentialsFile,
	}.Resolve()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	summary, err := creds.Summarize()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	fmt.Printf("Origin:       %s\n", summary.Origin)
	if summary.Path != "" {
		fmt.Printf("Path:         %s\n", summary.Path)
	}
	fmt.Printf("Type:         %s\n", summary.Type)
	fmt.Printf("Client email: %s\n", summary.ClientEmail)
	fmt.Printf("Project ID:   %s\n", summary.ProjectID)
	fmt.Printf("Keys:         %s\n", strings.Join(summary.Keys, ", "))

	check, _ := cmd.Flags().GetBool("check")
	if !check {
		return nil
	}

	ref := cfg.SpreadsheetRef()
	if ref == "" {
		return fmt.Errorf("%s: GOOGLE_SHEET_URL or GOOGLE_SPREADSHEET_ID is required for --check", op)
	}

	svc, err := sheets.NewSheetsService(cmd.Context(), ref, creds)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	titles, err := svc.ListWorksheets(cmd.Context())
	if err != nil {
		return fmt.Errorf("%s: workbook not accessible with these credentials: %w", op, err)
	}
	log.Info().Str("spreadsheet_id", svc.SpreadsheetID()).Int("worksheets", len(titles)).Msg("Workbook accessible")

	fmt.Printf("\nWorkbook %s\n", svc.SpreadsheetID())
	for _, title := range titles {
		marker := ""
		if ledger.IsYearTable(title) {
			marker = "  (ledger year)"
		}
		fmt.Printf("  - %s%s\n", title, marker)
	}
	return nil
}
