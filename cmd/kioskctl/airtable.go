package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/airtable"
)

var (
	airtableTable string
	airtableMax   int
)

var airtableCmd = &cobra.Command{
	Use:   "airtable",
	Short: "Inspect the Airtable base",
}

var airtableListCmd = &cobra.Command{
	Use:   "list",
	Short: "List one page of records from a table",
	Long: `Fetches one page of records through the same client the proxy uses and
prints the Airtable response as indented JSON.

Example:
  kioskctl airtable list --table Products --max 10`,
	Args: cobra.NoArgs,
	RunE: runAirtableList,
}

func init() {
	airtableListCmd.Flags().StringVar(&airtableTable, "table", "", "Table name (required)")
	airtableListCmd.Flags().IntVar(&airtableMax, "max", 0, "Maximum number of records (0 for no limit)")
	_ = airtableListCmd.MarkFlagRequired("table")

	airtableCmd.AddCommand(airtableListCmd)
}

func runAirtableList(cmd *cobra.Command, args []string) error {
	if airtableMax < 0 {
		return fmt.Errorf("invalid --max %d: must not be negative", airtableMax)
	}

	atCfg := airtable.ConfigFromSettings(cfg.Airtable)
	if !atCfg.Enabled() {
		return errAirtableNotConfigured
	}
	client, err := airtable.NewClient(atCfg)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	body, err := client.ListRecordsRaw(ctx, airtableTable, airtable.ListOptions{
		MaxRecords: airtableMax,
		View:       atCfg.View,
	})
	if err != nil {
		return err
	}

	var out bytes.Buffer
	if err := json.Indent(&out, body, "", "  "); err != nil {
		return err
	}
	out.WriteByte('\n')
	_, err = out.WriteTo(cmd.OutOrStdout())
	return err
}
