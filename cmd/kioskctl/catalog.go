package main

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	catalogapp "github.com/SWFTstudios/onlyatthekiosk-website/internal/application/catalog"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/airtable"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/cache"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/logger"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/persistence"
)

var errAirtableNotConfigured = errors.New("airtable access token and base id are required (airtable.access_token, airtable.base_id)")

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Catalog mirror maintenance",
}

var catalogSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one Airtable to database catalog sync",
	Long: `Reconciles the products table against the Airtable products table and
prints the sync report as JSON. The run takes the same lock as the server, so
it is rejected while a scheduled run is in progress.`,
	Args: cobra.NoArgs,
	RunE: runCatalogSync,
}

func init() {
	catalogCmd.AddCommand(catalogSyncCmd)
}

func runCatalogSync(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	atCfg := airtable.ConfigFromSettings(cfg.Airtable)
	if !atCfg.Enabled() {
		return errAirtableNotConfigured
	}
	client, err := airtable.NewClient(atCfg)
	if err != nil {
		return err
	}

	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, logger.NewGormLogger(log, logger.MapGormLogLevel("warn")))
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
	}()

	lock, err := cache.NewRunLockFactory(cfg.Sync, cfg.Redis, cache.WithLogger(log)).Create()
	if err != nil {
		return err
	}

	service := catalogapp.NewSyncService(
		airtable.NewProductSource(client),
		persistence.NewGormProductRepository(db.DB),
		lock,
		log,
	)
	report, err := service.Run(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
