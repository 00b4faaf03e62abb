package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/dukaan/config"
	"github.com/shashiranjanraj/dukaan/database/seeders"
	"github.com/shashiranjanraj/dukaan/internal/server"
	"github.com/shashiranjanraj/dukaan/pkg/database"
)

// dukaan seed — insert the starter categories and the admin account.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Run all database seeders",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Load(); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		db, err := database.Connect(ctx, config.MongoURI(), config.MongoDB())
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Println("Running seeders…")
		return seeders.RunAll(ctx, db.DB)
	},
}

// dukaan sweep — run the storage reconciliation sweep once and exit.
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Retry outstanding storage delete intents",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		app, err := server.Boot(ctx)
		if err != nil {
			return err
		}
		defer app.DB.Close()

		fmt.Println("Sweeping storage intents…")
		app.Reconciler.Sweep(ctx)
		return nil
	},
}
