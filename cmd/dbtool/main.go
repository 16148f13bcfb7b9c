package main

import (
	"fmt"
	"log"
	"os"
	"school-transport-service/internal/adapters/repositories"
	"school-transport-service/internal/app"
	"school-transport-service/internal/config"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "dbtool",
	Short:        "Database and monitoring maintenance for the school transport service",
	SilenceUsage: true,
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create tables and indexes if they do not exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		log.Println("Initializing database schema...")
		a, err := app.Open(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("schema initialization failed: %w", err)
		}
		defer a.Close()
		log.Println("Schema ready.")
		return nil
	},
}

var seedTripsCmd = &cobra.Command{
	Use:   "seed-trips",
	Short: "Insert trips from a JSON seed file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		path, _ := cmd.Flags().GetString("path")
		replace, _ := cmd.Flags().GetBool("replace")
		if path == "" {
			path = cfg.SeedPath
		}

		a, err := app.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		log.Printf("Seeding trips from %s... replace=%t", path, replace)
		n, err := repositories.SeedTripsFromJSON(cmd.Context(), a.Trips, path, replace)
		if err != nil {
			return fmt.Errorf("seeding failed: %w", err)
		}
		log.Printf("Seeding complete. trips=%d", n)
		return nil
	},
}

var checkLateCmd = &cobra.Command{
	Use:   "check-late [trip-id...]",
	Short: "Run late-arrival checks for the given trips, or every active trip",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		a, err := app.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if len(args) == 0 {
			late, err := a.Arrival.CheckActiveTrips(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "late trips: %d\n", late)
			return nil
		}

		for _, tripID := range args {
			res, err := a.Arrival.CheckLateArrival(cmd.Context(), tripID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s late=%t delay_minutes=%d\n", tripID, res.Late, res.DelayMinutes)
		}
		return nil
	},
}

var endTripCmd = &cobra.Command{
	Use:   "end-trip <trip-id>",
	Short: "Mark a trip completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		a, err := app.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Arrival.EndTrip(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s completed\n", args[0])
		return nil
	},
}

func init() {
	seedTripsCmd.Flags().String("path", "", "seed file (default SEED_PATH)")
	seedTripsCmd.Flags().Bool("replace", false, "overwrite stored trips, including their status")

	rootCmd.AddCommand(schemaCmd, seedTripsCmd, checkLateCmd, endTripCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
