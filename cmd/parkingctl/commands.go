package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/davidbanez/park-angel-v1-sub008/internal/availability"
	"github.com/davidbanez/park-angel-v1-sub008/internal/middleware"
	"github.com/davidbanez/park-angel-v1-sub008/internal/model"
	"github.com/davidbanez/park-angel-v1-sub008/internal/pricing"
	"github.com/davidbanez/park-angel-v1-sub008/internal/repository"
)

type ctlConfig struct {
	DatabaseURI    string        `env:"DATABASE_URI"`
	AuthSecret     string        `env:"AUTH_SECRET"`
	ReservationTTL time.Duration `env:"RESERVATION_TTL" envDefault:"15m"`
	TimeZone       string        `env:"TIME_ZONE" envDefault:"UTC"`
}

func loadConfig() (ctlConfig, error) {
	var cfg ctlConfig
	if err := env.Parse(&cfg); err != nil {
		return ctlConfig{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func openRepo() (*repository.PostgresRepository, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURI == "" {
		return nil, fmt.Errorf("DATABASE_URI is not set")
	}
	return repository.NewPostgresRepository(cfg.DatabaseURI)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and print the schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepo()
			if err != nil {
				return err
			}
			defer repo.Close()

			version, err := repo.MigrationVersion(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d\n", version)
			return nil
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Release expired spot holds once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			repo, err := openRepo()
			if err != nil {
				return err
			}
			defer repo.Close()

			logger, _ := zap.NewDevelopment()
			defer logger.Sync()

			released, err := availability.NewManager(repo, nil, logger, cfg.ReservationTTL).SweepExpired(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "released %d expired holds\n", released)
			return nil
		},
	}
}

type offlineQuote struct {
	pricing.RateResult
	pricing.Totals
	VATRate float64 `json:"vatRate"`
}

func quoteCmd() *cobra.Command {
	var (
		configPath string
		vehicle    string
		startRaw   string
		minutes    int
		occupancy  float64
		timeZone   string
	)

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price an interval against a pricing config file without a database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := pricing.DefaultPricing()
			if configPath != "" {
				if err := readJSON(configPath, &cfg); err != nil {
					return err
				}
			}
			if err := pricing.Validate(cfg); err != nil {
				return err
			}

			loc, err := time.LoadLocation(timeZone)
			if err != nil {
				return fmt.Errorf("load time zone %q: %w", timeZone, err)
			}
			start, err := time.Parse(time.RFC3339, startRaw)
			if err != nil {
				return fmt.Errorf("parse start: %w", err)
			}

			var occ *float64
			if cmd.Flags().Changed("occupancy") {
				occ = &occupancy
			}

			rr, err := pricing.CalculateRate(cfg, model.VehicleType(vehicle), start.In(loc), minutes, occ)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), offlineQuote{
				RateResult: rr,
				Totals:     pricing.Recalculate(rr.Subtotal, nil, cfg.VATRate),
				VATRate:    cfg.VATRate,
			})
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "pricing config JSON file (defaults to the global config)")
	cmd.Flags().StringVar(&vehicle, "vehicle", string(model.VehicleCar), "vehicle type")
	cmd.Flags().StringVar(&startRaw, "start", "", "interval start, RFC 3339")
	cmd.Flags().IntVar(&minutes, "minutes", 60, "interval duration in minutes")
	cmd.Flags().Float64Var(&occupancy, "occupancy", 0, "live zone occupancy in percent")
	cmd.Flags().StringVar(&timeZone, "tz", "UTC", "time zone for time-of-day rules")
	_ = cmd.MarkFlagRequired("start")

	return cmd
}

func pricingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pricing",
		Short: "Inspect and edit hierarchical pricing",
	}

	var parentPath, overridePath string
	inherit := &cobra.Command{
		Use:   "inherit",
		Short: "Print a child config derived from a parent config and a partial override",
		RunE: func(cmd *cobra.Command, args []string) error {
			parent := pricing.DefaultPricing()
			if parentPath != "" {
				if err := readJSON(parentPath, &parent); err != nil {
					return err
				}
			}
			var override pricing.PricingOverride
			if err := readJSON(overridePath, &override); err != nil {
				return err
			}

			child := pricing.InheritPricing(parent, override)
			if err := pricing.Validate(child); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), child)
		},
	}
	inherit.Flags().StringVar(&parentPath, "parent", "", "parent pricing config JSON file")
	inherit.Flags().StringVar(&overridePath, "override", "", "override JSON file")
	_ = inherit.MarkFlagRequired("override")

	var showSpot string
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective pricing of a spot",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepo()
			if err != nil {
				return err
			}
			defer repo.Close()

			cfg, err := pricing.NewService(repo, nil, nil, time.UTC).EffectivePricing(cmd.Context(), showSpot)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cfg)
		},
	}
	show.Flags().StringVar(&showSpot, "spot", "", "spot id")
	_ = show.MarkFlagRequired("spot")

	var setSpot, setPath string
	set := &cobra.Command{
		Use:   "set",
		Short: "Store a spot-level pricing config, or clear it when --config is omitted",
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg *model.PricingConfig
			if setPath != "" {
				cfg = &model.PricingConfig{}
				if err := readJSON(setPath, cfg); err != nil {
					return err
				}
				if err := pricing.Validate(*cfg); err != nil {
					return err
				}
			}

			repo, err := openRepo()
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := repo.SetSpotPricing(cmd.Context(), setSpot, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pricing updated for spot %s\n", setSpot)
			return nil
		},
	}
	set.Flags().StringVar(&setSpot, "spot", "", "spot id")
	set.Flags().StringVar(&setPath, "config", "", "pricing config JSON file")
	_ = set.MarkFlagRequired("spot")

	cmd.AddCommand(inherit, show, set)
	return cmd
}

func spotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spot",
		Short: "Manage spot status",
	}

	release := &cobra.Command{
		Use:   "release <spot-id>",
		Short: "Return a spot to available and drop its holds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepo()
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := availability.NewManager(repo, nil, zap.NewNop(), 0).ReleaseSpot(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "spot %s released\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(release)
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		userID     string
		userType   string
		operatorID string
		ttl        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a bearer token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.AuthSecret == "" {
				return fmt.Errorf("AUTH_SECRET is not set")
			}

			token, err := middleware.NewAuthMiddleware(cfg.AuthSecret).Issue(model.Identity{
				UserID:     userID,
				UserType:   userType,
				OperatorID: operatorID,
			}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id (token subject)")
	cmd.Flags().StringVar(&userType, "type", model.UserTypeUser, "user type: user, host, operator or admin")
	cmd.Flags().StringVar(&operatorID, "operator", "", "operator id for operator tokens")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
