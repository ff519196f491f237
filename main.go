package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/auth"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/catalog"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/models"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "ecofarm",
		Short:        "EcoFarming mission and reputation engine",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newCatalogCmd(), newTokenCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server, the verification worker, or both",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch mode {
			case "api", "worker", "all":
			default:
				return fmt.Errorf("invalid run mode %q: want api, worker or all", mode)
			}
			return serve(cmd.Context(), mode)
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", "all", "Run mode: 'api', 'worker' (verification and badge tasks), 'all'")
	return cmd
}

type cropPipeline struct {
	Crop   string                 `yaml:"crop"`
	Name   string                 `yaml:"name"`
	Stages []models.PipelineStage `yaml:"stages"`
}

func newCatalogCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "catalog [crop]",
		Short: "Print crop pipelines as YAML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.FromDir(dir)
			if err != nil {
				return err
			}
			crops := cat.Crops()
			if len(args) == 1 {
				crops = args[:1]
			}
			out := make([]cropPipeline, 0, len(crops))
			for _, crop := range crops {
				name, stages, ok := cat.Pipeline(crop)
				if !ok {
					return fmt.Errorf("no pipeline for crop %q", crop)
				}
				out = append(out, cropPipeline{Crop: crop, Name: name, Stages: stages})
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", os.Getenv("CATALOG_DIR"), "Catalog directory (defaults to the embedded catalog)")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		userID string
		role   string
		secret string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			if secret == "" {
				return fmt.Errorf("--secret or JWT_SECRET is required")
			}
			r := models.Role(role)
			if !r.Valid() {
				return fmt.Errorf("invalid role %q", role)
			}
			token, err := auth.GenerateJWT(userID, r, secret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User id to put in the token")
	cmd.Flags().StringVar(&role, "role", string(models.RoleFarmer), "Role: farmer, institution or admin")
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "HMAC signing secret")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	return cmd
}
