// Package main is the entry point for the combinectl administrative CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/tulibraries/combine/internal/config"
	"github.com/tulibraries/combine/internal/scenario"
	"github.com/tulibraries/combine/internal/store"
	"github.com/tulibraries/combine/pkg/models"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "combinectl",
		Short:         "Administrative commands for the Combine control plane",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newTransformationCmd())
	cmd.AddCommand(newValidationCmd())
	cmd.AddCommand(newOAIEndpointCmd())
	return cmd
}

func newTransformationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transformation NAME TYPE PAYLOAD_URL",
		Short: "Fetch a transformation artifact by URL and upsert it by name",
		Long:  "Fetch a transformation payload by URL and create or update the named transformation. XSLT payloads are also written under the storage root for the compute session to read.",
		Example: `  # Ingest an XSLT transformation from a hosted stylesheet
  combinectl transformation mods-to-dpla xslt https://example.org/mods_to_dpla.xsl`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, pool, err := wireScenarioService(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			t, err := svc.IngestTransformation(cmd.Context(), args[0], args[1], args[2])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "transformation %q (id %d) saved\n", t.Name, t.ID)
			return nil
		},
	}
}

func newValidationCmd() *cobra.Command {
	var defaultRun bool

	cmd := &cobra.Command{
		Use:   "validation NAME TYPE PAYLOAD_URL",
		Short: "Fetch a validation scenario by URL and upsert it by name",
		Example: `  # Ingest a schematron scenario that runs on every job by default
  combinectl validation dpla-required sch https://example.org/dpla_required.sch --default-run`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, pool, err := wireScenarioService(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			v, err := svc.IngestValidationScenario(cmd.Context(), args[0], args[1], defaultRun, args[2])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "validation scenario %q (id %d) saved\n", v.Name, v.ID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&defaultRun, "default-run", false, "Run this scenario on every job by default")
	return cmd
}

func newOAIEndpointCmd() *cobra.Command {
	var scopeType, scopeValue string

	cmd := &cobra.Command{
		Use:   "oai-endpoint NAME URL METADATA_PREFIX",
		Short: "Register an OAI-PMH endpoint for harvest jobs to pull from",
		Long:  "Create an OAI-PMH endpoint row that harvest jobs reference by id. Scope flags narrow the harvest to named sets; harvest job details can override any stored value per run.",
		Example: `  # Register an endpoint harvested with the mods prefix, limited to one set
  combinectl oai-endpoint temple-dc https://digital.library.temple.edu/oai mods --scope-value p16002coll9`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, pool, err := wireStore(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			e := &models.OAIEndpoint{
				Name:           args[0],
				Endpoint:       args[1],
				Verb:           "ListRecords",
				MetadataPrefix: args[2],
				ScopeType:      scopeType,
				ScopeValue:     scopeValue,
			}
			if err := st.CreateOAIEndpoint(cmd.Context(), e); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "oai endpoint %q (id %d) saved\n", e.Name, e.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&scopeType, "scope-type", models.ScopeTypeSetList, "Scope selector type (setList, whiteList, blackList)")
	cmd.Flags().StringVar(&scopeValue, "scope-value", "", "Scope selector value, e.g. an OAI set name")
	return cmd
}

// wireStore connects to the database per the loaded config. The caller owns
// closing the returned pool.
func wireStore(ctx context.Context) (store.Store, *config.Config, interface{ Close() }, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return store.NewPostgresStore(pool), cfg, pool, nil
}

// wireScenarioService builds the artifact ingestion service on top of
// wireStore.
func wireScenarioService(ctx context.Context) (*scenario.Service, interface{ Close() }, error) {
	st, cfg, pool, err := wireStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	svc := scenario.NewService(st, cfg.Storage, nil, logger)
	return svc, pool, nil
}
