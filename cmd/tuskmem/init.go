package main

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"

	"github.com/sandevgo/tuskmem/internal/config"
	"github.com/sandevgo/tuskmem/internal/service/ui"
	envfile "github.com/sandevgo/tuskmem/pkg/env"
	"github.com/sandevgo/tuskmem/pkg/log"
)

var initFlags struct {
	provider string
	apiKey   string
	backend  string
	dbURL    string
	force    bool
}

var initCmd = &cobra.Command{
	Use:          "init",
	Short:        "Create the runtime directory and a default .env file",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()
		logger := log.FromCtx(ctx)

		runtimePath := config.GetRuntimePath()
		if err := os.MkdirAll(runtimePath, 0o755); err != nil {
			return fmt.Errorf("failed to create runtime directory: %w", err)
		}

		envPath := config.AppConfig{RuntimePath: runtimePath}.GetEnvPath()
		if _, err := os.Stat(envPath); err == nil && !initFlags.force {
			return fmt.Errorf(".env file already exists at %s", envPath)
		}

		content, err := defaultEnvFile(initFlags.provider, initFlags.apiKey, initFlags.backend, initFlags.dbURL)
		if err != nil {
			return err
		}
		if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
			return fmt.Errorf("failed to write .env: %w", err)
		}

		logger.Info().Msgf("initialized runtime directory at: %s", runtimePath)
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", ui.UsageStyle.Render("wrote"), envPath)
		return nil
	},
}

// defaultEnvFile renders the default configuration with the given overrides.
// Empty overrides keep the defaults.
func defaultEnvFile(provider, apiKey, backend, dbURL string) (string, error) {
	appCfg := &config.AppConfig{}
	embCfg := &config.EmbeddingConfig{}
	vecCfg := &config.VectorConfig{}
	memCfg := &config.MemoryConfig{}

	// defaults only, ignoring the current process environment
	opts := env.Options{Environment: map[string]string{}}
	for _, c := range []any{appCfg, embCfg, vecCfg, memCfg} {
		if err := env.ParseWithOptions(c, opts); err != nil {
			return "", fmt.Errorf("failed to load defaults: %w", err)
		}
	}

	// resolved from the location of the .env file itself
	appCfg.RuntimePath = ""

	if provider != "" {
		embCfg.Provider = provider
	}
	if apiKey != "" {
		embCfg.APIKey = apiKey
	}
	if backend != "" {
		vecCfg.Backend = backend
	}
	if dbURL != "" {
		vecCfg.DatabaseURL = dbURL
	}

	return envfile.MarshalEnv(appCfg, embCfg, vecCfg, memCfg)
}

func init() {
	initCmd.Flags().StringVar(&initFlags.provider, "provider", "", "embedding provider: openai or hash")
	initCmd.Flags().StringVar(&initFlags.apiKey, "api-key", "", "embedding API key")
	initCmd.Flags().StringVar(&initFlags.backend, "backend", "", "vector backend: chromem or pgvector")
	initCmd.Flags().StringVar(&initFlags.dbURL, "database-url", "", "postgres URL for the pgvector backend")
	initCmd.Flags().BoolVarP(&initFlags.force, "force", "f", false, "overwrite an existing .env file")
	rootCmd.AddCommand(initCmd)
}
