package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/catalystwells/grantd/internal/config"
	"github.com/catalystwells/grantd/internal/observability/logger"
)

// version se pisa en build: -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootFlags struct {
	envFile    string
	configPath string
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}

	root := &cobra.Command{
		Use:           "grantd",
		Short:         "Token endpoint OAuth2 (authorization_code, refresh_token, client_credentials)",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env es opcional; nunca pisa variables ya presentes en el entorno.
			if f.envFile != "" {
				if err := godotenv.Load(f.envFile); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("env file %s: %w", f.envFile, err)
				}
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&f.envFile, "env-file", ".env", "ruta a .env (se ignora si no existe)")
	root.PersistentFlags().StringVar(&f.configPath, "config", os.Getenv("GRANTD_CONFIG"), "ruta a config.yaml (env GRANTD_CONFIG); vacío => solo env")

	root.AddCommand(
		newServeCmd(f),
		newMigrateCmd(f),
		newHashSecretCmd(),
		newInspectCmd(f),
	)
	return root
}

// loadConfig carga la config e inicializa el logger global con ella.
func loadConfig(f *rootFlags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.App.LogLevel,
		ServiceName: "grantd",
		Version:     version,
	})
	return cfg, nil
}
