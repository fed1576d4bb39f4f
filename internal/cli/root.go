package cli

import (
	"context"
	"fmt"

	"resumeform/internal/config"
	"resumeform/internal/errors"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Define custom private types for context keys.
type configKeyType struct{}
type loggerKeyType struct{}
type loaderKeyType struct{}

// Use variables of these types as the keys.
var configKey = configKeyType{}
var loggerKey = loggerKeyType{}
var loaderKey = loaderKeyType{}

var configFile string

var rootCmd = &cobra.Command{
	Use:   "resumeform",
	Short: "Submit resumes to an ATS analysis service",
	Long: `Resumeform uploads a resume together with a job description to a remote
analysis service and shows the returned ATS score breakdown. Use it one-shot
from scripts, interactively in a terminal, or as a browser form with serve.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadRuntime,
}

// flagBinding ties a command flag to a configuration key
type flagBinding struct {
	key  string
	flag *pflag.Flag
}

var flagBindings []flagBinding

// bindFlag records that flagName on flags overrides key once Execute binds a viper instance
func bindFlag(flags *pflag.FlagSet, key, flagName string) {
	flag := flags.Lookup(flagName)
	if flag == nil {
		panic(fmt.Sprintf("flag %q not defined", flagName))
	}
	flagBindings = append(flagBindings, flagBinding{key: key, flag: flag})
}

var activeViper *viper.Viper

// Execute binds command flags to v and runs the command line. Configuration
// is loaded through v so flags override file and environment values.
func Execute(ctx context.Context, v *viper.Viper) error {
	for _, b := range flagBindings {
		if err := v.BindPFlag(b.key, b.flag); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", b.flag.Name, err)
		}
	}
	activeViper = v

	rootCmd.SetContext(ctx)
	return rootCmd.Execute()
}

// loadRuntime loads configuration, applies Vault secrets and creates the logger
func loadRuntime(cmd *cobra.Command, args []string) error {
	v := activeViper
	if v == nil {
		v = viper.New()
	}

	loader := config.NewLoader(v)
	if configFile != "" {
		loader.SetConfigFile(configFile)
	}

	cfg, err := loader.Load()
	if err != nil {
		return errors.NewConfigError(errors.ErrCodeInvalidConfig, "Failed to load configuration", err)
	}

	logger, err := errors.New(cfg.App.LogLevel)
	if err != nil {
		return errors.NewConfigError(errors.ErrCodeInvalidConfig, "Failed to initialize logger", err)
	}

	if err := config.ApplyVaultSecrets(cfg, logger); err != nil {
		return errors.NewConfigError(errors.ErrCodeInvalidConfig, "Failed to load secrets from Vault", err)
	}

	logger.Info("Starting resumeform",
		"version", Version,
		"command", cmd.Name(),
		"log_level", cfg.App.LogLevel,
		"endpoint", cfg.Analysis.Endpoint)

	// Attach the config and logger to the context, making them available to all subcommands
	ctx := context.WithValue(cmd.Context(), configKey, cfg)
	ctx = context.WithValue(ctx, loggerKey, logger)
	ctx = context.WithValue(ctx, loaderKey, loader)
	cmd.SetContext(ctx)
	return nil
}

// getConfigFromContext is a helper function to get config from context
func getConfigFromContext(ctx context.Context) (*config.Config, error) {
	if cfg, ok := ctx.Value(configKey).(*config.Config); ok {
		return cfg, nil
	}
	return nil, errors.NewInternalError("CONFIG_NOT_LOADED", "configuration not found in context", nil)
}

// getLoggerFromContext is a helper function to get logger from context
func getLoggerFromContext(ctx context.Context) (*errors.Logger, error) {
	if logger, ok := ctx.Value(loggerKey).(*errors.Logger); ok {
		return logger, nil
	}
	return nil, errors.NewInternalError("LOGGER_NOT_INITIALIZED", "logger not found in context", nil)
}

func getLoaderFromContext(ctx context.Context) *config.Loader {
	loader, _ := ctx.Value(loaderKey).(*config.Loader)
	return loader
}

// AlreadyReported reports whether err was shown to the user as a form alert
func AlreadyReported(err error) bool {
	return errors.HasCode(err, errors.ErrCodeMissingInput) ||
		errors.HasCode(err, errors.ErrCodeSubmissionFailed)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default searches /etc/resumeform/, $HOME/.resumeform and .)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	bindFlag(rootCmd.PersistentFlags(), "app.logLevel", "log-level")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(interactiveCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
