package main

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/KirkDiggler/errtransform/internal/errors"
)

const envPrefix = "ERRTRANSFORM"

// app carries state shared by every subcommand
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *Config
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "errtransform",
		Short: "Classify errors with declarative rules",
		Long: `errtransform maps errors to the kinds callers should see, using rules
declared per group in a YAML file.

It can classify a single error from the command line, serve the rules as
gRPC interceptors, and list the error reports recorded in Redis.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.ErrOrStderr())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default: ./errtransform.yaml)")
	flags.String("rules", "", "rules file")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", "text", "Log format (text, json)")
	flags.StringSlice("redis-addr", nil, "redis addresses of the report store")

	a.bind("rules", flags.Lookup("rules"))
	a.bind("log.level", flags.Lookup("log-level"))
	a.bind("log.format", flags.Lookup("log-format"))
	a.bind("redis.addrs", flags.Lookup("redis-addr"))

	root.AddCommand(
		a.newClassifyCmd(),
		a.newServeCmd(),
		a.newReportsCmd(),
	)
	return root
}

func (a *app) init(logOut io.Writer) error {
	setDefaults(a.v)

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.SetConfigName("errtransform")
		a.v.SetConfigType("yaml")
		a.v.AddConfigPath(".")
	}

	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || a.cfgFile != "" {
			return errors.Wrap(err, "failed to read config file")
		}
	}

	cfg, err := loadConfig(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.logger = newLogger(cfg.Log, logOut)
	slog.SetDefault(a.logger)
	return nil
}

func (a *app) bind(key string, flag *pflag.Flag) {
	if err := a.v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

func newLogger(cfg LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	}))
}
