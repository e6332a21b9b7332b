package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openmirror/mirrorbox/internal/server"
	"github.com/openmirror/mirrorbox/internal/utils"
	"github.com/openmirror/mirrorbox/internal/version"
)

var rootCmd = &cobra.Command{
	Use:     "mirrorbox-server",
	Short:   "MirrorBox sync server",
	Version: version.Detailed(),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		var config server.Config
		if err := viper.Unmarshal(&config); err != nil {
			return fmt.Errorf("config unmarshal: %w", err)
		}

		mountRoot, err := utils.ResolvePath(config.Mirror.MountRoot)
		if err != nil {
			return fmt.Errorf("resolve mount root: %w", err)
		}
		config.Mirror.MountRoot = mountRoot

		s, err := server.New(&config)
		if err != nil {
			return err
		}

		cmd.SilenceUsage = true
		defer slog.Info("Bye!")
		return s.Start(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().StringP("bind", "b", server.DefaultAddr, "Address to bind the server")
	rootCmd.Flags().StringP("mount", "m", "", "Mount root for mirrored trees")
	rootCmd.Flags().String("db", "", "Path to the sync journal database")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the config file")
}

func main() {
	// .env is optional, used for local dev against MinIO
	_ = godotenv.Load()

	setupLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func setupLogger() {
	stdoutHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})
	logFile := os.Getenv("MIRRORBOX_LOG_FILE")
	if logFile == "" {
		slog.SetDefault(slog.New(stdoutHandler))
		return
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		slog.SetDefault(slog.New(stdoutHandler))
		return
	}
	fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})

	slog.SetDefault(slog.New(utils.NewMultiLogHandler(stdoutHandler, fileHandler)))
}

func loadConfig(cmd *cobra.Command) error {
	if cmd.Flag("config").Changed {
		configFilePath, _ := cmd.Flags().GetString("config")
		viper.SetConfigFile(configFilePath)
	} else {
		viper.AddConfigPath("/etc/mirrorbox")
		viper.AddConfigPath(".")
		viper.SetConfigName("mirrorbox")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !enoent && !notFound {
			return fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.BindPFlag("http.addr", cmd.Flags().Lookup("bind"))
	viper.BindPFlag("mirror.mount_root", cmd.Flags().Lookup("mount"))
	viper.BindPFlag("db_path", cmd.Flags().Lookup("db"))

	viper.SetEnvPrefix("MIRRORBOX")
	viper.AutomaticEnv()

	return nil
}
