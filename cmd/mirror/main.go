package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/openmirror/mirrorbox/internal/mirror"
	"github.com/openmirror/mirrorbox/internal/store"
	"github.com/openmirror/mirrorbox/internal/utils"
	"github.com/openmirror/mirrorbox/internal/version"
)

var (
	green = color.New(color.FgHiGreen).SprintFunc()
	red   = color.New(color.FgHiRed, color.Bold).SprintFunc()
	cyan  = color.New(color.FgHiCyan).SprintFunc()
)

var (
	flagOwner   string
	flagRepo    string
	flagBranch  string
	flagClean   bool
	flagMount   string
	flagWorkers int

	flagBucket   string
	flagRegion   string
	flagEndpoint string
)

var rootCmd = &cobra.Command{
	Use:     "mirror",
	Short:   "One-shot mirror of a source tree from the object store onto disk",
	Version: version.Detailed(),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		mountRoot, err := utils.ResolvePath(flagMount)
		if err != nil {
			return fmt.Errorf("resolve mount root: %w", err)
		}

		s3Config := &store.S3Config{
			BucketName: flagBucket,
			Region:     flagRegion,
			AccessKey:  os.Getenv("MIRRORBOX_S3_ACCESS_KEY"),
			SecretKey:  os.Getenv("MIRRORBOX_S3_SECRET_KEY"),
			Endpoint:   flagEndpoint,
		}
		if err := s3Config.Validate(); err != nil {
			return fmt.Errorf("s3 config: %w", err)
		}

		s3Store, err := store.NewS3StoreWithConfig(s3Config)
		if err != nil {
			return err
		}

		engine := mirror.NewEngine(s3Store, &mirror.Config{
			MountRoot: mountRoot,
			Workers:   flagWorkers,
		})
		engine.OnProgress(func(req mirror.SyncRequest, synced int64) {
			fmt.Printf("  %s %d files\n", cyan("..."), synced)
		})

		res, err := engine.Sync(cmd.Context(), mirror.SyncRequest{
			Owner:  flagOwner,
			Repo:   flagRepo,
			Branch: flagBranch,
			Clean:  flagClean,
		})
		if err != nil {
			fmt.Printf("%s %v\n", red("sync failed:"), err)
			return err
		}

		printResult(res)
		return nil
	},
}

func printResult(res *mirror.SyncResult) {
	status := green("done")
	if res.Cancelled {
		status = red("cancelled")
	}

	fmt.Printf("%s %s/%s@%s\n", status, res.Owner, res.Repo, res.Branch)
	fmt.Printf("  files:  %d\n", res.FilesSynced)
	fmt.Printf("  size:   %s (%s MB)\n", humanize.Bytes(uint64(res.TotalSizeBytes)), res.TotalSizeMB())
	fmt.Printf("  target: %s\n", res.TargetDir)
	for _, s := range res.Skipped {
		fmt.Printf("  %s %s: %s\n", red("skipped"), s.Key, s.Error)
	}
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().StringVarP(&flagOwner, "owner", "o", "", "Owner of the repository")
	rootCmd.Flags().StringVarP(&flagRepo, "repo", "r", "", "Repository name")
	rootCmd.Flags().StringVarP(&flagBranch, "branch", "b", mirror.DefaultBranch, "Branch to mirror")
	rootCmd.Flags().BoolVar(&flagClean, "clean", false, "Wipe the target subtree before mirroring (destructive)")
	rootCmd.Flags().StringVarP(&flagMount, "mount", "m", ".", "Mount root for mirrored trees")
	rootCmd.Flags().IntVarP(&flagWorkers, "workers", "w", 1, "Concurrent object downloads")
	rootCmd.Flags().StringVar(&flagBucket, "bucket", "", "Object store bucket")
	rootCmd.Flags().StringVar(&flagRegion, "region", "us-east-1", "Object store region")
	rootCmd.Flags().StringVar(&flagEndpoint, "endpoint", "", "Custom S3 endpoint (MinIO)")
}

func main() {
	_ = godotenv.Load()

	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:   slog.LevelWarn,
		NoColor: !isatty.IsTerminal(os.Stderr.Fd()),
	})
	slog.SetDefault(slog.New(handler))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
