package cli

import (
	"context"
	"io"
	"log"

	"github.com/dunamismax/stylize/internal/config"
	"github.com/dunamismax/stylize/internal/storage"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stylize",
		Short: "Send images through the stylize backend",
		Long: `stylize drives the same upload form as the web page from the terminal.

Pick a function, set its options, attach one image and get the stylized
result back, or enqueue objects from MinIO for the batch worker.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .env is optional
			_ = godotenv.Load()
		},
	}

	cmd.AddCommand(newFunctionsCmd())
	cmd.AddCommand(newApplyCmd())
	cmd.AddCommand(newEnqueueCmd())

	return cmd
}

func newLogger(w io.Writer) *log.Logger {
	return log.New(w, "[cli] ", log.LstdFlags|log.Lmsgprefix)
}

func newObjectStore(ctx context.Context, cfg config.StorageConfig) (*storage.Client, error) {
	return storage.NewClient(ctx, storage.Config{
		Endpoint:   cfg.Endpoint,
		Access:     cfg.AccessKey,
		Secret:     cfg.SecretKey,
		Bucket:     cfg.Bucket,
		UseSSL:     cfg.UseSSL,
		PresignTTL: cfg.PresignTTL,
	})
}
