package cli

import (
	"fmt"
	"time"

	"github.com/dunamismax/stylize/internal/config"
	"github.com/dunamismax/stylize/internal/domain"
	"github.com/dunamismax/stylize/internal/function"
	"github.com/dunamismax/stylize/internal/id"
	"github.com/dunamismax/stylize/internal/queue"
	"github.com/spf13/cobra"
)

func newEnqueueCmd() *cobra.Command {
	var (
		opts         optionFlags
		outputPrefix string
		webhookURL   string
	)

	cmd := &cobra.Command{
		Use:   "enqueue KEY...",
		Short: "Queue MinIO objects for the batch worker",
		Example: `  stylize enqueue --function squares --opt gif=false uploads/a.png uploads/b.png
  stylize enqueue --options-file lego.yaml --webhook https://example.com/hooks/stylize uploads/cat.png`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger := newLogger(cmd.ErrOrStderr())
			ctx := cmd.Context()

			fnName, raw, err := opts.resolve()
			if err != nil {
				return err
			}

			requests := make([]domain.EnqueueRequest, 0, len(args))
			for _, key := range args {
				req := domain.EnqueueRequest{
					Function:     fnName,
					Options:      raw,
					SourceKey:    key,
					OutputPrefix: outputPrefix,
					WebhookURL:   webhookURL,
				}
				if err := req.Validate(); err != nil {
					return fmt.Errorf("%s: %w", key, err)
				}
				requests = append(requests, req)
			}

			objects, err := newObjectStore(ctx, cfg.Storage)
			if err != nil {
				return err
			}
			for _, req := range requests {
				exists, err := objects.ObjectExists(ctx, req.SourceKey)
				if err != nil {
					return err
				}
				if !exists {
					return fmt.Errorf("source object is missing: %s", req.SourceKey)
				}
			}

			client := queue.NewClient(cfg.Queue.RedisClientOpt(), cfg.Queue.Name, cfg.Queue.TaskTimeout)
			defer func() {
				if err := client.Close(); err != nil {
					logger.Printf("queue client close error: %v", err)
				}
			}()

			fn, _, _ := function.Parse(fnName)
			for _, req := range requests {
				jobID := id.New()
				info, err := client.EnqueueStylizeImage(ctx, queue.StylizeImagePayload{
					JobID:       jobID,
					Function:    string(fn),
					Options:     req.Options,
					SourceKey:   req.SourceKey,
					OutputKey:   domain.OutputKeyFor(req.OutputPrefix, jobID, fn, req.SourceKey),
					WebhookURL:  req.WebhookURL,
					RequestedAt: time.Now().UTC(),
				})
				if err != nil {
					return fmt.Errorf("enqueue %s: %w", req.SourceKey, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", jobID, req.SourceKey, info.Queue)
			}
			logger.Printf("enqueued %d job(s) function=%s queue=%s", len(requests), fn, cfg.Queue.Name)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.function, "function", "f", "", "Function to apply")
	cmd.Flags().StringArrayVar(&opts.pairs, "opt", nil, "Option as key=value (repeatable)")
	cmd.Flags().StringVar(&opts.file, "options-file", "", "YAML file with function and options")
	cmd.Flags().StringVar(&outputPrefix, "output-prefix", domain.DefaultOutputPrefix, "Object prefix for results")
	cmd.Flags().StringVar(&webhookURL, "webhook", "", "URL notified when each job finishes")

	return cmd
}
