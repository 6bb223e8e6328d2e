package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dunamismax/stylize/internal/config"
	"github.com/dunamismax/stylize/internal/form"
	"github.com/dunamismax/stylize/internal/function"
	"github.com/dunamismax/stylize/internal/transform"
	"github.com/dunamismax/stylize/internal/upload"
	"github.com/spf13/cobra"
)

func newApplyCmd() *cobra.Command {
	var (
		opts      optionFlags
		input     string
		paste     bool
		objectKey string
		output    string
		backend   string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Stylize one image and write the result",
		Example: `  stylize apply --function lego --opt size=60 --input cat.jpg --output cat-lego.png
  pbpaste | stylize apply --function ascii --paste --output out.png
  stylize apply --options-file paint.yaml --object uploads/cat.png --output cat-paint.png`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger := newLogger(cmd.ErrOrStderr())
			ctx := cmd.Context()

			fnName, raw, err := opts.resolve()
			if err != nil {
				return err
			}
			if backend == "" {
				backend = cfg.Backend.URL
			}
			if timeout <= 0 {
				timeout = cfg.Backend.Timeout
			}

			client, err := transform.NewClient(transform.Config{BaseURL: backend, Timeout: timeout})
			if err != nil {
				return err
			}

			c := form.NewController(client)
			schema, err := c.Select(fnName)
			if err != nil {
				return err
			}
			inputs, err := function.InputsFor(schema, raw)
			if err != nil {
				return err
			}
			if err := c.ConfirmOptions(inputs); err != nil {
				return err
			}

			var src upload.Upload
			switch {
			case input != "":
				src, err = upload.FromFile(input)
			case paste:
				src, err = upload.FromClipboard(cmd.InOrStdin(), "clipboard")
			case objectKey != "":
				objects, storeErr := newObjectStore(ctx, cfg.Storage)
				if storeErr != nil {
					return storeErr
				}
				src, err = upload.FromObject(ctx, objects, objectKey)
			default:
				err = form.ErrNoFile
			}
			if err != nil {
				return err
			}

			if err := upload.Startup(); err != nil {
				return err
			}
			defer upload.Shutdown()

			normalizer, err := upload.NewNormalizer(cfg.Upload.MaxBytes, cfg.Upload.MaxSide, cfg.Upload.MaxPixels)
			if err != nil {
				return err
			}
			before := src.Size()
			if src, err = normalizer.Normalize(ctx, src); err != nil {
				return err
			}
			if src.Size() != before {
				logger.Printf("downscaled %s from %d to %d bytes", src.Name, before, src.Size())
			}
			if err := c.Attach(src); err != nil {
				return err
			}

			logger.Printf("sending %s to %s options=%q", src.Name, schema.Function, c.Options().Encode())
			result, err := c.Submit(ctx)
			if err != nil {
				var reqErr *form.RequestError
				if errors.As(err, &reqErr) {
					logger.Printf("transform failed: %v", reqErr.Err)
				}
				return err
			}

			if err := os.WriteFile(output, result.Data, 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, %d bytes)\n", output, result.ContentType, len(result.Data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.function, "function", "f", "", "Function to apply")
	cmd.Flags().StringArrayVar(&opts.pairs, "opt", nil, "Option as key=value (repeatable)")
	cmd.Flags().StringVar(&opts.file, "options-file", "", "YAML file with function and options")
	cmd.Flags().StringVarP(&input, "input", "i", "", "Image file to upload")
	cmd.Flags().BoolVar(&paste, "paste", false, "Read a pasted image from stdin")
	cmd.Flags().StringVar(&objectKey, "object", "", "MinIO object key to upload")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Where to write the result")
	cmd.Flags().StringVar(&backend, "backend", "", "Backend base URL (default $STYLIZE_BACKEND_URL)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Request timeout (default $STYLIZE_BACKEND_TIMEOUT)")
	cmd.MarkFlagsMutuallyExclusive("input", "paste", "object")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}
