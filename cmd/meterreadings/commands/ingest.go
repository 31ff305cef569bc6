package commands

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/smallbiznis/meterreadings/internal/account"
	"github.com/smallbiznis/meterreadings/internal/clock"
	"github.com/smallbiznis/meterreadings/internal/reading"
	readingdomain "github.com/smallbiznis/meterreadings/internal/reading/domain"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func ingestCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Validate and store a meter reading file from disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return errors.New("--file is required")
			}

			var (
				svc readingdomain.Service
				log *zap.Logger
			)
			app := fx.New(
				infra(),
				clock.Module,
				account.Module,
				reading.Module,
				fx.Populate(&svc, &log),
				fx.NopLogger,
			)

			return runOnce(app, func(ctx context.Context) error {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()

				info, err := f.Stat()
				if err != nil {
					return err
				}

				result, err := svc.Upload(ctx, readingdomain.UploadRequest{
					FileName: filepath.Base(file),
					Size:     info.Size(),
					Content:  f,
				})
				if err != nil {
					return err
				}
				log.Info("file ingested", zap.String("upload_id", result.UploadID))

				enc := json.NewEncoder(cmd.OutOrStdout())
				return enc.Encode(result)
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "meter readings CSV")
	return cmd
}
