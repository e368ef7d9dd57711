package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/digitalcollections/fcrepo-migrate/cmd/util"
	"github.com/digitalcollections/fcrepo-migrate/pkg/logger"
)

const (
	orphanListFlag    = "orphan-list"
	deleteTimeoutFlag = "timeout"
	retryMaxFlag      = "retry-max"
)

// NewRemoveOrphansCommand returns the command that deletes orphaned
// repository objects over HTTP.
func NewRemoveOrphansCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove-orphans",
		Short: "Delete orphaned repository objects listed in a file",
		Long: `The remove-orphans command reads a file of object URIs, one per line, and
issues an HTTP DELETE plus tombstone DELETE for each. Objects already gone
are logged and skipped; other failures are logged and the run continues.`,
		RunE: runRemoveOrphans,
		Args: cobra.NoArgs,
		PreRun: func(cmd *cobra.Command, args []string) {
			flags := cmd.Flags()

			util.MustBindPFlag(orphanListFlag, flags.Lookup(orphanListFlag))
			util.MustBindPFlag(deleteTimeoutFlag, flags.Lookup(deleteTimeoutFlag))
			util.MustBindPFlag(retryMaxFlag, flags.Lookup(retryMaxFlag))
			util.MustBindPFlag(logFormatFlag, flags.Lookup(logFormatFlag))
			util.MustBindPFlag(logLevelFlag, flags.Lookup(logLevelFlag))
		},
	}

	flags := cmd.Flags()

	flags.String(orphanListFlag, "", "(required) file of orphaned object URIs, one per line")
	flags.Duration(deleteTimeoutFlag, 30*time.Second, "per-object overall delete timeout")
	flags.Int(retryMaxFlag, 3, "maximum HTTP retries per request")
	flags.String(logFormatFlag, "text", "the log format to output logs in ('text' or 'json')")
	flags.String(logLevelFlag, "info", "the log level to use")

	// NOTE: if you add a new flag here, add the binding in PreRun

	return cmd
}

func runRemoveOrphans(_ *cobra.Command, _ []string) error {
	log, err := logger.NewLogger(viper.GetString(logFormatFlag), viper.GetString(logLevelFlag))
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() {
		_ = log.Sync()
	}()

	listPath := viper.GetString(orphanListFlag)
	if listPath == "" {
		return fmt.Errorf("%s is required", orphanListFlag)
	}
	f, err := os.Open(listPath)
	if err != nil {
		return fmt.Errorf("open orphan list %s: %w", listPath, err)
	}
	defer f.Close()

	client := retryablehttp.NewClient()
	client.RetryMax = viper.GetInt(retryMaxFlag)
	client.Logger = nil

	timeout := viper.GetDuration(deleteTimeoutFlag)
	var deleted, gone, failed int

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		uri := strings.TrimSpace(scanner.Text())
		if uri == "" || strings.HasPrefix(uri, "#") {
			continue
		}

		switch err := deleteObject(client, uri, timeout); {
		case err == nil:
			deleted++
			log.Debug("object deleted", zap.String("uri", uri))
		case errAlreadyGone(err):
			gone++
			log.Info("object already gone", zap.String("uri", uri))
		default:
			failed++
			log.Error("object delete failed", zap.String("uri", uri), zap.Error(err))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read orphan list %s: %w", listPath, err)
	}

	log.Info("orphan removal complete",
		zap.Int("deleted", deleted),
		zap.Int("already_gone", gone),
		zap.Int("failed", failed))
	if failed > 0 {
		return fmt.Errorf("%d of %d objects failed to delete", failed, deleted+gone+failed)
	}
	return nil
}

type goneError struct{ uri string }

func (e *goneError) Error() string { return fmt.Sprintf("%s: already gone", e.uri) }

func errAlreadyGone(err error) bool {
	var gone *goneError
	return errors.As(err, &gone)
}

// deleteObject removes the object and its tombstone. Repository deletes leave
// a tombstone behind that blocks identifier reuse until it is deleted too.
func deleteObject(client *retryablehttp.Client, uri string, timeout time.Duration) error {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = timeout

	return backoff.Retry(func() error {
		if err := httpDelete(client, uri); err != nil {
			return err
		}
		if err := httpDelete(client, uri+"/fcr:tombstone"); err != nil {
			// A missing tombstone means the delete fully propagated.
			if errAlreadyGone(err) {
				return nil
			}
			return err
		}
		return nil
	}, policy)
}

func httpDelete(client *retryablehttp.Client, uri string) error {
	req, err := retryablehttp.NewRequest(http.MethodDelete, uri, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("build delete request: %w", err))
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("delete %s: %w", uri, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return backoff.Permanent(&goneError{uri: uri})
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	default:
		return fmt.Errorf("delete %s: unexpected status %d", uri, resp.StatusCode)
	}
}
