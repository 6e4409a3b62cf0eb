package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adamwoolhether/fetchq/client"
)

// Fetch downloads rawURL through svc into destPath, expecting the given
// status code. The body streams to a temporary file in the destination
// directory and is renamed into place only after the status, optional
// checksum, and advertised content length all check out. A failed fetch
// leaves no file behind.
func Fetch(ctx context.Context, svc *client.Service, rawURL string, expCode int, destPath string, logger *slog.Logger, optFns ...Option) error {
	var opts options
	for _, optFn := range optFns {
		if err := optFn(&opts); err != nil {
			return fmt.Errorf("applying download option: %w", err)
		}
	}

	if destPath == "" {
		return ErrEmptyDest
	}
	if logger == nil {
		logger = slog.Default()
	}

	if opts.skipExisting {
		if _, err := os.Stat(destPath); err == nil {
			logger.Info("skipping existing file", "path", destPath)

			return nil
		}
	}

	file, err := os.CreateTemp(filepath.Dir(destPath), ".fetchq-dl-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	var successful bool
	defer func() {
		if !successful {
			file.Close()
			os.Remove(file.Name())
		}
	}()

	var sink io.Writer = file
	if opts.checksum != nil {
		sink = io.MultiWriter(sink, opts.checksum)
	}

	counter := &countingWriter{w: sink}
	sink = counter
	if opts.progress {
		sink = &progressWriter{w: sink, logger: logger, startTime: time.Now()}
	}

	fut, err := client.SubmitDecoded(svc, ctx, http.MethodGet, rawURL, client.ExpectStatus(expCode), client.WithBodySink(sink))
	if err != nil {
		return fmt.Errorf("submitting download: %w", err)
	}

	res, err := fut.Wait()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ErrFetchCancelled, err)
		}

		return fmt.Errorf("fetching %s: %w", rawURL, err)
	}

	if cl := res.Header["content-length"]; cl != "" {
		want, perr := strconv.ParseInt(cl, 10, 64)
		if perr == nil && counter.n != want {
			return &Error{
				Detail: fmt.Sprintf("expected %d bytes, got %d", want, counter.n),
				Err:    ErrContentLengthMismatch,
			}
		}
	}

	if err := opts.checksum.Verify(); err != nil {
		return err
	}

	if err := file.Sync(); err != nil {
		return fmt.Errorf("syncing file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing file: %w", err)
	}
	if err := os.Rename(file.Name(), destPath); err != nil {
		return fmt.Errorf("renaming file: %w", err)
	}
	successful = true

	logger.Info("download complete", "path", destPath, "bytes", counter.n)

	return nil
}
