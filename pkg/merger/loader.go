package merger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/johnsonice/ILA/pkg/merger/encoding"
)

// jsonRecordLoader implements RecordLoader for JSON record files with a
// bounded, fixed-delay retry around reading and parsing. The retry wrapper is
// explicit at the call site rather than hidden cross-cutting behavior, so the
// bound and delay are visible where the load happens.
type jsonRecordLoader struct {
	attempts uint
	delay    time.Duration
	decoder  encoding.Decoder
	logger   *slog.Logger
	readFile func(string) ([]byte, error) // injectable for transient-failure tests
}

// NewJSONRecordLoader creates the default RecordLoader.
func NewJSONRecordLoader(opts *Options, loggerHandler slog.Handler) RecordLoader {
	attempts := opts.RetryAttempts
	if attempts == 0 {
		attempts = DefaultRetryAttempts
	}
	delay := opts.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelayDuration
	}
	return &jsonRecordLoader{
		attempts: attempts,
		delay:    delay,
		decoder:  encoding.NewCharsetDecoder(opts.DefaultEncoding),
		logger:   slog.New(loggerHandler).With(slog.String("component", "loader")),
		readFile: os.ReadFile,
	}
}

// Load parses one record file. A top-level value that is not a list yields an
// empty result with a warning (record loss is silent by design). I/O and parse
// errors are retried up to the attempt bound with a fixed delay; exhausted
// retries are fatal for this file only. A list element that is not an object
// fails immediately without retry.
func (l *jsonRecordLoader) Load(ctx context.Context, path string) ([]Record, error) {
	name := filepath.Base(path)
	var records []Record

	op := func() error {
		raw, err := l.readFile(path)
		if err != nil {
			l.logger.Warn("Error reading record file", slog.String("file", name), slog.String("error", err.Error()))
			return err
		}
		content, encName, err := l.decoder.DecodeToUTF8(raw)
		if err != nil {
			l.logger.Warn("Error decoding record file", slog.String("file", name), slog.String("error", err.Error()))
			return err
		}
		if encName != "utf-8" {
			l.logger.Debug("Transcoded record file", slog.String("file", name), slog.String("from", encName))
		}

		var top any
		if err := json.Unmarshal(content, &top); err != nil {
			l.logger.Warn("Error parsing record file", slog.String("file", name), slog.String("error", err.Error()))
			return err
		}
		list, ok := top.([]any)
		if !ok {
			l.logger.Warn("Top-level value is not a list, skipping", slog.String("file", name))
			records = nil
			return nil
		}

		out := make([]Record, 0, len(list))
		for i, el := range list {
			obj, ok := el.(map[string]any)
			if !ok {
				return backoff.Permanent(fmt.Errorf("%w: element %d in %s", ErrMalformedRecord, i, name))
			}
			out = append(out, Record(obj))
		}
		records = out
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(l.delay), uint64(l.attempts-1)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		if errors.Is(err, ErrMalformedRecord) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrLoadFailed, name, l.attempts, err)
	}
	return records, nil
}
