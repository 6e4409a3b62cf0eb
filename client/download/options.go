package download

import (
	"errors"
	"hash"
)

// Option configures a single fetch.
type Option func(*options) error

type options struct {
	checksum     *checksumVerifier
	progress     bool
	skipExisting bool
}

// WithChecksum verifies the downloaded bytes against expected, the
// hex-encoded digest for the given hash.
func WithChecksum(h hash.Hash, expected string) Option {
	return func(opts *options) error {
		if h == nil {
			return errors.New("hash must not be nil")
		}
		if expected == "" {
			return errors.New("expected checksum must not be empty")
		}
		opts.checksum = &checksumVerifier{hash: h, expected: expected}

		return nil
	}
}

// WithProgress logs transfer progress while the body streams to disk.
func WithProgress() Option {
	return func(opts *options) error {
		opts.progress = true

		return nil
	}
}

// WithSkipExisting makes the fetch a no-op when the destination file
// already exists.
func WithSkipExisting() Option {
	return func(opts *options) error {
		opts.skipExisting = true

		return nil
	}
}
