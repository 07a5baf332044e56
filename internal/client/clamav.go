package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dutchcoders/go-clamd"
	"github.com/prepvault/storefront/internal/config"
)

var ErrScannerUnavailable = errors.New("malware scanner unavailable")

type ScanResult struct {
	Infected  bool
	Signature string
}

// ClamAVScanner streams buffers to clamd over INSTREAM.
type ClamAVScanner struct {
	clamd   *clamd.Clamd
	timeout time.Duration
}

func NewClamAVScanner(cfg config.ScannerConfig) *ClamAVScanner {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ClamAVScanner{
		clamd:   clamd.NewClamd(cfg.Address),
		timeout: timeout,
	}
}

func (s *ClamAVScanner) Ping() error {
	if err := s.clamd.Ping(); err != nil {
		return fmt.Errorf("%w: %v", ErrScannerUnavailable, err)
	}
	return nil
}

// Scan never reports a clean result unless clamd explicitly returned OK.
func (s *ClamAVScanner) Scan(ctx context.Context, data []byte) (*ScanResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	abort := make(chan bool)
	defer close(abort)

	type outcome struct {
		result *ScanResult
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		results, err := s.clamd.ScanStream(bytes.NewReader(data), abort)
		if err != nil {
			done <- outcome{err: fmt.Errorf("%w: %v", ErrScannerUnavailable, err)}
			return
		}

		verdict := &ScanResult{}
		seen := false
		var failure error
		// results is drained to the end so the reader goroutine in clamd exits.
		for res := range results {
			seen = true
			switch res.Status {
			case clamd.RES_OK:
			case clamd.RES_FOUND:
				verdict.Infected = true
				verdict.Signature = res.Description
			default:
				if failure == nil {
					failure = fmt.Errorf("%w: %s", ErrScannerUnavailable, res.Status)
				}
			}
		}
		if failure != nil {
			done <- outcome{err: failure}
			return
		}
		if !seen {
			done <- outcome{err: fmt.Errorf("%w: empty response", ErrScannerUnavailable)}
			return
		}
		done <- outcome{result: verdict}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrScannerUnavailable, ctx.Err())
	case out := <-done:
		return out.result, out.err
	}
}
