package client

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/prepvault/storefront/internal/config"
)

// fakeClamd answers a single INSTREAM session with reply.
func fakeClamd(t *testing.T, reply string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		r := bufio.NewReader(conn)
		if _, err := r.ReadString('\n'); err != nil {
			return
		}
		for {
			var size uint32
			if err := binary.Read(r, binary.BigEndian, &size); err != nil {
				return
			}
			if size == 0 {
				break
			}
			if _, err := io.CopyN(io.Discard, r, int64(size)); err != nil {
				return
			}
		}
		_, _ = conn.Write([]byte(reply))
	}()

	return "tcp://" + ln.Addr().String()
}

func TestClamAVScanInfected(t *testing.T) {
	addr := fakeClamd(t, "stream: Eicar-Test-Signature FOUND\n")
	scanner := NewClamAVScanner(config.ScannerConfig{Address: addr, Timeout: 5 * time.Second})

	result, err := scanner.Scan(context.Background(), []byte("X5O!P%@AP"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Infected {
		t.Fatalf("expected infected verdict")
	}
}

func TestClamAVScanClean(t *testing.T) {
	addr := fakeClamd(t, "stream: OK\n")
	scanner := NewClamAVScanner(config.ScannerConfig{Address: addr, Timeout: 5 * time.Second})

	result, err := scanner.Scan(context.Background(), []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Infected {
		t.Fatalf("expected clean verdict")
	}
}

func TestClamAVScanUnavailable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	scanner := NewClamAVScanner(config.ScannerConfig{Address: "tcp://" + addr, Timeout: 2 * time.Second})
	if _, err := scanner.Scan(context.Background(), []byte("%PDF-1.4")); !errors.Is(err, ErrScannerUnavailable) {
		t.Fatalf("expected ErrScannerUnavailable, got %v", err)
	}
}

func TestClamAVScanErrorLineIsNotClean(t *testing.T) {
	addr := fakeClamd(t, "stream: INSTREAM size limit exceeded ERROR\nstream: OK\n")
	scanner := NewClamAVScanner(config.ScannerConfig{Address: addr, Timeout: 5 * time.Second})

	result, err := scanner.Scan(context.Background(), []byte("%PDF-1.4"))
	if !errors.Is(err, ErrScannerUnavailable) {
		t.Fatalf("expected ErrScannerUnavailable, got %v", err)
	}
	if result != nil {
		t.Fatalf("expected no verdict, got %+v", result)
	}
}
