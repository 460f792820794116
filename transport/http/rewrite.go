package http

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	"github.com/facilityworks/sessionkit/core"
)

// rewriteNetError turns opaque dial and TLS failures into descriptive
// errors. Diagnostic only: credential state is never touched here.
func rewriteNetError(err error) error {
	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return fmt.Errorf("%w: %v", core.ErrSchemeMismatch, err)
	}
	// net/http reports an https:// URL answered by a plain HTTP server with
	// a bare error string, so match on it.
	if strings.Contains(err.Error(), "server gave HTTP response to HTTPS client") {
		return fmt.Errorf("%w: %v", core.ErrSchemeMismatch, err)
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return fmt.Errorf("%w: %v", core.ErrBackendUnreachable, err)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Errorf("%w: %v", core.ErrBackendUnreachable, err)
	}

	return err
}
