package postgres

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
)

// Server-side codes meaning the session is gone, on top of class 08.
var transportPGCodes = map[string]struct{}{
	pgerrcode.AdminShutdown:    {},
	pgerrcode.CrashShutdown:    {},
	pgerrcode.CannotConnectNow: {},
}

// IsTransportError reports whether err means the connection itself is no
// longer usable, as opposed to a failure of one statement.
func IsTransportError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var pqe *pq.Error
	if errors.As(err, &pqe) {
		return isTransportPGCode(string(pqe.Code))
	}
	return false
}

func isTransportPGCode(code string) bool {
	if _, ok := transportPGCodes[code]; ok {
		return true
	}
	return strings.HasPrefix(code, "08")
}
