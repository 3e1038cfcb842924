//go:build cgo

package dialects

import (
	"database/sql/driver"
	"errors"

	"github.com/mattn/go-sqlite3"
)

func init() {
	cgoErrorInfo = func(err error) (ErrorInfo, bool) {
		var liteErr sqlite3.Error
		if !errors.As(err, &liteErr) {
			return ErrorInfo{}, false
		}
		return ErrorInfo{Code: int(liteErr.ExtendedCode), Message: liteErr.Error()}, true
	}
	cgoOwns = func(drv driver.Driver) bool {
		_, ok := drv.(*sqlite3.SQLiteDriver)
		return ok
	}
}
