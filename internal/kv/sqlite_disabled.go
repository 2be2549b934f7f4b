//go:build !sqlite
// +build !sqlite

package kv

import (
	"errors"

	logx "github.com/frkrmn/speed-test/pkg/logx"
)

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	_ = cfg
	_ = log
	return nil, errors.New("sqlite kv not built: build with -tags sqlite")
}
