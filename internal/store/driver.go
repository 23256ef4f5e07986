package store

import (
	"database/sql"
	"regexp"
	"sync"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/svcstore/internal/querysql"
)

// driverName is go-sqlite3 with the functions compiled queries call.
const driverName = "sqlite3_svcstore"

var (
	registerOnce sync.Once
	patterns     sync.Map // pattern string -> *regexp.Regexp
)

func registerDriver() {
	registerOnce.Do(func() {
		sql.Register(driverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				return conn.RegisterFunc(querysql.RegexpFunc, matchRegexp, true)
			},
		})
	})
}

// matchRegexp backs regexp(pattern, value). Patterns are Go regexp syntax
// with inline flags, as produced by queryir.
func matchRegexp(pattern, value string) (bool, error) {
	if re, ok := patterns.Load(pattern); ok {
		return re.(*regexp.Regexp).MatchString(value), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, err
	}
	patterns.Store(pattern, re)
	return re.MatchString(value), nil
}
