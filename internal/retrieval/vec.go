//go:build sqlite_vec && cgo

package retrieval

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

// vecEnabled is set when the sqlite-vec extension is compiled in.
const vecEnabled = true

func init() {
	// Registers sqlite-vec as an auto-loaded extension for go-sqlite3.
	vec.Auto()
}
