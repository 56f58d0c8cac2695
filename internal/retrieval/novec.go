//go:build !(sqlite_vec && cgo)

package retrieval

const vecEnabled = false
