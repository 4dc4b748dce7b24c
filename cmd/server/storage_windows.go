//go:build windows

package main

import (
	"os"
)

// getFileSize returns a file's size in bytes. Windows does not expose
// block-level allocation through os.FileInfo, so sparse BadgerDB value
// logs may overreport here.
func getFileSize(info os.FileInfo) int64 {
	return info.Size()
}
