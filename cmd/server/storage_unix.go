//go:build !windows

package main

import (
	"os"
	"syscall"
)

// getFileSize returns a file's actual disk usage in bytes. BadgerDB
// preallocates sparse value-log files, so logical size would overreport.
func getFileSize(info os.FileInfo) int64 {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if ok {
		// Blocks are 512 bytes on Unix systems
		return stat.Blocks * 512
	}
	return info.Size()
}
