package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// isAlreadyRun reports whether the pid file names a live process.
func isAlreadyRun(path string) bool {
	pidStr, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Can not read pid file", "path", path, "error", err)
		}
		return false
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(pidStr)))
	if err != nil || pid <= 0 {
		slog.Warn("Invalid existing pid file", "path", path, "error", err)
		return false
	}
	if pid == os.Getpid() {
		return false
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func writeLockFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(f, "%d", os.Getpid()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
