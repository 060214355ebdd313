package client

import (
	"crypto/rand"
	"fmt"
	"os"

	"fshuttle/internal/logger"
)

// SizeClasses maps the named payload sizes accepted on the command line.
var SizeClasses = map[string]int64{
	"10MB":  10 << 20,
	"50MB":  50 << 20,
	"100MB": 100 << 20,
}

// EnsureDataFile makes sure a payload file of exactly size bytes exists at
// path, generating random content when missing or wrongly sized.
func EnsureDataFile(path string, size int64) error {
	if info, err := os.Stat(path); err == nil && info.Size() == size {
		return nil
	}

	logger.Info("generating %d byte data file at %s", size, path)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create data file: %w", err)
	}
	defer f.Close()

	buf := make([]byte, 1<<20)
	remaining := size
	for remaining > 0 {
		n := int64(len(buf))
		if remaining < n {
			n = remaining
		}
		if _, err := rand.Read(buf[:n]); err != nil {
			return fmt.Errorf("generate random payload: %w", err)
		}
		if _, err := f.Write(buf[:n]); err != nil {
			return fmt.Errorf("write data file: %w", err)
		}
		remaining -= n
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("flush data file: %w", err)
	}
	return nil
}
