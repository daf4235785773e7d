package config

import (
	"os"
	"runtime"

	"go.uber.org/zap"

	"github.com/pacx-labs/pacx/internal/logging"
)

// ensureSecurePermissions tightens the config file to 0600. Windows does not
// support Unix permission bits, so it is a no-op there.
func ensureSecurePermissions(path string) {
	if runtime.GOOS == "windows" {
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	mode := info.Mode().Perm()
	if mode == 0o600 {
		return
	}
	if mode&0o077 != 0 {
		logging.L().Warn("relaxed permissions on config file; tightening to 0600",
			zap.String("path", path),
			zap.String("mode", mode.String()))
	}
	if err := os.Chmod(path, 0o600); err != nil {
		logging.L().Warn("could not enforce config file permissions",
			zap.String("path", path),
			zap.Error(err))
	}
}
