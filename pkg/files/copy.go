package files

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

// CopyFile copies src to dst, truncating dst and keeping src's permissions.
func CopyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, "failed to open source file")
	}
	defer sourceFile.Close()

	stat, err := sourceFile.Stat()
	if err != nil {
		return errors.Wrap(err, "failed to stat source file")
	}
	destFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, stat.Mode().Perm())
	if err != nil {
		return errors.Wrap(err, "failed to create destination file")
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return errors.Wrap(err, "failed to copy data")
	}
	if err := destFile.Chmod(stat.Mode().Perm()); err != nil {
		return errors.Wrap(err, "failed to chmod destination file")
	}
	return destFile.Sync()
}
