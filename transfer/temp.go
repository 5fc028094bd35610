package transfer

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// tempPrefix marks in-progress upload files. The leading dot plus the fixed
// tag keeps temp names out of the namespace of any file a client can name
// through the resolver (client paths never produce this prefix).
const tempPrefix = ".scrivo-upload-"

// IsTempName reports whether a directory entry is an in-progress (or
// orphaned) upload temp file. Listings skip these.
func IsTempName(name string) bool {
	return strings.HasPrefix(name, tempPrefix)
}

// UploadFile is an upload destination written next to its final path and
// promoted by rename only once the whole stream arrived. Any failure path
// must call Discard, which removes the temp file.
type UploadFile struct {
	file      *os.File
	tempPath  string
	finalPath string
}

// CreateUpload opens a fresh temp file alongside finalPath. The random
// suffix keeps concurrent uploads to the same target from colliding.
func CreateUpload(finalPath string) (*UploadFile, error) {
	var suffix [4]byte
	if _, err := rand.Read(suffix[:]); err != nil {
		return nil, err
	}

	dir := filepath.Dir(finalPath)
	base := filepath.Base(finalPath)
	tempPath := filepath.Join(dir, fmt.Sprintf("%s%s-%x", tempPrefix, base, suffix))

	f, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, err
	}
	return &UploadFile{file: f, tempPath: tempPath, finalPath: finalPath}, nil
}

// Write implements io.Writer over the temp file.
func (u *UploadFile) Write(p []byte) (int, error) {
	return u.file.Write(p)
}

// Promote closes the temp file and renames it onto the final path. The
// rename is the commit point: before it the target is untouched, after it
// the target is the complete upload. An advisory lock on the temp file
// keeps a concurrent promotion of the same target honest.
func (u *UploadFile) Promote() error {
	if !tryExclusiveLock(u.file) {
		u.unlockAndClose()
		_ = os.Remove(u.tempPath)
		return fmt.Errorf("upload temp %s is locked", filepath.Base(u.tempPath))
	}
	if err := u.unlockAndClose(); err != nil {
		_ = os.Remove(u.tempPath)
		return err
	}
	if err := os.Rename(u.tempPath, u.finalPath); err != nil {
		_ = os.Remove(u.tempPath)
		return fmt.Errorf("promote upload: %w", err)
	}
	return nil
}

// Discard closes and deletes the temp file. Called on every non-success
// exit: aborted transfers, socket errors, session teardown. Idempotent
// enough to be safe from deferred cleanup after a successful Promote.
func (u *UploadFile) Discard() error {
	var result *multierror.Error
	if err := u.unlockAndClose(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := os.Remove(u.tempPath); err != nil && !os.IsNotExist(err) {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

func (u *UploadFile) unlockAndClose() error {
	if u.file == nil {
		return nil
	}
	unlockFile(u.file)
	err := u.file.Close()
	u.file = nil
	return err
}
