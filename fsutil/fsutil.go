// Package fsutil resolves client-supplied FTP paths into real filesystem
// paths confined to the server root. It is the sandbox boundary: any path
// that would step outside the root is rejected with an error instead of
// being silently clamped back inside.
package fsutil

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrEscapesRoot is returned when a path would resolve outside the server root.
var ErrEscapesRoot = errors.New("path escapes server root")

// ErrInvalidPath is returned for paths the resolver refuses to interpret,
// such as those containing NUL bytes.
var ErrInvalidPath = errors.New("invalid path")

// ResolveVirtual maps a client-supplied path to an absolute virtual path
// inside the sandbox ("/" is the server root). Relative paths resolve
// against cwd, absolute paths against the root. The result is normalized:
// "." segments dropped, ".." segments consume the previous segment. A ".."
// that would climb above "/" is an escape and yields ErrEscapesRoot.
//
// cwd must itself be an absolute virtual path; callers maintain that
// invariant by only storing values previously returned from here.
func ResolveVirtual(cwd, clientPath string) (string, error) {
	if strings.ContainsRune(clientPath, 0) {
		return "", ErrInvalidPath
	}

	p := strings.ReplaceAll(strings.TrimSpace(clientPath), "\\", "/")
	if !strings.HasPrefix(p, "/") {
		p = cwd + "/" + p
	}

	// Walk the segments with an explicit stack so that escaping ".."
	// sequences are detected rather than clamped away by a Clean call.
	var stack []string
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(stack) == 0 {
				return "", ErrEscapesRoot
			}
			stack = stack[:len(stack)-1]
		default:
			stack = append(stack, seg)
		}
	}

	if len(stack) == 0 {
		return "/", nil
	}
	return "/" + strings.Join(stack, "/"), nil
}

// Resolve maps a client-supplied path to both its virtual form and the real
// filesystem path under root. root should be an absolute filesystem path.
//
// The real path is re-checked against root after joining, mirroring the
// belt-and-braces prefix check other sandboxing filesystems do, even though
// ResolveVirtual already guarantees confinement lexically.
func Resolve(root, cwd, clientPath string) (virtual, real string, err error) {
	virtual, err = ResolveVirtual(cwd, clientPath)
	if err != nil {
		return "", "", err
	}

	rootClean := filepath.Clean(root)
	if virtual == "/" {
		return virtual, rootClean, nil
	}

	real = filepath.Join(rootClean, filepath.FromSlash(strings.TrimPrefix(virtual, "/")))
	real = filepath.Clean(real)
	if real != rootClean && !strings.HasPrefix(real, rootClean+string(filepath.Separator)) {
		return "", "", ErrEscapesRoot
	}
	return virtual, real, nil
}
