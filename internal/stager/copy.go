package stager

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

const chmodBits = os.ModePerm | os.ModeSetuid | os.ModeSetgid | os.ModeSticky

type treeStats struct {
	files int
	bytes int64
}

type dirAttrs struct {
	path  string
	mode  os.FileMode
	mtime time.Time
}

// copyTree copies srcDir to dstDir, which must not exist yet. Modes, symlinks
// and modification times are preserved. Directory modes are applied after
// their contents are written so read-only trees can still be copied.
func copyTree(fs afero.Fs, srcDir, dstDir string) (treeStats, error) {
	var stats treeStats
	var dirs []dirAttrs

	err := afero.Walk(fs, srcDir, func(srcPath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(srcDir, srcPath)
		if err != nil {
			return err
		}
		dstPath := filepath.Join(dstDir, relPath)

		switch info.Mode() & os.ModeType {
		case 0:
			if err := copyFile(fs, srcPath, dstPath, info); err != nil {
				return err
			}
			stats.files++
			stats.bytes += info.Size()

		case os.ModeDir:
			if err := fs.Mkdir(dstPath, 0700); err != nil {
				return err
			}
			dirs = append(dirs, dirAttrs{dstPath, info.Mode() & chmodBits, info.ModTime()})

		case os.ModeSymlink:
			linker, ok := fs.(afero.Symlinker)
			if !ok {
				return fmt.Errorf("%s is a symlink but %s cannot create symlinks", srcPath, fs.Name())
			}
			target, err := linker.ReadlinkIfPossible(srcPath)
			if err != nil {
				return err
			}
			if err := linker.SymlinkIfPossible(target, dstPath); err != nil {
				return err
			}
			stats.files++

		default:
			return fmt.Errorf("unknown file type for %s", srcPath)
		}

		return nil
	})
	if err != nil {
		return stats, err
	}

	// Walk order is parent first; children get their final mode first.
	for i := len(dirs) - 1; i >= 0; i-- {
		d := dirs[i]
		if err := fs.Chmod(d.path, d.mode); err != nil {
			return stats, err
		}
		if err := fs.Chtimes(d.path, d.mtime, d.mtime); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

func copyFile(fs afero.Fs, src, dst string, info os.FileInfo) error {
	in, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	if err := fs.Chmod(dst, info.Mode()&chmodBits); err != nil {
		return err
	}
	return fs.Chtimes(dst, info.ModTime(), info.ModTime())
}

// removeAll deletes path. If the first attempt fails, typically on a tree
// containing read-only directories, everything below path is made owner
// writable and the removal is retried once.
func removeAll(fs afero.Fs, path string) error {
	err := fs.RemoveAll(path)
	if err == nil {
		return nil
	}
	_ = afero.Walk(fs, path, func(p string, info os.FileInfo, err error) error {
		if err == nil && info.IsDir() {
			_ = fs.Chmod(p, info.Mode()&chmodBits|0700)
		}
		return nil
	})
	return fs.RemoveAll(path)
}
