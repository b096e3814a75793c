package stager

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/zeebo/xxh3"
)

// treeDigest hashes the structure, modes, symlink targets and file contents
// below root. Modification times are not part of the digest.
func treeDigest(fs afero.Fs, root string) (string, error) {
	h := xxh3.New()
	var mode [4]byte

	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		h.WriteString(filepath.ToSlash(rel))
		h.Write([]byte{0})
		binary.LittleEndian.PutUint32(mode[:], uint32(info.Mode()&(os.ModeType|chmodBits)))
		h.Write(mode[:])

		switch {
		case info.Mode()&os.ModeSymlink != 0:
			linker, ok := fs.(afero.LinkReader)
			if !ok {
				return fmt.Errorf("cannot read symlink %s on %s", path, fs.Name())
			}
			target, err := linker.ReadlinkIfPossible(path)
			if err != nil {
				return err
			}
			h.WriteString(target)
		case info.Mode().IsRegular():
			f, err := fs.Open(path)
			if err != nil {
				return err
			}
			_, err = io.Copy(h, f)
			f.Close()
			if err != nil {
				return err
			}
		}
		h.Write([]byte{0})
		return nil
	})
	if err != nil {
		return "", err
	}
	sum := h.Sum128().Bytes()
	return fmt.Sprintf("%x", sum), nil
}
