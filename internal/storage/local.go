package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mholt/archiver/v3"
	"github.com/spf13/afero"

	"github.com/R9295/thesis-public/internal/constants"
)

const (
	payloadDir = "payloads"
	archiveDir = "archives"
)

// Local keeps payloads and corpus archives under a directory of fs.
type Local struct {
	fs   afero.Fs
	root string
	now  func() time.Time
}

func NewLocal(fs afero.Fs, root string) (*Local, error) {
	if root == "" {
		return nil, fmt.Errorf("no storage root configured")
	}
	for _, d := range []string{payloadDir, archiveDir} {
		if err := fs.MkdirAll(filepath.Join(root, d), 0755); err != nil {
			return nil, fmt.Errorf("cannot make directory: %w", err)
		}
	}
	return &Local{fs: fs, root: root, now: time.Now}, nil
}

func (h *Local) Root() string {
	return h.root
}

// SavePayload stores source under its base name with a timestamp suffix so
// payloads with the same name never overwrite each other.
func (h *Local) SavePayload(source string) (string, error) {
	exists, err := afero.Exists(h.fs, source)
	if err != nil {
		return "", fmt.Errorf("file existence check fail: %w", err)
	}
	if !exists {
		return "", fmt.Errorf("file %s does not exist", source)
	}
	name := fmt.Sprintf("%s.%s", filepath.Base(source), h.now().UTC().Format("20060102T150405.000000000"))
	destination := filepath.Join(h.root, payloadDir, name)
	if err := h.copy(source, destination); err != nil {
		return "", err
	}
	return destination, nil
}

// ArchiveCorpus writes dir, read from the OS filesystem where the fuzzer
// keeps it, as a gzipped tarball into storage.
func (h *Local) ArchiveCorpus(dir string, seq int) (string, error) {
	tmp, err := os.MkdirTemp("", "benchfuzz-archive-")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmp)

	name := fmt.Sprintf("%s%04d.tar.gz", constants.CorpusArchivePrefix, seq)
	staged := filepath.Join(tmp, name)

	tgz := archiver.NewTarGz()
	tgz.OverwriteExisting = true
	if err := tgz.Archive([]string{dir}, staged); err != nil {
		return "", fmt.Errorf("could not compress %s: %w", dir, err)
	}

	in, err := os.Open(staged)
	if err != nil {
		return "", err
	}
	defer in.Close()

	destination := filepath.Join(h.root, archiveDir, name)
	out, err := h.fs.Create(destination)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", fmt.Errorf("error writing file: %w", err)
	}
	return destination, out.Close()
}

func (h *Local) copy(source, destination string) error {
	data, err := afero.ReadFile(h.fs, source)
	if err != nil {
		return fmt.Errorf("error reading file: %w", err)
	}
	if err := afero.WriteFile(h.fs, destination, data, 0644); err != nil {
		return fmt.Errorf("error writing file: %w", err)
	}
	return nil
}
