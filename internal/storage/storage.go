package storage

import (
	"fmt"

	"github.com/spf13/afero"
)

// Handler persists what a fuzzing run produces so it survives the trial
// container.
type Handler interface {
	// SavePayload copies a crashing or hanging input into storage and
	// returns where it was stored.
	SavePayload(source string) (string, error)
	// ArchiveCorpus stores dir as the seq'th corpus archive.
	ArchiveCorpus(dir string, seq int) (string, error)
	Root() string
}

// Init sets up the storage solution named by solution rooted at root.
func Init(fs afero.Fs, solution, root string) (Handler, error) {
	switch solution {
	case "", "local":
		return NewLocal(fs, root)
	default:
		return nil, fmt.Errorf("invalid storage solution %q", solution)
	}
}
