package ports

import (
	"context"

	"github.com/varietal/varietal/internal/types"
)

// RepodataPort fetches and parses one channel/subdir's repodata.json,
// merging .tar.bz2 and .conda entries into a single package view.
type RepodataPort interface {
	Fetch(ctx context.Context, channel string, subdir string) (types.RepodataChannel, error)
}

// ArchiveFetchPort downloads a package archive's bytes for a given
// channel, subdir, and file name.
type ArchiveFetchPort interface {
	FetchArchive(ctx context.Context, channel string, subdir string, fileName string) ([]byte, error)
}
