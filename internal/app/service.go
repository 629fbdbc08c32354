// Package app wires the core solver and installer to their ports into
// the two use cases varietal exposes: resolving a set of specs against
// one or more channels, and installing the resolved records into a
// prefix.
package app

import (
	"context"
	"runtime"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"github.com/varietal/varietal/internal/adapters/cache"
	"github.com/varietal/varietal/internal/adapters/virtualpkg"
	"github.com/varietal/varietal/internal/core/archive"
	"github.com/varietal/varietal/internal/core/matchspec"
	"github.com/varietal/varietal/internal/core/solver"
	"github.com/varietal/varietal/internal/core/variantindex"
	"github.com/varietal/varietal/internal/installer"
	"github.com/varietal/varietal/internal/ports"
	"github.com/varietal/varietal/internal/types"
)

// Service is the struct-of-ports that backs every CLI command: a
// repodata source, an archive fetcher, and the on-disk package cache
// they feed.
type Service struct {
	Repodata ports.RepodataPort
	Archives ports.ArchiveFetchPort
	Cache    cache.Cache
	Platform string // e.g. "linux-64"; defaults to the host platform when empty
	CUDA     string // non-empty to inject the __cuda virtual package
}

// ResolveRequest names the channels and specs one solve covers.
type ResolveRequest struct {
	Channels []string
	Specs    []string
}

// ResolveResult is the solved package set plus the channel/subdir it
// was resolved against, ready for installation.
type ResolveResult struct {
	Records  []types.PackageRecord
	Platform string
}

// Resolve fetches repodata for every channel across the platform and
// noarch subdirs, injects virtual packages, and runs the solver over
// the merged index.
func (s Service) Resolve(ctx context.Context, req ResolveRequest) (ResolveResult, error) {
	platform := req.platform(s.Platform)

	var records []types.PackageRecord
	for _, channel := range req.Channels {
		for _, subdir := range []string{platform, "noarch"} {
			rd, err := s.Repodata.Fetch(ctx, channel, subdir)
			if err != nil {
				log.Ctx(ctx).Warn().Err(err).Str("channel", channel).Str("subdir", subdir).Msg("repodata fetch failed")
				continue
			}
			for _, r := range rd.Packages {
				records = append(records, r)
			}
			for _, r := range rd.CondaPackages {
				records = append(records, r)
			}
		}
	}
	if len(records) == 0 {
		return ResolveResult{}, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("no package records available from any channel")
	}

	idx := variantindex.NewIndex(records)
	for _, vpkg := range virtualpkg.ToRecords(virtualpkg.Detect(s.CUDA)) {
		idx.AddVariant(vpkg)
	}

	specs := make([]types.MatchSpec, 0, len(req.Specs))
	for _, raw := range req.Specs {
		spec, err := matchspec.Parse(raw)
		if err != nil {
			return ResolveResult{}, err
		}
		specs = append(specs, spec)
	}

	report, err := solver.Solve(idx, specs)
	if err != nil {
		return ResolveResult{}, err
	}
	for _, warning := range report.Warnings {
		log.Ctx(ctx).Warn().Msg(warning)
	}
	return ResolveResult{Records: report.Solution, Platform: platform}, nil
}

func (r ResolveRequest) platform(fallback string) string {
	if fallback != "" {
		return fallback
	}
	return hostPlatform()
}

func hostPlatform() string {
	arch := runtime.GOARCH
	switch arch {
	case "amd64":
		arch = "64"
	case "arm64":
		arch = "aarch64"
	}
	switch runtime.GOOS {
	case "linux":
		return "linux-" + arch
	case "darwin":
		return "osx-" + arch
	case "windows":
		return "win-" + arch
	default:
		return runtime.GOOS + "-" + arch
	}
}

// InstallRequest names the prefix and worker count for an Install call
// over an already-resolved record set.
type InstallRequest struct {
	Records []types.PackageRecord
	Prefix  string
	Workers int
}

// Install downloads (if not already cached), extracts, and links every
// resolved record into prefix.
func (s Service) Install(ctx context.Context, req InstallRequest) (installer.Result, error) {
	targets := make([]types.InstallTarget, 0, len(req.Records))
	for _, record := range req.Records {
		stem, format, ok := archiveStem(record)
		if !ok {
			return installer.Result{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("unrecognized archive format for " + record.Fn)
		}
		if !s.Cache.Has(stem) {
			if err := s.fetchAndExtract(ctx, record, stem, format); err != nil {
				return installer.Result{}, err
			}
		}
		targets = append(targets, types.InstallTarget{
			Record:      record,
			ArchiveFile: stem,
			CacheDir:    s.Cache.Dir,
		})
	}

	plan := installer.Plan{
		Prefix:  req.Prefix,
		Cache:   s.Cache,
		Targets: targets,
		Workers: req.Workers,
	}
	return installer.Install(ctx, plan)
}

func archiveStem(record types.PackageRecord) (string, types.PackageArchiveFormat, bool) {
	stem, format, ok := types.ArchiveFormatFromFileName(record.Fn)
	if ok {
		return stem, format, true
	}
	return "", types.FormatUnknown, false
}

func (s Service) fetchAndExtract(ctx context.Context, record types.PackageRecord, stem string, format types.PackageArchiveFormat) error {
	data, err := s.Archives.FetchArchive(ctx, record.Channel, record.Subdir, record.Fn)
	if err != nil {
		return err
	}
	tmpDir, err := s.Cache.BeginExtract(stem)
	if err != nil {
		return err
	}
	if format == types.FormatConda {
		if err := archive.ReadConda(data, tmpDir); err != nil {
			s.Cache.Abort(tmpDir)
			return err
		}
	} else {
		archivePath := tmpDir + ".download"
		if err := writeTempArchive(archivePath, data); err != nil {
			s.Cache.Abort(tmpDir)
			return err
		}
		defer removeTempArchive(archivePath)
		if err := archive.Unpack(format, archivePath, tmpDir); err != nil {
			s.Cache.Abort(tmpDir)
			return err
		}
	}
	return s.Cache.Commit(stem, tmpDir)
}
