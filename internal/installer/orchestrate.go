package installer

import (
	"context"
	"sync/atomic"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/varietal/varietal/internal/adapters/cache"
	"github.com/varietal/varietal/internal/types"
)

// Plan is one prefix install: the records to link, the cache they were
// extracted into, and the target prefix directory.
type Plan struct {
	Prefix  string
	Cache   cache.Cache
	Targets []types.InstallTarget
	Workers int
}

// Result summarizes a completed install.
type Result struct {
	Linked int
}

// Install links every target into the prefix, bounding filesystem
// concurrency with a semaphore the way repo_index_builder.go bounds
// network fetch concurrency, generalized from a raw channel-based
// semaphore to golang.org/x/sync's errgroup+semaphore so the first
// real error cancels every in-flight link. The python package, if
// present among the targets, is linked first and serially so its
// PythonCell publish always happens before any noarch:python
// dependent package is processed.
func Install(ctx context.Context, plan Plan) (Result, error) {
	workers := plan.Workers
	if workers <= 0 {
		workers = 4
	}

	pythonCell := NewPythonCell()
	var pythonTarget *types.InstallTarget
	var rest []types.InstallTarget
	for i := range plan.Targets {
		t := plan.Targets[i]
		if t.Record.Name == "python" && pythonTarget == nil {
			pythonTarget = &t
			continue
		}
		rest = append(rest, t)
	}

	var linked atomic.Int64
	if pythonTarget != nil {
		n, err := linkTarget(plan, *pythonTarget, nil)
		if err != nil {
			return Result{}, err
		}
		linked.Add(int64(n))
		info, err := ParsePythonInfo(pythonTarget.Record.Version)
		if err != nil {
			return Result{}, err
		}
		pythonCell.Publish(info)
	}

	sem := semaphore.NewWeighted(int64(workers))
	group, groupCtx := errgroup.WithContext(ctx)
	for i := range rest {
		target := rest[i]
		group.Go(func() error {
			if err := sem.Acquire(groupCtx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			var python *types.PythonInfo
			if target.Record.NoArch == types.NoArchPython {
				if pythonTarget == nil {
					return errbuilder.New().
						WithCode(errbuilder.CodeFailedPrecondition).
						WithMsg("noarch: python package requires a python interpreter in the solve: " + target.Record.Name)
				}
				info := pythonCell.Wait()
				python = &info
			}
			n, err := linkTarget(plan, target, python)
			if err != nil {
				return err
			}
			linked.Add(int64(n))
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return Result{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("install failed").
			WithCause(err)
	}
	total := int(linked.Load())
	log.Ctx(ctx).Info().Int("linked", total).Str("prefix", plan.Prefix).Msg("install complete")
	return Result{Linked: total}, nil
}

func linkTarget(plan Plan, target types.InstallTarget, python *types.PythonInfo) (int, error) {
	stem := target.ArchiveFile
	paths, err := plan.Cache.ReadPaths(stem)
	if err != nil {
		return 0, err
	}
	cacheDir := plan.Cache.EntryDir(stem)
	count := 0
	for _, entry := range paths.Paths {
		if entry.PathType == types.PathTypeDirectory {
			continue
		}
		if _, err := LinkFile(cacheDir, plan.Prefix, entry, python, target.Record.NoArch); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
