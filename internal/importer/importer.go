package importer

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/bakery-pos/internal/domain/discount"
)

// Store persists imported definitions.
type Store interface {
	// Upsert inserts or updates def keyed by its coupon code and sets def.ID.
	Upsert(ctx context.Context, def *discount.Definition) error
	// CouponCodes lists every stored coupon code.
	CouponCodes(ctx context.Context) ([]string, error)
}

// Invalidator drops cached definitions after they change.
type Invalidator interface {
	InvalidateCodes(ctx context.Context, codes ...string) error
	InvalidateIDs(ctx context.Context, ids ...int64) error
}

// Options tune Run.
type Options struct {
	// Parallel bounds concurrently read files. Defaults to GOMAXPROCS.
	Parallel int
	// SkipExisting rejects codes already stored instead of updating them.
	SkipExisting bool
	// DryRun stops after planning.
	DryRun bool
	// Invalidator, if set, is told about every written definition.
	Invalidator Invalidator
}

// Summary reports what Run did.
type Summary struct {
	Files    int
	Lines    int
	Inserted int
	Updated  int
	Rejected []Rejection
}

// Run reads paths concurrently, plans the import and writes the accepted
// definitions to store.
func Run(ctx context.Context, store Store, paths []string, opts Options) (*Summary, error) {
	if len(paths) == 0 {
		return nil, errors.New("no input files")
	}
	parallel := opts.Parallel
	if parallel <= 0 {
		parallel = runtime.GOMAXPROCS(0)
	}

	files := make([]*File, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, path := range paths {
		g.Go(func() error {
			f, err := ReadFile(gctx, path)
			if err != nil {
				return err
			}
			files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "read exports")
	}

	codes, err := store.CouponCodes(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load stored coupon codes")
	}
	plan := Build(files, NewExisting(codes), opts.SkipExisting)

	sum := &Summary{Files: len(files), Rejected: plan.Rejected}
	for _, f := range files {
		sum.Lines += f.Lines
	}
	if opts.DryRun {
		sum.Updated = plan.Updates
		sum.Inserted = len(plan.Accepted) - plan.Updates
		return sum, nil
	}

	written := make([]string, 0, len(plan.Accepted))
	ids := make([]int64, 0, len(plan.Accepted))
	var werr error
	for i := range plan.Accepted {
		def := plan.Accepted[i].Def
		if err := store.Upsert(ctx, &def); err != nil {
			werr = errors.Wrapf(err, "%s:%d", plan.Accepted[i].File, plan.Accepted[i].Line)
			break
		}
		written = append(written, def.CouponCode)
		ids = append(ids, def.ID)
	}

	// Rows upserted before a failure are already committed, so their cache
	// entries are dropped either way.
	ierr := invalidate(context.WithoutCancel(ctx), opts.Invalidator, written, ids)
	if werr != nil {
		if ierr != nil {
			return sum, errors.Errorf("%w (%v)", werr, ierr)
		}
		return sum, werr
	}
	if ierr != nil {
		return sum, ierr
	}

	sum.Updated = plan.Updates
	sum.Inserted = len(written) - plan.Updates
	return sum, nil
}

func invalidate(ctx context.Context, inv Invalidator, codes []string, ids []int64) error {
	if inv == nil || len(codes) == 0 {
		return nil
	}
	if err := inv.InvalidateCodes(ctx, codes...); err != nil {
		return errors.Wrap(err, "invalidate cached codes")
	}
	if err := inv.InvalidateIDs(ctx, ids...); err != nil {
		return errors.Wrap(err, "invalidate cached ids")
	}
	return nil
}
