package catalogsvc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yusufsyaifudin/release/internal/entity"
	"github.com/yusufsyaifudin/release/internal/svc/ascrepo"
	"github.com/yusufsyaifudin/release/internal/svc/iconrepo"
	"github.com/yusufsyaifudin/release/pkg/gate"
	"github.com/yusufsyaifudin/release/pkg/observe"
	"github.com/yusufsyaifudin/release/pkg/tracer"
	"github.com/yusufsyaifudin/release/pkg/validator"
	"github.com/yusufsyaifudin/ylog"
	"golang.org/x/sync/errgroup"
)

const defaultIconTimeout = 30 * time.Second

type DefaultServiceConfig struct {
	CatalogRepo  ascrepo.Repo  `validate:"required"`
	IconRepo     iconrepo.Repo `validate:"required"`
	Gate         *gate.Gate    `validate:"required"`
	AppLimit     int           `validate:"min=0"`
	VersionLimit int           `validate:"min=0"`
	IconTimeout  time.Duration `validate:"min=0"`
}

type DefaultService struct {
	Config DefaultServiceConfig

	lock       sync.Mutex
	generation uint64
	state      State
	hub        observe.Hub[State]
}

var _ Service = (*DefaultService)(nil)

func New(dep DefaultServiceConfig) (*DefaultService, error) {
	if err := validator.Validate(dep); err != nil {
		return nil, err
	}

	if dep.IconTimeout <= 0 {
		dep.IconTimeout = defaultIconTimeout
	}

	return &DefaultService{
		Config: dep,
	}, nil
}

func (d *DefaultService) Snapshot() State {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.state.clone()
}

func (d *DefaultService) Subscribe() (<-chan State, func()) {
	return d.hub.Subscribe()
}

// update mutates the state of generation gen and publishes it.
// It reports false, without touching anything, when a newer refresh has started.
func (d *DefaultService) update(gen uint64, fn func(s *State)) bool {
	d.lock.Lock()
	defer d.lock.Unlock()

	if gen != d.generation {
		return false
	}

	fn(&d.state)
	d.hub.Publish(d.state.clone())
	return true
}

func (d *DefaultService) Refresh(ctx context.Context) (out State, err error) {
	ctx, span := tracer.StartSpan(ctx, "catalogsvc.Refresh")
	defer span.End()

	d.lock.Lock()
	d.generation++
	gen := d.generation
	d.state = State{IsLoading: true}
	d.hub.Publish(d.state.clone())
	d.lock.Unlock()

	apps, err := d.Config.CatalogRepo.ListApps(ctx, ascrepo.InputListApps{Limit: d.Config.AppLimit})
	if err != nil {
		err = fmt.Errorf("refresh catalog: %w", err)
		ylog.Error(ctx, "list apps failed", ylog.KV("error", err))
		d.update(gen, func(s *State) {
			s.IsLoading = false
			s.LastError = err.Error()
		})
		out = d.Snapshot()
		return
	}

	total := len(apps.Apps)
	d.update(gen, func(s *State) {
		s.TotalApps = total
	})

	var (
		rowsLock sync.Mutex
		rows     = make([]entity.AppRecord, 0, total)
		group    errgroup.Group
	)

	for _, app := range apps.Apps {
		app := app
		group.Go(func() error {
			var appRows []entity.AppRecord
			gateErr := d.Config.Gate.Do(ctx, func(ctx context.Context) error {
				versions, _err := d.Config.CatalogRepo.ListVersions(ctx, ascrepo.InputListVersions{
					AppID: app.ID,
					Limit: d.Config.VersionLimit,
				})
				if _err != nil {
					return _err
				}

				appRows = RowsFromVersions(app, versions.Versions)
				return nil
			})

			// a failing app contributes zero rows and never aborts the batch
			var failure *ItemFailure
			if gateErr != nil {
				ylog.Error(ctx, "list versions failed, app skipped",
					ylog.KV("app_id", app.ID),
					ylog.KV("error", gateErr),
				)
				failure = &ItemFailure{ID: app.ID, Error: gateErr.Error()}
			}

			rowsLock.Lock()
			rows = append(rows, appRows...)
			rowsLock.Unlock()

			d.update(gen, func(s *State) {
				s.ProcessedApps++
				if total > 0 {
					s.Progress = float64(s.ProcessedApps) / float64(total)
				}

				if failure != nil {
					s.Failures = append(s.Failures, *failure)
				}
			})

			return nil
		})
	}

	_ = group.Wait()

	entity.SortRows(rows)

	current := d.update(gen, func(s *State) {
		s.Rows = rows
		s.IsLoading = false
		s.IsComplete = true
		s.Progress = 1
	})

	if !current {
		ylog.Info(ctx, "refresh superseded by a newer one, result dropped")
		out = State{
			Rows:       rows,
			Progress:   1,
			IsComplete: true,
			TotalApps:  total,
		}
		return
	}

	out = d.Snapshot()
	go d.backfillIcons(gen, rows)
	return
}

// backfillIcons runs after Refresh returned, so it does not use the caller context.
func (d *DefaultService) backfillIcons(gen uint64, rows []entity.AppRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), d.Config.IconTimeout)
	defer cancel()

	bundleIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		bundleIDs = append(bundleIDs, row.BundleID)
	}

	icons := d.Config.IconRepo.FetchIcons(ctx, bundleIDs)
	if len(icons) == 0 {
		return
	}

	d.update(gen, func(s *State) {
		updated := make([]entity.AppRecord, len(s.Rows))
		for i, row := range s.Rows {
			if icon, ok := icons[row.BundleID]; ok {
				row.IconURL = icon.URL
			}

			updated[i] = row
		}

		s.Rows = updated
	})
}

// RowsFromVersions emits one row per platform that has at least one version.
// Versions are in server order, so the first one seen for a platform is the most recent.
func RowsFromVersions(app ascrepo.AppSummary, versions []entity.Version) []entity.AppRecord {
	latest := make(map[entity.Platform]entity.Version)
	platforms := make([]entity.Platform, 0)
	for _, v := range versions {
		if v.Platform == "" {
			continue
		}

		if _, ok := latest[v.Platform]; ok {
			continue
		}

		latest[v.Platform] = v
		platforms = append(platforms, v.Platform)
	}

	rows := make([]entity.AppRecord, 0, len(platforms))
	for _, platform := range entity.SortedForDisplay(platforms) {
		v := latest[platform]
		rows = append(rows, entity.AppRecord{
			ID:           entity.RowID(app.ID, platform),
			AppID:        app.ID,
			Name:         app.Name,
			BundleID:     app.BundleID,
			Platforms:    []entity.Platform{platform},
			Status:       v.Status,
			Version:      v.VersionString,
			LastModified: v.CreatedDate,
		})
	}

	return rows
}
