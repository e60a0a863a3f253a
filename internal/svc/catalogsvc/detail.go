package catalogsvc

import (
	"context"
	"fmt"
	"sync"

	"github.com/yusufsyaifudin/release/internal/entity"
	"github.com/yusufsyaifudin/release/internal/svc/ascrepo"
	"github.com/yusufsyaifudin/release/pkg/tracer"
	"github.com/yusufsyaifudin/release/pkg/validator"
	"github.com/yusufsyaifudin/ylog"
	"golang.org/x/sync/errgroup"
)

// LoadDetail fetches the app, its versions and the localized notes of every version.
// Versions whose localizations fail are skipped and reported in Failures.
func (d *DefaultService) LoadDetail(ctx context.Context, input InputLoadDetail) (out OutLoadDetail, err error) {
	ctx, span := tracer.StartSpan(ctx, "catalogsvc.LoadDetail")
	defer span.End()

	err = validator.Validate(input)
	if err != nil {
		err = fmt.Errorf("validation error, missing required field: %w", err)
		return
	}

	detail, err := d.Config.CatalogRepo.FetchAppDetail(ctx, ascrepo.InputFetchAppDetail{
		AppID:        input.AppID,
		VersionLimit: d.Config.VersionLimit,
	})
	if err != nil {
		err = fmt.Errorf("load detail of app %s: %w", input.AppID, err)
		return
	}

	allPlatforms := make([]entity.Platform, 0, len(detail.Versions))
	for _, v := range detail.Versions {
		if v.Platform != "" {
			allPlatforms = append(allPlatforms, v.Platform)
		}
	}

	versions := entity.FilterByPlatform(detail.Versions, input.Platform, entity.VersionPlatform)

	var (
		lock     sync.Mutex
		notes    = make([]*entity.ReleaseNote, len(versions))
		failures = make([]ItemFailure, 0)
		group    errgroup.Group
	)

	for i, version := range versions {
		i, version := i, version
		group.Go(func() error {
			return d.Config.Gate.Do(ctx, func(ctx context.Context) error {
				localized, _err := d.Config.CatalogRepo.FetchLocalizedNotes(ctx, ascrepo.InputFetchLocalizedNotes{
					VersionID: version.ID,
				})
				if _err != nil {
					ylog.Error(ctx, "fetch localized notes failed, version skipped",
						ylog.KV("version_id", version.ID),
						ylog.KV("error", _err),
					)

					lock.Lock()
					failures = append(failures, ItemFailure{ID: version.ID, Error: _err.Error()})
					lock.Unlock()
					return nil
				}

				notes[i] = &entity.ReleaseNote{
					ID:             version.ID,
					Version:        version.VersionString,
					Platform:       version.Platform,
					Status:         version.Status,
					ReleaseDate:    version.CreatedDate,
					LocalizedNotes: localized.Notes,
				}
				return nil
			})
		})
	}

	if err = group.Wait(); err != nil {
		err = fmt.Errorf("load release notes of app %s: %w", input.AppID, err)
		return
	}

	// keep server order of versions
	releaseNotes := make([]entity.ReleaseNote, 0, len(notes))
	for _, note := range notes {
		if note != nil {
			releaseNotes = append(releaseNotes, *note)
		}
	}

	record := entity.AppRecord{
		ID:        input.AppID,
		AppID:     detail.App.ID,
		Name:      detail.App.Name,
		BundleID:  detail.App.BundleID,
		Platforms: entity.SortedForDisplay(allPlatforms),
	}

	if len(versions) > 0 {
		current := versions[0]
		record.ID = entity.RowID(detail.App.ID, current.Platform)
		record.Status = current.Status
		record.Version = current.VersionString
		record.LastModified = current.CreatedDate
	}

	if icon, ok := d.Config.IconRepo.FetchIcon(ctx, detail.App.BundleID); ok {
		record.IconURL = icon.URL
	}

	out = OutLoadDetail{
		Detail: entity.AppDetail{
			AppRecord:       record,
			SKU:             detail.App.SKU,
			PrimaryLanguage: detail.App.PrimaryLocale,
			ReleaseNotes:    releaseNotes,
		},
		Failures: failures,
	}

	return
}
