package catalogsvc_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yusufsyaifudin/release/internal/entity"
	"github.com/yusufsyaifudin/release/internal/svc/ascrepo"
	"github.com/yusufsyaifudin/release/internal/svc/iconrepo"
)

type fakeCatalog struct {
	lock          sync.Mutex
	apps          []ascrepo.AppSummary
	listAppsErr   error
	versions      map[string][]entity.Version
	versionErr    map[string]error
	localizations map[string][]entity.LocalizedReleaseNote
	localizeErr   map[string]error
	delay         time.Duration

	inFlight int64
	maxSeen  int64
}

var _ ascrepo.Repo = (*fakeCatalog)(nil)

func (f *fakeCatalog) track() func() {
	n := atomic.AddInt64(&f.inFlight, 1)
	for {
		m := atomic.LoadInt64(&f.maxSeen)
		if n <= m || atomic.CompareAndSwapInt64(&f.maxSeen, m, n) {
			break
		}
	}

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	return func() { atomic.AddInt64(&f.inFlight, -1) }
}

func (f *fakeCatalog) ListApps(ctx context.Context, in ascrepo.InputListApps) (out ascrepo.OutListApps, err error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.listAppsErr != nil {
		return out, f.listAppsErr
	}

	out.Apps = append(out.Apps, f.apps...)
	return
}

func (f *fakeCatalog) ListVersions(ctx context.Context, in ascrepo.InputListVersions) (out ascrepo.OutListVersions, err error) {
	defer f.track()()

	f.lock.Lock()
	defer f.lock.Unlock()
	if e := f.versionErr[in.AppID]; e != nil {
		return out, e
	}

	out.Versions = entity.FilterByPlatform(f.versions[in.AppID], in.Platform, entity.VersionPlatform)
	return
}

func (f *fakeCatalog) FetchAppDetail(ctx context.Context, in ascrepo.InputFetchAppDetail) (out ascrepo.OutFetchAppDetail, err error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	for _, app := range f.apps {
		if app.ID == in.AppID {
			out.App = app
			out.Versions = f.versions[in.AppID]
			return
		}
	}

	return out, &ascrepo.RemoteError{StatusCode: 404, Body: `{"errors":[{"detail":"not found"}]}`}
}

func (f *fakeCatalog) FetchLocalizedNotes(ctx context.Context, in ascrepo.InputFetchLocalizedNotes) (out ascrepo.OutFetchLocalizedNotes, err error) {
	defer f.track()()

	f.lock.Lock()
	defer f.lock.Unlock()
	if e := f.localizeErr[in.VersionID]; e != nil {
		return out, e
	}

	out.Notes = f.localizations[in.VersionID]
	return
}

func (f *fakeCatalog) UpdateLocalizedNote(ctx context.Context, in ascrepo.InputUpdateLocalizedNote) (out ascrepo.OutUpdateLocalizedNote, err error) {
	return out, fmt.Errorf("not used")
}

func (f *fakeCatalog) TestConnection(ctx context.Context) bool {
	return true
}

type fakeIcons struct {
	icons map[string]string
}

var _ iconrepo.Repo = (*fakeIcons)(nil)

func (f *fakeIcons) FetchIcon(ctx context.Context, bundleID string) (iconrepo.Icon, bool) {
	u, ok := f.icons[bundleID]
	if !ok {
		return iconrepo.Icon{}, false
	}

	return iconrepo.Icon{BundleID: bundleID, URL: u}, true
}

func (f *fakeIcons) FetchIcons(ctx context.Context, bundleIDs []string) map[string]iconrepo.Icon {
	out := map[string]iconrepo.Icon{}
	for _, id := range bundleIDs {
		if icon, ok := f.FetchIcon(ctx, id); ok {
			out[id] = icon
		}
	}

	return out
}
