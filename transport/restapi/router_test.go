package restapi_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yusufsyaifudin/release/internal/entity"
	"github.com/yusufsyaifudin/release/internal/svc/ascrepo"
	"github.com/yusufsyaifudin/release/internal/svc/catalogsvc"
	"github.com/yusufsyaifudin/release/internal/svc/iconrepo"
	"github.com/yusufsyaifudin/release/internal/svc/notesvc"
	"github.com/yusufsyaifudin/release/internal/svc/settingsrepo"
	"github.com/yusufsyaifudin/release/internal/svc/updatesvc"
	"github.com/yusufsyaifudin/release/pkg/ascauth"
	"github.com/yusufsyaifudin/release/pkg/gate"
	"github.com/yusufsyaifudin/release/transport/restapi"
)

type fakeCatalog struct {
	lock    sync.Mutex
	updated map[string]string
}

var _ ascrepo.Repo = (*fakeCatalog)(nil)

var testApp = ascrepo.AppSummary{ID: "a", Name: "App A", BundleID: "com.example.a"}

var testVersions = []entity.Version{
	{ID: "v2", VersionString: "1.1", Platform: entity.PlatformIOS, Status: entity.StatusPrepareForSubmission},
	{ID: "v1", VersionString: "1.0", Platform: entity.PlatformIOS, Status: entity.StatusReadyForSale},
}

var testNotes = map[string][]entity.LocalizedReleaseNote{
	"v2": {{ID: "l-en", Locale: "en-US", Notes: "draft"}},
	"v1": {{ID: "l-en-old", Locale: "en-US", Notes: "first release"}},
}

func (f *fakeCatalog) ListApps(ctx context.Context, in ascrepo.InputListApps) (out ascrepo.OutListApps, err error) {
	out.Apps = []ascrepo.AppSummary{testApp}
	return
}

func (f *fakeCatalog) ListVersions(ctx context.Context, in ascrepo.InputListVersions) (out ascrepo.OutListVersions, err error) {
	out.Versions = entity.FilterByPlatform(testVersions, in.Platform, entity.VersionPlatform)
	return
}

func (f *fakeCatalog) FetchAppDetail(ctx context.Context, in ascrepo.InputFetchAppDetail) (out ascrepo.OutFetchAppDetail, err error) {
	if in.AppID != testApp.ID {
		return out, &ascrepo.RemoteError{StatusCode: http.StatusNotFound, Body: "not found"}
	}

	out.App = testApp
	out.Versions = testVersions
	return
}

func (f *fakeCatalog) FetchLocalizedNotes(ctx context.Context, in ascrepo.InputFetchLocalizedNotes) (out ascrepo.OutFetchLocalizedNotes, err error) {
	out.Notes = testNotes[in.VersionID]
	return
}

func (f *fakeCatalog) UpdateLocalizedNote(ctx context.Context, in ascrepo.InputUpdateLocalizedNote) (out ascrepo.OutUpdateLocalizedNote, err error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if f.updated == nil {
		f.updated = map[string]string{}
	}

	f.updated[in.LocalizationID] = in.Text
	out.Note = entity.LocalizedReleaseNote{ID: in.LocalizationID, Locale: "en-US", Notes: in.Text}
	return
}

func (f *fakeCatalog) TestConnection(ctx context.Context) bool {
	return true
}

type noIcons struct{}

func (noIcons) FetchIcon(ctx context.Context, bundleID string) (iconrepo.Icon, bool) {
	return iconrepo.Icon{}, false
}

func (noIcons) FetchIcons(ctx context.Context, bundleIDs []string) map[string]iconrepo.Icon {
	return map[string]iconrepo.Icon{}
}

type staticFeed struct{}

func (staticFeed) Latest(ctx context.Context) (updatesvc.Release, error) {
	return updatesvc.Release{
		TagName: "2.0.0",
		Assets: []updatesvc.Asset{
			{Name: "Release.dmg", DownloadURL: "http://127.0.0.1:1/Release.dmg", Size: 10},
		},
	}, nil
}

type unusedInstaller struct{}

func (unusedInstaller) Mount(ctx context.Context, imagePath string) (string, error) {
	return "", fmt.Errorf("not used")
}

func (unusedInstaller) FindApp(mountPoint string) (string, error) {
	return "", fmt.Errorf("not used")
}

func (unusedInstaller) Copy(ctx context.Context, appPath, destDir string) error {
	return fmt.Errorf("not used")
}

func (unusedInstaller) Unmount(ctx context.Context, mountPoint string) error {
	return nil
}

type fakeCredentials struct {
	lock  sync.Mutex
	saved *ascauth.Credentials
}

func (f *fakeCredentials) Configured() bool {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.saved != nil
}

func (f *fakeCredentials) SaveCredentials(ctx context.Context, cred ascauth.Credentials) error {
	if !cred.Valid() {
		return ascauth.ErrInvalidCredentials
	}

	f.lock.Lock()
	defer f.lock.Unlock()
	f.saved = &cred
	return nil
}

func (f *fakeCredentials) ClearCredentials(ctx context.Context) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.saved = nil
	return nil
}

type testServer struct {
	handler http.Handler
	catalog *fakeCatalog
	creds   *fakeCredentials
}

func newTestServer(t *testing.T) *testServer {
	catalog := &fakeCatalog{}

	kv, err := settingsrepo.NewFileKV(settingsrepo.FileKVConfig{Path: filepath.Join(t.TempDir(), "settings.json")})
	require.NoError(t, err)

	settings, err := settingsrepo.New(settingsrepo.DefaultRepoConfig{KV: kv})
	require.NoError(t, err)

	catalogSvc, err := catalogsvc.New(catalogsvc.DefaultServiceConfig{
		CatalogRepo: catalog,
		IconRepo:    noIcons{},
		Gate:        gate.MustNew(2),
	})
	require.NoError(t, err)

	workspace, err := notesvc.NewWorkspace(notesvc.WorkspaceConfig{CatalogRepo: catalog})
	require.NoError(t, err)

	updater, err := updatesvc.New(updatesvc.ControllerConfig{
		Feed:           staticFeed{},
		Installer:      unusedInstaller{},
		Settings:       settings,
		HTTPClient:     http.DefaultClient,
		CurrentVersion: "1.0.0",
		TempDir:        t.TempDir(),
		Exit:           func(int) {},
	})
	require.NoError(t, err)

	creds := &fakeCredentials{}
	transport, err := restapi.NewHTTPTransport(restapi.Config{
		AppVersion:     "1.0.0",
		CatalogService: catalogSvc,
		CatalogRepo:    catalog,
		NotesWorkspace: workspace,
		Updater:        updater,
		Settings:       settings,
		Credentials:    creds,
	})
	require.NoError(t, err)

	return &testServer{handler: transport.Server(), catalog: catalog, creds: creds}
}

type envelope struct {
	TraceID string          `json:"trace_id"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code  string `json:"error_code"`
		Debug string `json:"debug"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, out interface{}) (int, envelope) {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reqBody)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if out != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}

	return rec.Code, env
}

func TestNewHTTPTransport_Invalid(t *testing.T) {
	_, err := restapi.NewHTTPTransport(restapi.Config{})
	assert.Error(t, err)
}

func TestRouter_Ping(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"pong":true,"version":"1.0.0"}`, rec.Body.String())
}

func TestRouter_NotFound(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, http.MethodGet, "/api/v1/nothing", nil, nil)
	assert.Equal(t, http.StatusNotFound, code)
	require.NotNil(t, env.Error)
	assert.NotEmpty(t, env.TraceID+env.Error.Code)
}

func TestRouter_Catalog(t *testing.T) {
	s := newTestServer(t)

	var state catalogsvc.State
	code, env := s.do(t, http.MethodGet, "/api/v1/catalog", nil, &state)
	assert.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, env.TraceID)
	assert.Empty(t, state.Rows)

	code, _ = s.do(t, http.MethodPost, "/api/v1/catalog/refresh?wait=true", nil, &state)
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, state.Rows, 1)
	assert.Equal(t, "a-IOS", state.Rows[0].ID)
	assert.Equal(t, "1.1", state.Rows[0].Version)
	assert.True(t, state.IsComplete)

	code, _ = s.do(t, http.MethodPost, "/api/v1/catalog/refresh?wait=nope", nil, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRouter_DetailAndNotes(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, http.MethodGet, "/api/v1/apps/a/notes", nil, nil)
	assert.Equal(t, http.StatusNotFound, code, "notes are only available after the detail was loaded")

	code, _ = s.do(t, http.MethodGet, "/api/v1/apps/a?platform=windows", nil, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodGet, "/api/v1/apps/zzz", nil, nil)
	assert.Equal(t, http.StatusBadGateway, code)

	var detail struct {
		App    entity.AppDetail `json:"app"`
		Editor struct {
			VersionID         string `json:"version_id"`
			Editable          bool   `json:"editable"`
			PreviousVersionID string `json:"previous_version_id"`
		} `json:"editor"`
	}
	code, _ = s.do(t, http.MethodGet, "/api/v1/apps/a?platform=iOS", nil, &detail)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "a-IOS", detail.App.ID)
	assert.Len(t, detail.App.ReleaseNotes, 2)
	assert.Equal(t, "v2", detail.Editor.VersionID)
	assert.True(t, detail.Editor.Editable)
	assert.Equal(t, "v1", detail.Editor.PreviousVersionID)

	type locale struct {
		Locale string `json:"locale"`
		Text   string `json:"text"`
		Status string `json:"status"`
	}
	var editor struct {
		Locales []locale `json:"locales"`
	}

	code, _ = s.do(t, http.MethodPut, "/api/v1/apps/a/notes/en-US", map[string]string{"text": "bug fixes"}, &editor)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, editor.Locales, 1)
	assert.Equal(t, "bug fixes", editor.Locales[0].Text)
	assert.Equal(t, "pending_changes", editor.Locales[0].Status)

	code, _ = s.do(t, http.MethodPut, "/api/v1/apps/a/notes/ja", map[string]string{"text": "x"}, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(t, http.MethodPost, "/api/v1/apps/a/notes/en-US/reset", nil, &editor)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "draft", editor.Locales[0].Text)

	var previous struct {
		Updated int `json:"updated"`
		Editor  struct {
			Locales []locale `json:"locales"`
		} `json:"editor"`
	}
	code, _ = s.do(t, http.MethodPost, "/api/v1/apps/a/notes/previous", nil, &previous)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, previous.Updated)
	assert.Equal(t, "first release", previous.Editor.Locales[0].Text)

	code, _ = s.do(t, http.MethodPost, "/api/v1/apps/a/notes/template", map[string]string{"template": "hello"}, &editor)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "hello", editor.Locales[0].Text)

	code, _ = s.do(t, http.MethodPost, "/api/v1/apps/a/notes/en-US/upload", nil, &editor)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", editor.Locales[0].Status)

	s.catalog.lock.Lock()
	assert.Equal(t, map[string]string{"l-en": "hello"}, s.catalog.updated)
	s.catalog.lock.Unlock()

	code, _ = s.do(t, http.MethodPost, "/api/v1/apps/a/notes/reset", nil, &editor)
	assert.Equal(t, http.StatusOK, code)
}

func TestRouter_Update(t *testing.T) {
	s := newTestServer(t)

	var state updatesvc.State
	code, _ := s.do(t, http.MethodGet, "/api/v1/update", nil, &state)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "1.0.0", state.CurrentVersion)
	assert.Equal(t, updatesvc.PhaseIdle, state.Phase)

	code, _ = s.do(t, http.MethodPost, "/api/v1/update/install", nil, nil)
	assert.Equal(t, http.StatusConflict, code, "install needs a checked release")

	code, _ = s.do(t, http.MethodPost, "/api/v1/update/ignore", map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	var checked struct {
		UpdateAvailable bool `json:"update_available"`
		Ignored         bool `json:"ignored"`
	}
	code, _ = s.do(t, http.MethodPost, "/api/v1/update/check", nil, &checked)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, checked.UpdateAvailable)
	assert.False(t, checked.Ignored)

	code, _ = s.do(t, http.MethodPost, "/api/v1/update/ignore", map[string]string{}, &checked)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, checked.Ignored)
}

func TestRouter_Settings(t *testing.T) {
	s := newTestServer(t)

	var creds struct {
		Configured    bool   `json:"configured"`
		IssuerID      string `json:"issuer_id"`
		HasPrivateKey bool   `json:"has_private_key"`
	}
	code, _ := s.do(t, http.MethodGet, "/api/v1/settings/credentials", nil, &creds)
	assert.Equal(t, http.StatusOK, code)
	assert.False(t, creds.Configured)

	code, _ = s.do(t, http.MethodPut, "/api/v1/settings/credentials", map[string]string{"issuer_id": "issuer"}, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodPut, "/api/v1/settings/credentials", map[string]string{
		"issuer_id":   "issuer",
		"key_id":      "KEY",
		"private_key": "secret",
	}, &creds)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, creds.Configured)
	assert.True(t, creds.HasPrivateKey)
	assert.Equal(t, "issuer", creds.IssuerID)

	var probe struct {
		OK bool `json:"ok"`
	}
	code, _ = s.do(t, http.MethodPost, "/api/v1/settings/test", nil, &probe)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, probe.OK)

	code, _ = s.do(t, http.MethodDelete, "/api/v1/settings/credentials", nil, &creds)
	assert.Equal(t, http.StatusOK, code)
	assert.False(t, creds.Configured)
}
