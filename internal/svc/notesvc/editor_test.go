package notesvc_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yusufsyaifudin/release/internal/entity"
	"github.com/yusufsyaifudin/release/internal/svc/ascrepo"
	"github.com/yusufsyaifudin/release/internal/svc/notesvc"
)

type fakeRepo struct {
	ascrepo.Repo

	lock        sync.Mutex
	updateCalls map[string]int
	updateErr   map[string]error
	previous    map[string][]entity.LocalizedReleaseNote
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		updateCalls: map[string]int{},
		updateErr:   map[string]error{},
		previous:    map[string][]entity.LocalizedReleaseNote{},
	}
}

func (f *fakeRepo) UpdateLocalizedNote(ctx context.Context, in ascrepo.InputUpdateLocalizedNote) (out ascrepo.OutUpdateLocalizedNote, err error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.updateCalls[in.LocalizationID]++
	if e := f.updateErr[in.LocalizationID]; e != nil {
		return out, e
	}

	out.Note = entity.LocalizedReleaseNote{ID: in.LocalizationID, Notes: in.Text, WhatsNew: in.Text}
	return
}

func (f *fakeRepo) FetchLocalizedNotes(ctx context.Context, in ascrepo.InputFetchLocalizedNotes) (out ascrepo.OutFetchLocalizedNotes, err error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	notes, ok := f.previous[in.VersionID]
	if !ok {
		return out, fmt.Errorf("version %s not found", in.VersionID)
	}

	out.Notes = notes
	return
}

func (f *fakeRepo) calls(id string) int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.updateCalls[id]
}

func detail(status entity.AppStatus, en, fr string) entity.AppDetail {
	return entity.AppDetail{
		AppRecord: entity.AppRecord{AppID: "app-1", Name: "App"},
		ReleaseNotes: []entity.ReleaseNote{
			{
				ID: "v2", Version: "1.1", Platform: entity.PlatformIOS, Status: status,
				LocalizedNotes: []entity.LocalizedReleaseNote{
					{ID: "l-en", Locale: "en-US", Notes: en},
					{ID: "l-fr", Locale: "fr-FR", Notes: fr},
				},
			},
			{ID: "v1-mac", Version: "1.0", Platform: entity.PlatformMacOS, Status: entity.StatusReadyForSale},
			{ID: "v1", Version: "1.0", Platform: entity.PlatformIOS, Status: entity.StatusReadyForSale},
		},
	}
}

func newEditor(t *testing.T, repo *fakeRepo, d entity.AppDetail) *notesvc.Editor {
	e, err := notesvc.NewEditor(notesvc.EditorConfig{CatalogRepo: repo})
	require.NoError(t, err)
	e.Load(d)
	return e
}

func locale(t *testing.T, e *notesvc.Editor, code string) notesvc.LocaleState {
	for _, l := range e.Snapshot().Locales {
		if l.Locale == code {
			return l
		}
	}

	t.Fatalf("locale %s not found", code)
	return notesvc.LocaleState{}
}

func TestEditor_Load(t *testing.T) {
	e := newEditor(t, newFakeRepo(), detail(entity.StatusPrepareForSubmission, "hello", "bonjour"))

	st := e.Snapshot()
	assert.Equal(t, "v2", st.VersionID)
	assert.Equal(t, "1.1", st.Version)
	assert.True(t, st.Editable)
	assert.Equal(t, "v1", st.PreviousVersionID, "same platform is preferred")
	require.Len(t, st.Locales, 2)
	assert.Equal(t, "English", st.Locales[0].DisplayName)
	assert.Equal(t, "French", st.Locales[1].DisplayName)
	assert.Equal(t, notesvc.StatusIdle, st.Locales[0].Status)
	assert.False(t, st.HasChanges())
}

func TestEditor_Dirtiness(t *testing.T) {
	repo := newFakeRepo()
	e := newEditor(t, repo, detail(entity.StatusPrepareForSubmission, "hello", "bonjour"))

	require.NoError(t, e.SetText("en-US", "hello world"))
	assert.True(t, e.HasChanges("en-US"))
	assert.Equal(t, notesvc.StatusPendingChanges, locale(t, e, "en-US").Status)

	// typing back the original is not a change
	require.NoError(t, e.SetText("en-US", "hello"))
	assert.False(t, e.HasChanges("en-US"))
	assert.Equal(t, notesvc.StatusIdle, locale(t, e, "en-US").Status)

	require.NoError(t, e.SetText("en-US", "changed"))
	require.NoError(t, e.Reset("en-US"))
	assert.False(t, e.HasChanges("en-US"))
	assert.Equal(t, "hello", locale(t, e, "en-US").Text)

	// no changes, no network call
	require.NoError(t, e.Upload(context.Background(), "en-US"))
	assert.Equal(t, 0, repo.calls("l-en"))

	assert.ErrorIs(t, e.SetText("de-DE", "x"), notesvc.ErrUnknownLocale)
	assert.False(t, e.HasChanges("de-DE"))
}

func TestEditor_ReadOnly(t *testing.T) {
	e := newEditor(t, newFakeRepo(), detail(entity.StatusReadyForSale, "hello", "bonjour"))

	assert.False(t, e.Snapshot().Editable)
	assert.ErrorIs(t, e.SetText("en-US", "x"), notesvc.ErrReadOnly)
	assert.ErrorIs(t, e.ApplyTemplateToAll("x"), notesvc.ErrReadOnly)

	_, err := e.FetchPreviousVersionNotes(context.Background())
	assert.ErrorIs(t, err, notesvc.ErrReadOnly)
}

func TestEditor_Upload_SubmittedMeanwhile(t *testing.T) {
	repo := newFakeRepo()
	e := newEditor(t, repo, detail(entity.StatusPrepareForSubmission, "hello", "bonjour"))
	require.NoError(t, e.SetText("en-US", "edited"))

	// same version reloaded after it was submitted for review
	e.Load(detail(entity.StatusWaitingForReview, "hello", "bonjour"))
	require.False(t, e.Snapshot().Editable)
	require.True(t, e.HasChanges("en-US"))

	assert.ErrorIs(t, e.Upload(context.Background(), "en-US"), notesvc.ErrReadOnly)

	report, err := e.UploadAll(context.Background())
	assert.ErrorIs(t, err, notesvc.ErrReadOnly)
	assert.Empty(t, report.Uploaded)
	assert.Empty(t, report.Failed)

	assert.Equal(t, 0, repo.calls("l-en"))
	assert.Equal(t, notesvc.StatusPendingChanges, locale(t, e, "en-US").Status)
}

func TestEditor_NotLoaded(t *testing.T) {
	e, err := notesvc.NewEditor(notesvc.EditorConfig{CatalogRepo: newFakeRepo()})
	require.NoError(t, err)

	assert.ErrorIs(t, e.SetText("en-US", "x"), notesvc.ErrNotLoaded)
	assert.ErrorIs(t, e.ApplyTemplateToAll("x"), notesvc.ErrNotLoaded)

	_, err = e.UploadAll(context.Background())
	assert.ErrorIs(t, err, notesvc.ErrNotLoaded)
}

func TestEditor_ApplyTemplateToAll(t *testing.T) {
	e := newEditor(t, newFakeRepo(), detail(entity.StatusPrepareForSubmission, "Bug fixes", "bonjour"))

	require.NoError(t, e.ApplyTemplateToAll("Bug fixes"))
	assert.Equal(t, notesvc.StatusIdle, locale(t, e, "en-US").Status)
	assert.Equal(t, notesvc.StatusPendingChanges, locale(t, e, "fr-FR").Status)
	assert.Equal(t, "Bug fixes", locale(t, e, "fr-FR").Text)

	e.ResetAll()
	assert.False(t, e.Snapshot().HasChanges())
	assert.Equal(t, "bonjour", locale(t, e, "fr-FR").Text)
}

func TestEditor_Upload(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		repo := newFakeRepo()
		e := newEditor(t, repo, detail(entity.StatusPrepareForSubmission, "hello", "bonjour"))

		require.NoError(t, e.SetText("en-US", "new"))
		require.NoError(t, e.Upload(context.Background(), "en-US"))

		l := locale(t, e, "en-US")
		assert.Equal(t, notesvc.StatusSuccess, l.Status)
		assert.Equal(t, "new", l.OriginalText)
		assert.False(t, l.HasChanges())
		assert.Equal(t, 1, repo.calls("l-en"))

		// second upload has nothing to send
		require.NoError(t, e.Upload(context.Background(), "en-US"))
		assert.Equal(t, 1, repo.calls("l-en"))
	})

	t.Run("failure", func(t *testing.T) {
		repo := newFakeRepo()
		repo.updateErr["l-en"] = &ascrepo.RemoteError{StatusCode: 409, Body: `{"errors":[{"detail":"state conflict"}]}`}
		e := newEditor(t, repo, detail(entity.StatusPrepareForSubmission, "hello", "bonjour"))

		require.NoError(t, e.SetText("en-US", "new"))
		err := e.Upload(context.Background(), "en-US")
		require.Error(t, err)

		var remoteErr *ascrepo.RemoteError
		assert.ErrorAs(t, err, &remoteErr)

		l := locale(t, e, "en-US")
		assert.Equal(t, notesvc.StatusFailure, l.Status)
		assert.Contains(t, l.Message, "state conflict")
		assert.Equal(t, "new", l.Text, "failed upload keeps the edit")
		assert.Equal(t, "hello", l.OriginalText)
	})
}

func TestEditor_UploadAll(t *testing.T) {
	repo := newFakeRepo()
	repo.updateErr["l-en"] = errors.New("rate limited")

	d := detail(entity.StatusPrepareForSubmission, "hello", "bonjour")
	d.ReleaseNotes[0].LocalizedNotes = append(d.ReleaseNotes[0].LocalizedNotes,
		entity.LocalizedReleaseNote{ID: "l-de", Locale: "de-DE", Notes: "hallo"},
	)
	e := newEditor(t, repo, d)

	require.NoError(t, e.SetText("en-US", "a"))
	require.NoError(t, e.SetText("fr-FR", "b"))

	report, err := e.UploadAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")

	assert.Equal(t, []string{"fr-FR"}, report.Uploaded)
	assert.Contains(t, report.Failed, "en-US")

	// the failing first locale did not stop the second, the unchanged one was not sent
	assert.Equal(t, 1, repo.calls("l-en"))
	assert.Equal(t, 1, repo.calls("l-fr"))
	assert.Equal(t, 0, repo.calls("l-de"))
	assert.Equal(t, notesvc.StatusFailure, locale(t, e, "en-US").Status)
	assert.Equal(t, notesvc.StatusSuccess, locale(t, e, "fr-FR").Status)
}

func TestEditor_Merge(t *testing.T) {
	repo := newFakeRepo()
	e := newEditor(t, repo, detail(entity.StatusPrepareForSubmission, "hello", "bonjour"))

	// fr-FR uploaded, en-US has an unsaved edit
	require.NoError(t, e.SetText("fr-FR", "salut"))
	require.NoError(t, e.Upload(context.Background(), "fr-FR"))
	require.NoError(t, e.SetText("en-US", "my draft"))

	e.Load(detail(entity.StatusPrepareForSubmission, "hello from server", "salut serveur"))

	en := locale(t, e, "en-US")
	assert.Equal(t, "my draft", en.Text)
	assert.Equal(t, "hello", en.OriginalText)
	assert.Equal(t, notesvc.StatusPendingChanges, en.Status)

	fr := locale(t, e, "fr-FR")
	assert.Equal(t, "salut serveur", fr.Text)
	assert.Equal(t, "salut serveur", fr.OriginalText)
	assert.Equal(t, notesvc.StatusIdle, fr.Status)
}

func TestEditor_Merge_NoLocalChanges(t *testing.T) {
	e := newEditor(t, newFakeRepo(), detail(entity.StatusPrepareForSubmission, "hello", "bonjour"))
	e.Load(detail(entity.StatusPrepareForSubmission, "hi", "salut"))

	assert.Equal(t, "hi", locale(t, e, "en-US").Text)
	assert.Equal(t, "hi", locale(t, e, "en-US").OriginalText)
}

func TestEditor_Merge_NewVersion(t *testing.T) {
	e := newEditor(t, newFakeRepo(), detail(entity.StatusPrepareForSubmission, "hello", "bonjour"))
	require.NoError(t, e.SetText("en-US", "draft"))

	next := detail(entity.StatusPrepareForSubmission, "v3 text", "v3 texte")
	next.ReleaseNotes[0].ID = "v3"
	e.Load(next)

	// a different version starts fresh
	assert.Equal(t, "v3 text", locale(t, e, "en-US").Text)
	assert.False(t, e.Snapshot().HasChanges())
}

func TestEditor_FetchPreviousVersionNotes(t *testing.T) {
	repo := newFakeRepo()
	repo.previous["v1"] = []entity.LocalizedReleaseNote{
		{ID: "p-en", Locale: "en-US", Notes: "previous english"},
		{ID: "p-ja", Locale: "ja", Notes: "previous japanese"},
	}

	e := newEditor(t, repo, detail(entity.StatusPrepareForSubmission, "hello", "bonjour"))

	updated, err := e.FetchPreviousVersionNotes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	en := locale(t, e, "en-US")
	assert.Equal(t, "previous english", en.Text)
	assert.Equal(t, "hello", en.OriginalText)
	assert.Equal(t, notesvc.StatusPendingChanges, en.Status)
	assert.Equal(t, "bonjour", locale(t, e, "fr-FR").Text)
}

func TestEditor_FetchPreviousVersionNotes_NoPrevious(t *testing.T) {
	d := detail(entity.StatusPrepareForSubmission, "hello", "bonjour")
	d.ReleaseNotes = d.ReleaseNotes[:1]
	e := newEditor(t, newFakeRepo(), d)

	_, err := e.FetchPreviousVersionNotes(context.Background())
	assert.ErrorIs(t, err, notesvc.ErrNoPreviousVersion)
}

func TestEditor_Subscribe(t *testing.T) {
	e := newEditor(t, newFakeRepo(), detail(entity.StatusPrepareForSubmission, "hello", "bonjour"))
	updates, cancel := e.Subscribe()
	defer cancel()

	require.NoError(t, e.SetText("en-US", "x"))
	st := <-updates
	assert.True(t, st.HasChanges())
}

func TestWorkspace(t *testing.T) {
	ws, err := notesvc.NewWorkspace(notesvc.WorkspaceConfig{CatalogRepo: newFakeRepo()})
	require.NoError(t, err)

	_, ok := ws.Editor("app-1")
	assert.False(t, ok)

	e1, err := ws.Load(detail(entity.StatusPrepareForSubmission, "hello", "bonjour"))
	require.NoError(t, err)
	require.NoError(t, e1.SetText("en-US", "draft"))

	e2, err := ws.Load(detail(entity.StatusPrepareForSubmission, "server", "bonjour"))
	require.NoError(t, err)
	assert.Same(t, e1, e2)
	assert.Equal(t, "draft", locale(t, e2, "en-US").Text)

	ws.Forget("app-1")
	_, ok = ws.Editor("app-1")
	assert.False(t, ok)

	_, err = ws.Load(entity.AppDetail{})
	assert.Error(t, err)
}
