package notesvc

import (
	"context"
	"fmt"
	"sync"

	"github.com/yusufsyaifudin/release/internal/entity"
	"github.com/yusufsyaifudin/release/internal/svc/ascrepo"
	"github.com/yusufsyaifudin/release/pkg/observe"
	"github.com/yusufsyaifudin/release/pkg/tracer"
	"github.com/yusufsyaifudin/release/pkg/validator"
	"github.com/yusufsyaifudin/ylog"
	"go.uber.org/multierr"
)

type EditorConfig struct {
	CatalogRepo ascrepo.Repo `validate:"required"`
}

// Editor holds the editable release notes of the current version of one app.
// Local edits are never written to entity types until an upload succeeds.
type Editor struct {
	Config EditorConfig

	lock   sync.Mutex
	loaded bool
	state  EditorState
	hub    observe.Hub[EditorState]
}

func NewEditor(cfg EditorConfig) (*Editor, error) {
	if err := validator.Validate(cfg); err != nil {
		return nil, err
	}

	return &Editor{Config: cfg}, nil
}

func (e *Editor) Snapshot() EditorState {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.state.clone()
}

func (e *Editor) Subscribe() (<-chan EditorState, func()) {
	return e.hub.Subscribe()
}

// publish must be called with lock held.
func (e *Editor) publish() {
	e.hub.Publish(e.state.clone())
}

// Load takes the newest release note of detail as the current version.
// Reloading the same version merges: a locale that was just uploaded or has no local edits
// adopts the server text, a locale with unsaved edits keeps them.
func (e *Editor) Load(detail entity.AppDetail) {
	e.lock.Lock()
	defer e.lock.Unlock()
	defer e.publish()

	if len(detail.ReleaseNotes) == 0 {
		e.loaded = false
		e.state = EditorState{AppID: detail.AppID}
		return
	}

	current := detail.ReleaseNotes[0]
	next := EditorState{
		AppID:             detail.AppID,
		VersionID:         current.ID,
		Version:           current.Version,
		Editable:          current.Status.Editable(),
		PreviousVersionID: previousVersionID(detail.ReleaseNotes),
		Locales:           make([]LocaleState, 0, len(current.LocalizedNotes)),
	}

	sameVersion := e.loaded && e.state.VersionID == current.ID
	existing := make(map[string]LocaleState, len(e.state.Locales))
	if sameVersion {
		for _, l := range e.state.Locales {
			existing[l.Locale] = l
		}
	}

	for _, server := range current.LocalizedNotes {
		fresh := LocaleState{
			ID:           server.ID,
			Locale:       server.Locale,
			DisplayName:  server.DisplayName(),
			OriginalText: server.Notes,
			Text:         server.Notes,
			Status:       StatusIdle,
		}

		local, ok := existing[server.Locale]
		switch {
		case !ok, local.Status == StatusSuccess, !local.HasChanges():
			next.Locales = append(next.Locales, fresh)

		default:
			// unsaved edit: text and original stay as they were
			local.ID = server.ID
			next.Locales = append(next.Locales, local)
		}
	}

	e.loaded = true
	e.state = next
}

// previousVersionID prefers the closest older version of the same platform.
func previousVersionID(notes []entity.ReleaseNote) string {
	if len(notes) < 2 {
		return ""
	}

	current := notes[0]
	for _, n := range notes[1:] {
		if n.Platform == current.Platform {
			return n.ID
		}
	}

	return notes[1].ID
}

func (e *Editor) indexOf(locale string) (int, error) {
	if !e.loaded {
		return -1, ErrNotLoaded
	}

	for i, l := range e.state.Locales {
		if l.Locale == locale {
			return i, nil
		}
	}

	return -1, fmt.Errorf("%w: %s", ErrUnknownLocale, locale)
}

func (e *Editor) setText(i int, text string) {
	l := &e.state.Locales[i]
	l.Text = text
	l.Message = ""
	if l.HasChanges() {
		l.Status = StatusPendingChanges
	} else {
		l.Status = StatusIdle
	}
}

func (e *Editor) SetText(locale, text string) error {
	e.lock.Lock()
	defer e.lock.Unlock()

	i, err := e.indexOf(locale)
	if err != nil {
		return err
	}

	if !e.state.Editable {
		return ErrReadOnly
	}

	e.setText(i, text)
	e.publish()
	return nil
}

// HasChanges reports whether locale has unsaved text. Unknown locales have none.
func (e *Editor) HasChanges(locale string) bool {
	e.lock.Lock()
	defer e.lock.Unlock()

	i, err := e.indexOf(locale)
	if err != nil {
		return false
	}

	return e.state.Locales[i].HasChanges()
}

func (e *Editor) ApplyTemplateToAll(template string) error {
	e.lock.Lock()
	defer e.lock.Unlock()

	if !e.loaded {
		return ErrNotLoaded
	}

	if !e.state.Editable {
		return ErrReadOnly
	}

	for i := range e.state.Locales {
		e.setText(i, template)
	}

	e.publish()
	return nil
}

func (e *Editor) Reset(locale string) error {
	e.lock.Lock()
	defer e.lock.Unlock()

	i, err := e.indexOf(locale)
	if err != nil {
		return err
	}

	e.reset(i)
	e.publish()
	return nil
}

func (e *Editor) ResetAll() {
	e.lock.Lock()
	defer e.lock.Unlock()

	for i := range e.state.Locales {
		e.reset(i)
	}

	e.publish()
}

func (e *Editor) reset(i int) {
	l := &e.state.Locales[i]
	l.Text = l.OriginalText
	l.Status = StatusIdle
	l.Message = ""
}

// Upload sends the text of locale. It does nothing when the locale has no changes,
// and fails with ErrReadOnly when the version is no longer editable.
// A failure is kept in the locale status and returned; nothing is retried.
func (e *Editor) Upload(ctx context.Context, locale string) error {
	ctx, span := tracer.StartSpan(ctx, "notesvc.Upload")
	defer span.End()

	e.lock.Lock()
	i, err := e.indexOf(locale)
	if err != nil {
		e.lock.Unlock()
		return err
	}

	l := e.state.Locales[i]
	if !l.HasChanges() {
		e.lock.Unlock()
		return nil
	}

	if !e.state.Editable {
		e.lock.Unlock()
		return ErrReadOnly
	}

	if l.Status == StatusUploading {
		e.lock.Unlock()
		return ErrUploadInProgress
	}

	versionID := e.state.VersionID
	e.state.Locales[i].Status = StatusUploading
	e.state.Locales[i].Message = ""
	e.publish()
	e.lock.Unlock()

	out, err := e.Config.CatalogRepo.UpdateLocalizedNote(ctx, ascrepo.InputUpdateLocalizedNote{
		LocalizationID: l.ID,
		Text:           l.Text,
	})

	e.lock.Lock()
	defer e.lock.Unlock()
	defer e.publish()

	// the version may have been replaced by a Load while uploading
	if e.state.VersionID != versionID {
		if err != nil {
			return fmt.Errorf("upload %s: %w", locale, err)
		}
		return nil
	}

	i, idxErr := e.indexOf(locale)
	if idxErr != nil {
		if err != nil {
			return fmt.Errorf("upload %s: %w", locale, err)
		}
		return nil
	}

	cur := &e.state.Locales[i]
	if err != nil {
		ylog.Error(ctx, "upload release note failed", ylog.KV("locale", locale), ylog.KV("error", err))
		cur.Status = StatusFailure
		cur.Message = err.Error()
		return fmt.Errorf("upload %s: %w", locale, err)
	}

	editedMeanwhile := cur.Text != l.Text
	cur.OriginalText = out.Note.Notes
	if !editedMeanwhile {
		cur.Text = out.Note.Notes
	}

	if cur.HasChanges() {
		cur.Status = StatusPendingChanges
	} else {
		cur.Status = StatusSuccess
	}

	return nil
}

// UploadAll uploads every changed locale one at a time, in server order.
// A failing locale does not stop the others; all failures are combined in err.
func (e *Editor) UploadAll(ctx context.Context) (report UploadReport, err error) {
	ctx, span := tracer.StartSpan(ctx, "notesvc.UploadAll")
	defer span.End()

	e.lock.Lock()
	if !e.loaded {
		e.lock.Unlock()
		err = ErrNotLoaded
		return
	}

	if !e.state.Editable {
		e.lock.Unlock()
		err = ErrReadOnly
		return
	}

	pending := make([]string, 0, len(e.state.Locales))
	for _, l := range e.state.Locales {
		if l.HasChanges() {
			pending = append(pending, l.Locale)
		}
	}
	e.lock.Unlock()

	report.Uploaded = make([]string, 0, len(pending))
	for _, locale := range pending {
		if _err := e.Upload(ctx, locale); _err != nil {
			if report.Failed == nil {
				report.Failed = make(map[string]string)
			}

			report.Failed[locale] = _err.Error()
			err = multierr.Append(err, _err)
			continue
		}

		report.Uploaded = append(report.Uploaded, locale)
	}

	return
}

// FetchPreviousVersionNotes copies the previous version's text into every locale both versions share.
// OriginalText is untouched, so copied text shows up as pending changes. It returns the number of locales updated.
func (e *Editor) FetchPreviousVersionNotes(ctx context.Context) (updated int, err error) {
	ctx, span := tracer.StartSpan(ctx, "notesvc.FetchPreviousVersionNotes")
	defer span.End()

	e.lock.Lock()
	if !e.loaded {
		e.lock.Unlock()
		err = ErrNotLoaded
		return
	}

	if !e.state.Editable {
		e.lock.Unlock()
		err = ErrReadOnly
		return
	}

	versionID, previousID := e.state.VersionID, e.state.PreviousVersionID
	e.lock.Unlock()

	if previousID == "" {
		err = ErrNoPreviousVersion
		return
	}

	out, err := e.Config.CatalogRepo.FetchLocalizedNotes(ctx, ascrepo.InputFetchLocalizedNotes{VersionID: previousID})
	if err != nil {
		err = fmt.Errorf("fetch previous version notes: %w", err)
		return
	}

	previous := make(map[string]string, len(out.Notes))
	for _, n := range out.Notes {
		previous[n.Locale] = n.Notes
	}

	e.lock.Lock()
	defer e.lock.Unlock()

	if e.state.VersionID != versionID {
		err = fmt.Errorf("version changed while fetching previous notes")
		return
	}

	for i, l := range e.state.Locales {
		text, ok := previous[l.Locale]
		if !ok {
			continue
		}

		e.setText(i, text)
		updated++
	}

	e.publish()
	return
}
