package notesvc

import (
	"fmt"
	"sync"

	"github.com/yusufsyaifudin/release/internal/entity"
	"github.com/yusufsyaifudin/release/internal/svc/ascrepo"
	"github.com/yusufsyaifudin/release/pkg/validator"
)

type WorkspaceConfig struct {
	CatalogRepo ascrepo.Repo `validate:"required"`
}

// Workspace keeps one Editor per app id, so edits survive a detail reload.
type Workspace struct {
	Config WorkspaceConfig

	lock    sync.Mutex
	editors map[string]*Editor
}

func NewWorkspace(cfg WorkspaceConfig) (*Workspace, error) {
	if err := validator.Validate(cfg); err != nil {
		return nil, err
	}

	return &Workspace{
		Config:  cfg,
		editors: make(map[string]*Editor),
	}, nil
}

// Load creates the editor of detail.AppID on first use and merges into it afterwards.
func (w *Workspace) Load(detail entity.AppDetail) (*Editor, error) {
	if detail.AppID == "" {
		return nil, fmt.Errorf("app id is required")
	}

	w.lock.Lock()
	editor, ok := w.editors[detail.AppID]
	if !ok {
		var err error
		editor, err = NewEditor(EditorConfig{CatalogRepo: w.Config.CatalogRepo})
		if err != nil {
			w.lock.Unlock()
			return nil, err
		}

		w.editors[detail.AppID] = editor
	}
	w.lock.Unlock()

	editor.Load(detail)
	return editor, nil
}

// Editor returns the editor of appID if its detail was loaded before.
func (w *Workspace) Editor(appID string) (*Editor, bool) {
	w.lock.Lock()
	defer w.lock.Unlock()

	editor, ok := w.editors[appID]
	return editor, ok
}

// Forget drops the editor of appID together with any unsaved edits.
func (w *Workspace) Forget(appID string) {
	w.lock.Lock()
	defer w.lock.Unlock()
	delete(w.editors, appID)
}
