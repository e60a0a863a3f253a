package httptyped

import (
	"errors"

	"github.com/yusufsyaifudin/release/internal/svc/ascrepo"
	"github.com/yusufsyaifudin/release/internal/svc/notesvc"
	"github.com/yusufsyaifudin/release/internal/svc/settingsrepo"
	"github.com/yusufsyaifudin/release/internal/svc/updatesvc"
	"github.com/yusufsyaifudin/release/pkg/ascauth"
	"github.com/yusufsyaifudin/release/pkg/respbuilder"
)

// ErrKind maps a service error to the response error kind.
func ErrKind(err error) respbuilder.ErrKind {
	var (
		remoteErr *ascrepo.RemoteError
		decodeErr *ascrepo.DecodeError
		feedErr   *updatesvc.HTTPError
	)

	switch {
	case errors.Is(err, ascrepo.ErrNotConfigured),
		errors.Is(err, settingsrepo.ErrNotConfigured):
		return respbuilder.ErrNotConfigured

	case errors.As(err, &remoteErr),
		errors.As(err, &decodeErr),
		errors.As(err, &feedErr),
		errors.Is(err, ascrepo.ErrMissingLocalization):
		return respbuilder.ErrUpstream

	case errors.Is(err, notesvc.ErrReadOnly),
		errors.Is(err, notesvc.ErrUploadInProgress),
		errors.Is(err, updatesvc.ErrBusy),
		errors.Is(err, updatesvc.ErrNoRelease),
		errors.Is(err, updatesvc.ErrNoInstallerAsset):
		return respbuilder.ErrConflict

	case errors.Is(err, notesvc.ErrUnknownLocale),
		errors.Is(err, notesvc.ErrNotLoaded),
		errors.Is(err, notesvc.ErrNoPreviousVersion):
		return respbuilder.ErrResourceNotFound

	case errors.Is(err, ascauth.ErrInvalidCredentials),
		errors.Is(err, ascauth.ErrInvalidPrivateKey),
		errors.Is(err, settingsrepo.ErrInvalidKeyEncoding):
		return respbuilder.ErrValidation
	}

	return respbuilder.ErrUnhandled
}
