package cloudstore

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"stashpad/config"
	"stashpad/types"
)

// ProviderID tags one of the supported cloud-storage backends.
type ProviderID string

const (
	ProviderGoogleDrive ProviderID = "google-drive"
	ProviderDropbox     ProviderID = "dropbox"
	ProviderOneDrive    ProviderID = "onedrive"
)

// UploadResult is the uniform outcome of a provider upload.
type UploadResult struct {
	FileID   string `json:"file_id"`
	ViewLink string `json:"view_link,omitempty"`
}

// Quota is a point-in-time storage usage snapshot.
type Quota struct {
	Used  int64 `json:"used"`
	Total int64 `json:"total"`
}

// UserInfo identifies the account behind an access token.
type UserInfo struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Provider is the uniform capability contract every backend implements.
// Request shapes differ wildly per provider (multipart metadata upload,
// plain binary PUT, separate share-link call) but callers never see that.
// Upload failures surface as typed UPLOAD_ERROR values; retry is the
// caller's policy, never the provider's.
type Provider interface {
	Upload(ctx context.Context, accessToken, filename, mimeType string, content []byte, folderPath string) (UploadResult, error)
	GetQuota(ctx context.Context, accessToken string) (Quota, error)
	GetUserInfo(ctx context.Context, accessToken string) (UserInfo, error)
	RefreshToken(ctx context.Context, refreshToken string) (string, time.Time, error)
}

// Dispatcher selects the provider implementation for a tagged provider id.
type Dispatcher struct {
	providers map[ProviderID]Provider
}

// NewDispatcher builds the three provider implementations from OAuth app
// credentials.
func NewDispatcher(cfg config.Config) *Dispatcher {
	client := &http.Client{Timeout: config.UploadTimeout}
	return &Dispatcher{
		providers: map[ProviderID]Provider{
			ProviderGoogleDrive: newGoogleDrive(cfg.GoogleClientID, cfg.GoogleClientSecret),
			ProviderDropbox:     newDropbox(cfg.DropboxClientID, cfg.DropboxClientSecret, client),
			ProviderOneDrive:    newOneDrive(cfg.MicrosoftClientID, cfg.MicrosoftClientSecret, client),
		},
	}
}

// ForProvider resolves a provider id to its implementation.
func (d *Dispatcher) ForProvider(id string) (Provider, error) {
	p, ok := d.providers[ProviderID(id)]
	if !ok {
		return nil, types.NewError(types.CodeInvalidInput, fmt.Sprintf("unknown storage provider %q", id))
	}
	return p, nil
}

// uploadStatusError maps a provider HTTP status to a typed upload error.
func uploadStatusError(provider ProviderID, status int, body string) error {
	msg := fmt.Sprintf("%s upload rejected with status %d", provider, status)
	switch status {
	case http.StatusUnauthorized:
		msg = fmt.Sprintf("%s access token expired or revoked", provider)
	case http.StatusForbidden, http.StatusInsufficientStorage:
		msg = fmt.Sprintf("%s quota exceeded or access denied", provider)
	}
	e := types.NewError(types.CodeUploadError, msg)
	e.Details = body
	return e
}
