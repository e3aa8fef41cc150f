package cloudstore

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"stashpad/types"
)

const driveFolderMime = "application/vnd.google-apps.folder"

// googleDrive uploads via the Drive v3 API: multipart metadata + media
// create, with folder ids resolved (and created) segment by segment.
type googleDrive struct {
	oauth *oauth2.Config
}

func newGoogleDrive(clientID, clientSecret string) *googleDrive {
	return &googleDrive{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     endpoints.Google,
			Scopes:       []string{drive.DriveFileScope},
		},
	}
}

func (g *googleDrive) service(ctx context.Context, accessToken string) (*drive.Service, error) {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	srv, err := drive.NewService(ctx, option.WithTokenSource(src))
	if err != nil {
		return nil, types.WrapError(types.CodeUploadError, "failed to create Drive client", err)
	}
	return srv, nil
}

func (g *googleDrive) Upload(ctx context.Context, accessToken, filename, mimeType string, content []byte, folderPath string) (UploadResult, error) {
	srv, err := g.service(ctx, accessToken)
	if err != nil {
		return UploadResult{}, err
	}

	parent, err := g.ensureFolderPath(ctx, srv, folderPath)
	if err != nil {
		return UploadResult{}, err
	}

	meta := &drive.File{Name: filename, MimeType: mimeType, Parents: []string{parent}}
	created, err := srv.Files.Create(meta).
		Media(bytes.NewReader(content)).
		Fields("id", "webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		return UploadResult{}, driveError(err, "file upload failed")
	}

	return UploadResult{FileID: created.Id, ViewLink: created.WebViewLink}, nil
}

// ensureFolderPath walks the folder path from the Drive root, reusing
// existing folders by name and creating the missing tail.
func (g *googleDrive) ensureFolderPath(ctx context.Context, srv *drive.Service, folderPath string) (string, error) {
	parent := "root"
	for _, segment := range strings.Split(folderPath, "/") {
		if segment == "" {
			continue
		}

		query := fmt.Sprintf("name = '%s' and mimeType = '%s' and '%s' in parents and trashed = false",
			strings.ReplaceAll(segment, "'", `\'`), driveFolderMime, parent)
		list, err := srv.Files.List().Q(query).Fields("files(id)").PageSize(1).Context(ctx).Do()
		if err != nil {
			return "", driveError(err, "folder lookup failed")
		}

		if len(list.Files) > 0 {
			parent = list.Files[0].Id
			continue
		}

		folder, err := srv.Files.Create(&drive.File{
			Name:     segment,
			MimeType: driveFolderMime,
			Parents:  []string{parent},
		}).Fields("id").Context(ctx).Do()
		if err != nil {
			return "", driveError(err, "folder creation failed")
		}
		parent = folder.Id
	}
	return parent, nil
}

func (g *googleDrive) GetQuota(ctx context.Context, accessToken string) (Quota, error) {
	srv, err := g.service(ctx, accessToken)
	if err != nil {
		return Quota{}, err
	}

	about, err := srv.About.Get().Fields("storageQuota").Context(ctx).Do()
	if err != nil {
		return Quota{}, driveError(err, "quota lookup failed")
	}
	return Quota{Used: about.StorageQuota.Usage, Total: about.StorageQuota.Limit}, nil
}

func (g *googleDrive) GetUserInfo(ctx context.Context, accessToken string) (UserInfo, error) {
	srv, err := g.service(ctx, accessToken)
	if err != nil {
		return UserInfo{}, err
	}

	about, err := srv.About.Get().Fields("user").Context(ctx).Do()
	if err != nil {
		return UserInfo{}, driveError(err, "account lookup failed")
	}
	return UserInfo{Email: about.User.EmailAddress, Name: about.User.DisplayName}, nil
}

func (g *googleDrive) RefreshToken(ctx context.Context, refreshToken string) (string, time.Time, error) {
	token, err := g.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return "", time.Time{}, types.WrapError(types.CodeUploadError, "Google token refresh failed", err)
	}
	return token.AccessToken, token.Expiry, nil
}

func driveError(err error, msg string) error {
	if apiErr, ok := err.(*googleapi.Error); ok {
		return uploadStatusError(ProviderGoogleDrive, apiErr.Code, apiErr.Message)
	}
	return types.WrapError(types.CodeUploadError, "Google Drive "+msg, err)
}
