package cloudstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"stashpad/types"
)

const graphBaseURL = "https://graph.microsoft.com/v1.0"

// oneDrive uploads as a simple binary PUT against the Graph drive path
// addressing scheme; the response already carries a web link.
type oneDrive struct {
	oauth  *oauth2.Config
	client *http.Client
}

func newOneDrive(clientID, clientSecret string, client *http.Client) *oneDrive {
	return &oneDrive{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     endpoints.AzureAD("common"),
			Scopes:       []string{"Files.ReadWrite", "offline_access"},
		},
		client: client,
	}
}

func (o *oneDrive) Upload(ctx context.Context, accessToken, filename, mimeType string, content []byte, folderPath string) (UploadResult, error) {
	target := fmt.Sprintf("%s/me/drive/root:/%s/%s:/content",
		graphBaseURL, escapePath(folderPath), url.PathEscape(filename))

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(content))
	if err != nil {
		return UploadResult{}, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", mimeType)

	resp, err := o.client.Do(req)
	if err != nil {
		return UploadResult{}, types.WrapError(types.CodeUploadError, "OneDrive upload failed", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return UploadResult{}, uploadStatusError(ProviderOneDrive, resp.StatusCode, string(body))
	}

	var item struct {
		ID     string `json:"id"`
		WebURL string `json:"webUrl"`
	}
	if err := json.Unmarshal(body, &item); err != nil {
		return UploadResult{}, fmt.Errorf("failed to decode upload response: %w", err)
	}
	return UploadResult{FileID: item.ID, ViewLink: item.WebURL}, nil
}

func (o *oneDrive) GetQuota(ctx context.Context, accessToken string) (Quota, error) {
	var drive struct {
		Quota struct {
			Used  int64 `json:"used"`
			Total int64 `json:"total"`
		} `json:"quota"`
	}
	if err := o.getJSON(ctx, accessToken, graphBaseURL+"/me/drive", &drive); err != nil {
		return Quota{}, err
	}
	return Quota{Used: drive.Quota.Used, Total: drive.Quota.Total}, nil
}

func (o *oneDrive) GetUserInfo(ctx context.Context, accessToken string) (UserInfo, error) {
	var me struct {
		Mail              string `json:"mail"`
		UserPrincipalName string `json:"userPrincipalName"`
		DisplayName       string `json:"displayName"`
	}
	if err := o.getJSON(ctx, accessToken, graphBaseURL+"/me", &me); err != nil {
		return UserInfo{}, err
	}

	email := me.Mail
	if email == "" {
		email = me.UserPrincipalName
	}
	return UserInfo{Email: email, Name: me.DisplayName}, nil
}

func (o *oneDrive) RefreshToken(ctx context.Context, refreshToken string) (string, time.Time, error) {
	token, err := o.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return "", time.Time{}, types.WrapError(types.CodeUploadError, "Microsoft token refresh failed", err)
	}
	return token.AccessToken, token.Expiry, nil
}

func (o *oneDrive) getJSON(ctx context.Context, accessToken, target string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := o.client.Do(req)
	if err != nil {
		return types.WrapError(types.CodeUploadError, "Graph API call failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return uploadStatusError(ProviderOneDrive, resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(result)
}

// escapePath escapes each folder segment while keeping the separators.
func escapePath(folderPath string) string {
	segments := strings.Split(folderPath, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
