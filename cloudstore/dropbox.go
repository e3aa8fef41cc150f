package cloudstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"stashpad/types"
)

const (
	dropboxContentURL = "https://content.dropboxapi.com"
	dropboxAPIURL     = "https://api.dropboxapi.com"
)

// dropbox uploads as a single binary POST with the request shape carried in
// the Dropbox-API-Arg header, then asks for a shareable link in a second
// call.
type dropbox struct {
	oauth  *oauth2.Config
	client *http.Client
}

func newDropbox(clientID, clientSecret string, client *http.Client) *dropbox {
	return &dropbox{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     endpoints.Dropbox,
		},
		client: client,
	}
}

func (d *dropbox) Upload(ctx context.Context, accessToken, filename, mimeType string, content []byte, folderPath string) (UploadResult, error) {
	path := "/" + folderPath + "/" + filename

	arg, err := json.Marshal(map[string]interface{}{
		"path":       path,
		"mode":       "add",
		"autorename": true,
		"mute":       true,
	})
	if err != nil {
		return UploadResult{}, fmt.Errorf("failed to encode upload arg: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dropboxContentURL+"/2/files/upload", bytes.NewReader(content))
	if err != nil {
		return UploadResult{}, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Dropbox-API-Arg", string(arg))
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := d.client.Do(req)
	if err != nil {
		return UploadResult{}, types.WrapError(types.CodeUploadError, "Dropbox upload failed", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return UploadResult{}, uploadStatusError(ProviderDropbox, resp.StatusCode, string(body))
	}

	var uploaded struct {
		ID        string `json:"id"`
		PathLower string `json:"path_lower"`
	}
	if err := json.Unmarshal(body, &uploaded); err != nil {
		return UploadResult{}, fmt.Errorf("failed to decode upload response: %w", err)
	}

	// Share-link creation is a separate API; a failure there still leaves a
	// successful upload, so the link is best-effort.
	link, err := d.sharedLink(ctx, accessToken, uploaded.PathLower)
	if err != nil {
		link = ""
	}
	return UploadResult{FileID: uploaded.ID, ViewLink: link}, nil
}

// sharedLink creates (or fetches the pre-existing) shared link for a path.
func (d *dropbox) sharedLink(ctx context.Context, accessToken, path string) (string, error) {
	var created struct {
		URL string `json:"url"`
	}
	err := d.postJSON(ctx, accessToken, dropboxAPIURL+"/2/sharing/create_shared_link_with_settings",
		map[string]interface{}{"path": path}, &created)
	if err == nil {
		return created.URL, nil
	}

	// 409 means a link already exists; list it instead.
	var listed struct {
		Links []struct {
			URL string `json:"url"`
		} `json:"links"`
	}
	listErr := d.postJSON(ctx, accessToken, dropboxAPIURL+"/2/sharing/list_shared_links",
		map[string]interface{}{"path": path, "direct_only": true}, &listed)
	if listErr == nil && len(listed.Links) > 0 {
		return listed.Links[0].URL, nil
	}
	return "", err
}

func (d *dropbox) GetQuota(ctx context.Context, accessToken string) (Quota, error) {
	var usage struct {
		Used       int64 `json:"used"`
		Allocation struct {
			Allocated int64 `json:"allocated"`
		} `json:"allocation"`
	}
	if err := d.postJSON(ctx, accessToken, dropboxAPIURL+"/2/users/get_space_usage", nil, &usage); err != nil {
		return Quota{}, err
	}
	return Quota{Used: usage.Used, Total: usage.Allocation.Allocated}, nil
}

func (d *dropbox) GetUserInfo(ctx context.Context, accessToken string) (UserInfo, error) {
	var account struct {
		Email string `json:"email"`
		Name  struct {
			DisplayName string `json:"display_name"`
		} `json:"name"`
	}
	if err := d.postJSON(ctx, accessToken, dropboxAPIURL+"/2/users/get_current_account", nil, &account); err != nil {
		return UserInfo{}, err
	}
	return UserInfo{Email: account.Email, Name: account.Name.DisplayName}, nil
}

func (d *dropbox) RefreshToken(ctx context.Context, refreshToken string) (string, time.Time, error) {
	token, err := d.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return "", time.Time{}, types.WrapError(types.CodeUploadError, "Dropbox token refresh failed", err)
	}
	return token.AccessToken, token.Expiry, nil
}

// postJSON performs one RPC-style Dropbox API call.
func (d *dropbox) postJSON(ctx context.Context, accessToken, url string, payload, result interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return types.WrapError(types.CodeUploadError, "Dropbox API call failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return uploadStatusError(ProviderDropbox, resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
