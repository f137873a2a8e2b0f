package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/safar/go-storefront/internal/config"
	"github.com/safar/go-storefront/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	DefaultPageSize = 10

	listFields = "nextPageToken, files(id, name, mimeType, webViewLink, iconLink, thumbnailLink)"
	fileFields = "id, name, mimeType, webViewLink, iconLink, thumbnailLink"
)

var Scopes = []string{
	drive.DriveFileScope,
	"https://www.googleapis.com/auth/userinfo.profile",
	"https://www.googleapis.com/auth/userinfo.email",
}

var ErrFileNotFound = errors.New("drive file not found")

type File struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	MimeType      string `json:"mimeType"`
	WebViewLink   string `json:"webViewLink,omitempty"`
	IconLink      string `json:"iconLink,omitempty"`
	ThumbnailLink string `json:"thumbnailLink,omitempty"`
}

type Upload struct {
	Name     string
	MimeType string
	Content  io.Reader
}

// Gateway runs Drive calls on behalf of a user. Every call takes the
// user's stored token and returns the token in use afterwards, which
// differs from the input when it had to be refreshed.
type Gateway struct {
	oauth *oauth2.Config
	opts  []option.ClientOption
}

func NewGateway(cfg config.GoogleConfig, opts ...option.ClientOption) *Gateway {
	return &Gateway{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       Scopes,
			Endpoint:     google.Endpoint,
		},
		opts: opts,
	}
}

// AuthCodeURL asks for offline access and forces the consent screen so
// Google hands out a refresh token.
func (g *Gateway) AuthCodeURL(state string) string {
	return g.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (g *Gateway) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange drive code: %w", err)
	}
	return token, nil
}

func (g *Gateway) List(ctx context.Context, token *oauth2.Token, pageSize int) ([]File, *oauth2.Token, error) {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}

	svc, ts, err := g.service(ctx, token)
	if err != nil {
		return nil, nil, err
	}

	res, err := svc.Files.List().PageSize(int64(pageSize)).Fields(listFields).Context(ctx).Do()
	if err != nil {
		return nil, nil, fmt.Errorf("list drive files: %w", err)
	}

	files := make([]File, 0, len(res.Files))
	for _, f := range res.Files {
		files = append(files, fromDrive(f))
	}

	current, err := ts.Token()
	if err != nil {
		return nil, nil, fmt.Errorf("current drive token: %w", err)
	}

	return files, current, nil
}

func (g *Gateway) Upload(ctx context.Context, token *oauth2.Token, upload Upload) (*File, *oauth2.Token, error) {
	svc, ts, err := g.service(ctx, token)
	if err != nil {
		return nil, nil, err
	}

	meta := &drive.File{Name: upload.Name, MimeType: upload.MimeType}

	created, err := svc.Files.Create(meta).
		Media(upload.Content, googleapi.ContentType(upload.MimeType)).
		Fields(fileFields).
		Context(ctx).
		Do()
	if err != nil {
		return nil, nil, fmt.Errorf("upload drive file: %w", err)
	}

	current, err := ts.Token()
	if err != nil {
		return nil, nil, fmt.Errorf("current drive token: %w", err)
	}

	file := fromDrive(created)
	return &file, current, nil
}

func (g *Gateway) Delete(ctx context.Context, token *oauth2.Token, fileID string) (*oauth2.Token, error) {
	svc, ts, err := g.service(ctx, token)
	if err != nil {
		return nil, err
	}

	if err := svc.Files.Delete(fileID).Context(ctx).Do(); err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("delete drive file: %w", err)
	}

	current, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("current drive token: %w", err)
	}

	return current, nil
}

func (g *Gateway) service(ctx context.Context, token *oauth2.Token) (*drive.Service, oauth2.TokenSource, error) {
	ts := g.oauth.TokenSource(ctx, token)

	opts := append([]option.ClientOption{option.WithTokenSource(ts)}, g.opts...)
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create drive service: %w", err)
	}

	return svc, ts, nil
}

func fromDrive(f *drive.File) File {
	return File{
		ID:            f.Id,
		Name:          f.Name,
		MimeType:      f.MimeType,
		WebViewLink:   f.WebViewLink,
		IconLink:      f.IconLink,
		ThumbnailLink: f.ThumbnailLink,
	}
}

// TokenFromModel rebuilds an oauth2 token from the stored row. A zero
// expiry means unknown and is treated as still valid.
func TokenFromModel(t *models.DriveToken) *oauth2.Token {
	token := &oauth2.Token{
		AccessToken: t.AccessToken,
		TokenType:   "Bearer",
	}
	if t.RefreshToken != nil {
		token.RefreshToken = *t.RefreshToken
	}
	if t.ExpiryDate > 0 {
		token.Expiry = time.UnixMilli(t.ExpiryDate)
	}
	return token
}

func TokenToModel(userID uuid.UUID, token *oauth2.Token) models.DriveToken {
	stored := models.DriveToken{
		UserID:      userID,
		AccessToken: token.AccessToken,
	}
	if token.RefreshToken != "" {
		refresh := token.RefreshToken
		stored.RefreshToken = &refresh
	}
	if !token.Expiry.IsZero() {
		stored.ExpiryDate = token.Expiry.UnixMilli()
	}
	return stored
}
