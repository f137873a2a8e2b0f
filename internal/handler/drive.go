package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/safar/go-storefront/internal/auth"
	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/drive"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/store"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const driveStateCookie = "drive-oauth-state"

type FileGateway interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	List(ctx context.Context, token *oauth2.Token, pageSize int) ([]drive.File, *oauth2.Token, error)
	Upload(ctx context.Context, token *oauth2.Token, upload drive.Upload) (*drive.File, *oauth2.Token, error)
	Delete(ctx context.Context, token *oauth2.Token, fileID string) (*oauth2.Token, error)
}

type DriveHandler struct {
	files  FileGateway
	db     *sql.DB
	log    logrus.FieldLogger
	secure bool
}

func NewDriveHandler(files FileGateway, db *sql.DB, log logrus.FieldLogger, baseURL string) *DriveHandler {
	return &DriveHandler{
		files:  files,
		db:     db,
		log:    log,
		secure: secureURL(baseURL),
	}
}

func (h *DriveHandler) Connect(c echo.Context) error {
	if _, ok := auth.UserFrom(c); !ok {
		return c.Redirect(http.StatusFound, "/login?error=auth-required")
	}

	state := oauth2.GenerateVerifier()
	h.setStateCookie(c, state, int((10 * time.Minute).Seconds()))

	return c.Redirect(http.StatusFound, h.files.AuthCodeURL(state))
}

// Callback stores the tokens Google hands back after consent.
func (h *DriveHandler) Callback(c echo.Context) error {
	ctx := c.Request().Context()

	code := c.QueryParam("code")
	if code == "" {
		return c.Redirect(http.StatusFound, "/login?error=no-code")
	}

	user, ok := auth.UserFrom(c)
	if !ok {
		return c.Redirect(http.StatusFound, "/login?error=not-authenticated")
	}

	state, err := c.Cookie(driveStateCookie)
	if err != nil || state.Value == "" || state.Value != c.QueryParam("state") {
		h.log.WithField("user_id", user.ID).Warn("drive callback state mismatch")
		return c.Redirect(http.StatusFound, "/drive?error=callback-failed")
	}

	token, err := h.files.Exchange(ctx, code)
	if err != nil {
		h.log.WithError(err).WithField("user_id", user.ID).Error("exchange drive code")
		return c.Redirect(http.StatusFound, "/drive?error=callback-failed")
	}

	if err := store.UpsertDriveToken(ctx, h.db, drive.TokenToModel(user.ID, token)); err != nil {
		h.log.WithError(err).WithField("user_id", user.ID).Error("store drive token")
		return c.Redirect(http.StatusFound, "/drive?error=token-storage-failed")
	}

	h.setStateCookie(c, "", -1)
	return c.Redirect(http.StatusFound, "/drive?success=true")
}

func (h *DriveHandler) setStateCookie(c echo.Context, value string, maxAge int) {
	c.SetCookie(&http.Cookie{
		Name:     driveStateCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *DriveHandler) ListFiles(c echo.Context) error {
	ctx := c.Request().Context()
	user, _ := auth.UserFrom(c)

	stored, ok, err := h.token(c, user.ID)
	if !ok {
		return err
	}

	files, current, err := h.files.List(ctx, drive.TokenFromModel(stored), drive.DefaultPageSize)
	if err != nil {
		h.log.WithError(err).WithField("user_id", user.ID).Error("list drive files")
		return respondError(c, http.StatusInternalServerError, "Failed to list files from Google Drive")
	}
	h.persistRefreshed(ctx, user.ID, stored, current)

	return c.JSON(http.StatusOK, files)
}

func (h *DriveHandler) Upload(c echo.Context) error {
	ctx := c.Request().Context()
	user, _ := auth.UserFrom(c)

	header, err := c.FormFile("file")
	if err != nil {
		return respondError(c, http.StatusBadRequest, "No file provided")
	}

	stored, ok, err := h.token(c, user.ID)
	if !ok {
		return err
	}

	content, err := header.Open()
	if err != nil {
		return respondError(c, http.StatusBadRequest, "Failed to read uploaded file")
	}
	defer content.Close()

	mimeType := header.Header.Get(echo.HeaderContentType)
	if mimeType == "" {
		mimeType = echo.MIMEOctetStream
	}

	file, current, err := h.files.Upload(ctx, drive.TokenFromModel(stored), drive.Upload{
		Name:     header.Filename,
		MimeType: mimeType,
		Content:  content,
	})
	if err != nil {
		h.log.WithError(err).WithField("user_id", user.ID).Error("upload drive file")
		return respondError(c, http.StatusInternalServerError, "Failed to upload file to Google Drive")
	}
	h.persistRefreshed(ctx, user.ID, stored, current)

	return c.JSON(http.StatusOK, file)
}

func (h *DriveHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	user, _ := auth.UserFrom(c)

	fileID := c.QueryParam("fileId")
	if fileID == "" {
		return respondError(c, http.StatusBadRequest, "No file ID provided")
	}

	stored, ok, err := h.token(c, user.ID)
	if !ok {
		return err
	}

	current, err := h.files.Delete(ctx, drive.TokenFromModel(stored), fileID)
	if err != nil {
		if errors.Is(err, drive.ErrFileNotFound) {
			return respondError(c, http.StatusNotFound, "File not found")
		}
		h.log.WithError(err).WithField("user_id", user.ID).Error("delete drive file")
		return respondError(c, http.StatusInternalServerError, "Failed to delete file from Google Drive")
	}
	h.persistRefreshed(ctx, user.ID, stored, current)

	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// CheckTokens reports whether the user connected Drive, masking the
// stored secrets.
func (h *DriveHandler) CheckTokens(c echo.Context) error {
	user, _ := auth.UserFrom(c)

	stored, err := store.GetDriveToken(c.Request().Context(), h.db, user.ID)
	if err != nil {
		if errors.Is(err, database.ErrDriveNotConnected) {
			return c.JSON(http.StatusOK, map[string]any{
				"hasTokens": false,
				"message":   "No Google Drive tokens found for this user",
				"user_id":   user.ID,
			})
		}
		h.log.WithError(err).WithField("user_id", user.ID).Error("check drive tokens")
		return respondError(c, http.StatusInternalServerError, "Failed to check for tokens")
	}

	var refresh *string
	if stored.RefreshToken != nil {
		masked := maskSecret(*stored.RefreshToken)
		refresh = &masked
	}

	return c.JSON(http.StatusOK, map[string]any{
		"hasTokens": true,
		"tokens": map[string]any{
			"access_token":  maskSecret(stored.AccessToken),
			"refresh_token": refresh,
			"expiry_date":   stored.ExpiryDate,
		},
		"user_id": user.ID,
	})
}

// token loads the user's Drive credentials, writing the error response
// itself when it cannot.
func (h *DriveHandler) token(c echo.Context, userID uuid.UUID) (*models.DriveToken, bool, error) {
	stored, err := store.GetDriveToken(c.Request().Context(), h.db, userID)
	if err != nil {
		if errors.Is(err, database.ErrDriveNotConnected) {
			return nil, false, respondError(c, http.StatusBadRequest, "Google Drive not connected")
		}
		h.log.WithError(err).WithField("user_id", userID).Error("get drive token")
		return nil, false, respondError(c, http.StatusInternalServerError, "Failed to retrieve Google Drive tokens")
	}
	if stored.AccessToken == "" {
		return nil, false, respondError(c, http.StatusBadRequest, "Invalid Google Drive token")
	}
	return stored, true, nil
}

func (h *DriveHandler) persistRefreshed(ctx context.Context, userID uuid.UUID, stored *models.DriveToken, current *oauth2.Token) {
	if current == nil || current.AccessToken == stored.AccessToken {
		return
	}
	if err := store.UpsertDriveToken(ctx, h.db, drive.TokenToModel(userID, current)); err != nil {
		h.log.WithError(err).WithField("user_id", userID).Warn("persist refreshed drive token")
	}
}

func maskSecret(secret string) string {
	const visible = 5
	runes := []rune(secret)
	if len(runes) <= visible {
		return strings.Repeat("•", 8)
	}
	return strings.Repeat("•", 8) + string(runes[len(runes)-visible:])
}
