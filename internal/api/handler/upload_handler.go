package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taxtooter/support-api/internal/core/domain"
	"github.com/taxtooter/support-api/internal/core/ports"
)

type UploadHandler struct {
	files ports.FileService
}

func NewUploadHandler(files ports.FileService) *UploadHandler {
	return &UploadHandler{files: files}
}

// Upload handles POST /api/upload.
//
// @Summary      Upload a file
// @Tags         upload
// @Accept       mpfd
// @Produce      json
// @Security     BearerAuth
// @Param        file  formData  file  true  "File"
// @Success      200   {object}  uploadResponse
// @Failure      400   {object}  errorResponse
// @Failure      413   {object}  errorResponse
// @Router       /api/upload [post]
func (h *UploadHandler) Upload(c echo.Context) error {
	upload, cleanup, err := formUpload(c, "file")
	if err != nil {
		return err
	}
	defer cleanup()
	if upload == nil {
		return MapError(domain.ErrFileRequired)
	}

	ref, err := h.files.Upload(c.Request().Context(), *upload)
	if err != nil {
		return MapError(err)
	}
	return c.JSON(http.StatusOK, uploadResponse{URL: ref.Path, Key: ref.Key})
}

// SignedURL handles GET /api/upload/signed-url?key=.
//
// @Summary      Get a temporary download URL
// @Tags         upload
// @Produce      json
// @Security     BearerAuth
// @Param        key  query     string  true  "Object key"
// @Success      200  {object}  signedURLResponse
// @Failure      400  {object}  errorResponse
// @Router       /api/upload/signed-url [get]
func (h *UploadHandler) SignedURL(c echo.Context) error {
	key := c.QueryParam("key")
	if key == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "key is required")
	}

	url, ttl, err := h.files.SignedURL(c.Request().Context(), key)
	if err != nil {
		return MapError(err)
	}
	return c.JSON(http.StatusOK, signedURLResponse{URL: url, ExpiresIn: int(ttl.Seconds())})
}
