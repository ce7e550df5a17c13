package handler

import (
	"errors"
	"mime/multipart"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-progress-api/internal/service"
	"github.com/noah-isme/gema-progress-api/internal/utils"
)

// UploadHandler accepts attachment uploads and returns their references.
type UploadHandler struct {
	service service.UploadService
	logger  zerolog.Logger
}

// NewUploadHandler constructs an upload handler.
func NewUploadHandler(service service.UploadService, logger zerolog.Logger) *UploadHandler {
	return &UploadHandler{
		service: service,
		logger:  logger.With().Str("component", "upload_handler").Logger(),
	}
}

// uploadFields are the multipart field names accepted for attachments.
var uploadFields = []string{"files", "file"}

// Register wires upload routes.
func (h *UploadHandler) Register(router fiber.Router) {
	router.Post("", h.upload)
}

// upload stores every attachment in the form and answers 201 with the
// references to quote in a later submit.
func (h *UploadHandler) upload(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "multipart form with files is required")
	}

	var files []*multipart.FileHeader
	for _, field := range uploadFields {
		files = append(files, form.File[field]...)
	}

	result, err := h.service.Upload(c.UserContext(), files, actorFromContext(c))
	switch {
	case err == nil:
		return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "upload successful", result)
	case errors.Is(err, service.ErrUploadTooLarge):
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, err.Error())
	case service.IsUploadValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Int("files", len(files)).Msg("upload failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "upload failed")
	}
}
