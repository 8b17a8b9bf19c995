package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/dafibh/loanledger/loanledger-backend/internal/domain"
	"github.com/dafibh/loanledger/loanledger-backend/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// DocumentHandler handles loan document HTTP requests
type DocumentHandler struct {
	documentService *service.DocumentService
}

// NewDocumentHandler creates a new DocumentHandler
func NewDocumentHandler(documentService *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

// DocumentResponse represents a stored document in API responses
type DocumentResponse struct {
	ID           string `json:"id"`
	LoanID       int32  `json:"loanId"`
	UploadedByID string `json:"uploadedById"`
	Kind         string `json:"kind"`
	FileName     string `json:"fileName"`
	ThumbnailURL string `json:"thumbnailUrl"`
	DisplayURL   string `json:"displayUrl"`
	OriginalURL  string `json:"originalUrl"`
	CreatedAt    string `json:"createdAt"`
}

func toDocumentResponse(v *service.DocumentView) DocumentResponse {
	return DocumentResponse{
		ID:           v.ID.String(),
		LoanID:       v.LoanID,
		UploadedByID: v.UploadedByID.String(),
		Kind:         string(v.Kind),
		FileName:     v.FileName,
		ThumbnailURL: v.ThumbnailURL,
		DisplayURL:   v.DisplayURL,
		OriginalURL:  v.OriginalURL,
		CreatedAt:    v.CreatedAt.Format(time.RFC3339),
	}
}

func imageError(c echo.Context, err error) error {
	switch err {
	case service.ErrImageTooLarge, service.ErrInvalidFormat, service.ErrImageTooSmall, service.ErrInvalidImageData:
		return NewValidationError(c, "Validation failed", []ValidationError{
			{Field: "file", Message: err.Error()},
		})
	}
	return writeServiceError(c, err, "Failed to upload document")
}

// UploadDocument handles POST /api/v1/loans/:id/documents
func (h *DocumentHandler) UploadDocument(c echo.Context) error {
	// If storage isn't configured, don't attempt to process the upload
	if h.documentService == nil || !h.documentService.IsEnabled() {
		return NewServiceUnavailableError(c, "Document uploads are disabled (storage not configured)")
	}

	loanID, err := loanIDParam(c)
	if err != nil {
		return err
	}

	file, err := c.FormFile("file")
	if err != nil {
		return NewValidationError(c, "No file provided", []ValidationError{
			{Field: "file", Message: "File is required"},
		})
	}

	kind := domain.DocumentKind(c.FormValue("kind"))
	if kind == "" {
		kind = domain.DocumentKindOther
	}

	src, err := file.Open()
	if err != nil {
		log.Error().Err(err).Msg("Failed to open uploaded file")
		return NewInternalError(c, "Failed to process file")
	}
	defer src.Close()

	// Read one byte past the limit so oversized files are still rejected as such
	data, err := io.ReadAll(io.LimitReader(src, service.MaxImageSize+1))
	if err != nil {
		log.Error().Err(err).Msg("Failed to read uploaded file")
		return NewInternalError(c, "Failed to read file")
	}

	view, err := h.documentService.Upload(c.Request().Context(), actorFrom(c), loanID, kind, file.Filename, data)
	if err != nil {
		return imageError(c, err)
	}
	return c.JSON(http.StatusCreated, toDocumentResponse(view))
}

// GetDocuments handles GET /api/v1/loans/:id/documents
func (h *DocumentHandler) GetDocuments(c echo.Context) error {
	if h.documentService == nil || !h.documentService.IsEnabled() {
		return NewServiceUnavailableError(c, "Documents are unavailable (storage not configured)")
	}

	loanID, err := loanIDParam(c)
	if err != nil {
		return err
	}

	views, err := h.documentService.List(c.Request().Context(), actorFrom(c), loanID)
	if err != nil {
		return writeServiceError(c, err, "Failed to list documents")
	}

	response := make([]DocumentResponse, len(views))
	for i, v := range views {
		response[i] = toDocumentResponse(v)
	}
	return c.JSON(http.StatusOK, response)
}

// DeleteDocument handles DELETE /api/v1/loans/:id/documents/:docId
func (h *DocumentHandler) DeleteDocument(c echo.Context) error {
	if h.documentService == nil || !h.documentService.IsEnabled() {
		return NewServiceUnavailableError(c, "Document deletion is disabled (storage not configured)")
	}

	loanID, err := loanIDParam(c)
	if err != nil {
		return err
	}
	docID, err := uuid.Parse(c.Param("docId"))
	if err != nil {
		return NewValidationError(c, "Invalid document ID", []ValidationError{
			{Field: "docId", Message: "Must be a valid UUID"},
		})
	}

	if err := h.documentService.Delete(c.Request().Context(), actorFrom(c), loanID, docID); err != nil {
		return writeServiceError(c, err, "Failed to delete document")
	}
	return c.NoContent(http.StatusNoContent)
}
