package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"
	"time"

	"github.com/dafibh/loanledger/loanledger-backend/internal/domain"
	"github.com/dafibh/loanledger/loanledger-backend/internal/repository/storage"
	"github.com/dafibh/loanledger/loanledger-backend/internal/websocket"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	MaxImageSize   = 5 * 1024 * 1024 // 5MB
	MinImageWidth  = 50
	MinImageHeight = 50
	ThumbnailWidth = 200
	DisplayWidth   = 800
	JPEGQuality    = 85

	MaxFileNameLength = 255

	// DocumentURLExpiry is how long presigned document links stay valid
	DocumentURLExpiry = 15 * time.Minute
)

var (
	ErrImageTooLarge    = errors.New("file too large. Maximum size is 5MB")
	ErrInvalidFormat    = errors.New("invalid format. Supported: JPEG, PNG")
	ErrImageTooSmall    = errors.New("image too small. Minimum 50x50 pixels")
	ErrInvalidImageData = errors.New("invalid image data")
)

// AllowedExtensions maps extensions to content types
var AllowedExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// documentVariants are the stored renditions of every document. A zero width
// keeps the original size.
var documentVariants = []struct {
	name     string
	maxWidth int
}{
	{"thumb", ThumbnailWidth},
	{"display", DisplayWidth},
	{"original", 0},
}

// DocumentView is a document with short-lived links to its variants
type DocumentView struct {
	*domain.LoanDocument
	ThumbnailURL string `json:"thumbnailUrl"`
	DisplayURL   string `json:"displayUrl"`
	OriginalURL  string `json:"originalUrl"`
}

// DocumentService stores supporting images for loan applications
type DocumentService struct {
	docRepo   domain.LoanDocumentRepository
	loanRepo  domain.LoanApplicationRepository
	store     storage.ObjectStore
	publisher websocket.EventPublisher
}

// NewDocumentService creates a new DocumentService. A nil store disables
// uploads and listing.
func NewDocumentService(docRepo domain.LoanDocumentRepository, loanRepo domain.LoanApplicationRepository, store storage.ObjectStore, publisher websocket.EventPublisher) *DocumentService {
	if publisher == nil {
		publisher = &websocket.NoOpPublisher{}
	}
	return &DocumentService{
		docRepo:   docRepo,
		loanRepo:  loanRepo,
		store:     store,
		publisher: publisher,
	}
}

// IsEnabled indicates whether document storage is configured
func (s *DocumentService) IsEnabled() bool {
	return s != nil && s.store != nil
}

// ValidateImage validates image format and size
func (s *DocumentService) ValidateImage(data []byte, filename string) error {
	_, err := validateAndDecode(data, filename)
	return err
}

// validateAndDecode validates the image and returns the decoded image
func validateAndDecode(data []byte, filename string) (image.Image, error) {
	if len(data) > MaxImageSize {
		return nil, ErrImageTooLarge
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := AllowedExtensions[ext]; !ok {
		return nil, ErrInvalidFormat
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ErrInvalidImageData
	}

	bounds := img.Bounds()
	if bounds.Dx() < MinImageWidth || bounds.Dy() < MinImageHeight {
		return nil, ErrImageTooSmall
	}

	return img, nil
}

func (s *DocumentService) loanFor(ctx context.Context, actor Actor, loanID int32) (*domain.LoanApplication, error) {
	loan, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if !actor.canAccessUser(loan.ApplicantID) {
		return nil, domain.ErrForbidden
	}
	return loan, nil
}

// Upload validates an image, stores its variants and records the document
func (s *DocumentService) Upload(ctx context.Context, actor Actor, loanID int32, kind domain.DocumentKind, filename string, data []byte) (*DocumentView, error) {
	if !s.IsEnabled() {
		return nil, domain.ErrStorageDisabled
	}
	if !kind.IsValid() {
		return nil, domain.ErrDocumentKindInvalid
	}
	filename = filepath.Base(filename)
	if len(filename) > MaxFileNameLength {
		return nil, domain.ErrInvalidInput
	}

	loan, err := s.loanFor(ctx, actor, loanID)
	if err != nil {
		return nil, err
	}

	img, err := validateAndDecode(data, filename)
	if err != nil {
		return nil, err
	}

	docID := uuid.New()
	base := storage.DocumentObjectBase(loanID, docID.String())
	uploaded := make([]string, 0, len(documentVariants))

	for _, variant := range documentVariants {
		processed := img
		if variant.maxWidth > 0 && img.Bounds().Dx() > variant.maxWidth {
			processed = imaging.Resize(img, variant.maxWidth, 0, imaging.Lanczos)
		}

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, processed, &jpeg.Options{Quality: JPEGQuality}); err != nil {
			s.cleanup(ctx, uploaded)
			return nil, fmt.Errorf("failed to encode image: %w", err)
		}

		key := storage.VariantKey(base, variant.name)
		if _, err := s.store.Upload(ctx, key, bytes.NewReader(buf.Bytes()), "image/jpeg", int64(buf.Len())); err != nil {
			s.cleanup(ctx, uploaded)
			return nil, fmt.Errorf("failed to upload %s variant: %w", variant.name, err)
		}
		uploaded = append(uploaded, key)
	}

	doc, err := s.docRepo.Create(ctx, &domain.LoanDocument{
		ID:           docID,
		LoanID:       loanID,
		UploadedByID: actor.UserID,
		Kind:         kind,
		FileName:     filename,
		ObjectBase:   base,
	})
	if err != nil {
		s.cleanup(ctx, uploaded)
		return nil, err
	}

	log.Info().
		Int32("loan_id", loanID).
		Str("document_id", docID.String()).
		Str("kind", string(kind)).
		Msg("Loan document uploaded")

	view, err := s.view(ctx, doc)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(loan.ApplicantID, websocket.DocumentCreated(view))
	return view, nil
}

// List returns a loan's documents with presigned links
func (s *DocumentService) List(ctx context.Context, actor Actor, loanID int32) ([]*DocumentView, error) {
	if !s.IsEnabled() {
		return nil, domain.ErrStorageDisabled
	}
	if _, err := s.loanFor(ctx, actor, loanID); err != nil {
		return nil, err
	}

	docs, err := s.docRepo.ListByLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	views := make([]*DocumentView, 0, len(docs))
	for _, doc := range docs {
		view, err := s.view(ctx, doc)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// Delete removes a document and all of its variants. Uploaders may delete
// their own documents; reviewers may delete any.
func (s *DocumentService) Delete(ctx context.Context, actor Actor, loanID int32, docID uuid.UUID) error {
	if !s.IsEnabled() {
		return domain.ErrStorageDisabled
	}
	if _, err := s.loanFor(ctx, actor, loanID); err != nil {
		return err
	}

	doc, err := s.docRepo.GetByID(ctx, loanID, docID)
	if err != nil {
		return err
	}
	if doc.UploadedByID != actor.UserID && !actor.CanReview() {
		return domain.ErrForbidden
	}

	if err := s.docRepo.Delete(ctx, loanID, docID); err != nil {
		return err
	}

	keys := make([]string, 0, len(documentVariants))
	for _, variant := range documentVariants {
		keys = append(keys, storage.VariantKey(doc.ObjectBase, variant.name))
	}
	s.cleanup(ctx, keys)

	log.Info().
		Int32("loan_id", loanID).
		Str("document_id", docID.String()).
		Msg("Loan document deleted")
	return nil
}

func (s *DocumentService) view(ctx context.Context, doc *domain.LoanDocument) (*DocumentView, error) {
	urls := make(map[string]string, len(documentVariants))
	for _, variant := range documentVariants {
		url, err := s.store.GeneratePresignedURL(ctx, storage.VariantKey(doc.ObjectBase, variant.name), DocumentURLExpiry)
		if err != nil {
			return nil, fmt.Errorf("failed to sign %s variant: %w", variant.name, err)
		}
		urls[variant.name] = url
	}
	return &DocumentView{
		LoanDocument: doc,
		ThumbnailURL: urls["thumb"],
		DisplayURL:   urls["display"],
		OriginalURL:  urls["original"],
	}, nil
}

// cleanup removes stored objects, best effort
func (s *DocumentService) cleanup(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.store.Delete(ctx, key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to delete stored object")
		}
	}
}
