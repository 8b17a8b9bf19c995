package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/dafibh/loanledger/loanledger-backend/internal/domain"
	"github.com/dafibh/loanledger/loanledger-backend/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestImage creates a test image of the specified size and format
func createTestImage(width, height int, format string) ([]byte, string) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 0, B: 0, A: 255})
		}
	}

	var buf bytes.Buffer
	var filename string

	switch format {
	case "png":
		png.Encode(&buf, img)
		filename = "test.png"
	default:
		jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85})
		filename = "test.jpg"
	}

	return buf.Bytes(), filename
}

type documentFixture struct {
	svc      *DocumentService
	docs     *testutil.MockLoanDocumentRepository
	store    *testutil.MockObjectStore
	loans    *testutil.MockLoanApplicationRepository
	users    *testutil.MockUserRepository
	customer *domain.User
	officer  *domain.User
	loan     *domain.LoanApplication
}

func newDocumentFixture() *documentFixture {
	lf := newLoanFixture()
	docs := testutil.NewMockLoanDocumentRepository()
	store := testutil.NewMockObjectStore()
	return &documentFixture{
		svc:      NewDocumentService(docs, lf.loans, store, lf.publisher),
		docs:     docs,
		store:    store,
		loans:    lf.loans,
		users:    lf.users,
		customer: lf.customer,
		officer:  lf.officer,
		loan:     lf.addLoan("10000", "8.5", 12),
	}
}

func TestValidateImage(t *testing.T) {
	svc := NewDocumentService(nil, nil, nil, nil)
	jpg, jpgName := createTestImage(100, 100, "jpeg")
	pngData, pngName := createTestImage(100, 100, "png")
	small, smallName := createTestImage(40, 100, "png")

	tests := []struct {
		name     string
		data     []byte
		filename string
		expected error
	}{
		{"valid jpeg", jpg, jpgName, nil},
		{"valid png", pngData, pngName, nil},
		{"too large", make([]byte, MaxImageSize+1), "big.jpg", ErrImageTooLarge},
		{"bad extension", jpg, "scan.gif", ErrInvalidFormat},
		{"not an image", []byte("plain text"), "fake.png", ErrInvalidImageData},
		{"too small", small, smallName, ErrImageTooSmall},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.ValidateImage(tt.data, tt.filename)
			if tt.expected == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestDocumentService_Disabled(t *testing.T) {
	svc := NewDocumentService(testutil.NewMockLoanDocumentRepository(), nil, nil, nil)
	assert.False(t, svc.IsEnabled())

	_, err := svc.Upload(context.Background(), Actor{}, 1, domain.DocumentKindPayslip, "a.jpg", nil)
	assert.ErrorIs(t, err, domain.ErrStorageDisabled)
	_, err = svc.List(context.Background(), Actor{}, 1)
	assert.ErrorIs(t, err, domain.ErrStorageDisabled)
	assert.ErrorIs(t, svc.Delete(context.Background(), Actor{}, 1, uuid.New()), domain.ErrStorageDisabled)
}

func TestDocumentService_UploadListDelete(t *testing.T) {
	f := newDocumentFixture()
	ctx := context.Background()
	data, filename := createTestImage(1200, 600, "png")

	view, err := f.svc.Upload(ctx, actorFor(f.customer), f.loan.ID, domain.DocumentKindIDCard, filename, data)
	require.NoError(t, err)

	assert.Equal(t, f.loan.ID, view.LoanID)
	assert.Equal(t, f.customer.ID, view.UploadedByID)
	assert.Equal(t, "test.png", view.FileName)
	assert.Contains(t, view.ThumbnailURL, "_thumb.jpg")
	assert.Contains(t, view.DisplayURL, "_display.jpg")
	assert.Contains(t, view.OriginalURL, "_original.jpg")

	keys := f.store.Keys()
	require.Len(t, keys, 3)
	for _, key := range keys {
		assert.True(t, strings.HasPrefix(key, view.ObjectBase), key)
	}

	display, _, err := image.Decode(bytes.NewReader(f.store.Objects[view.ObjectBase+"_display.jpg"]))
	require.NoError(t, err)
	assert.Equal(t, DisplayWidth, display.Bounds().Dx())
	assert.Equal(t, 400, display.Bounds().Dy())

	listed, err := f.svc.List(ctx, actorFor(f.officer), f.loan.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, view.ID, listed[0].ID)

	stranger := seedUser(f.users, "stranger", domain.RoleCustomer)
	_, err = f.svc.List(ctx, actorFor(stranger), f.loan.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	require.NoError(t, f.svc.Delete(ctx, actorFor(f.customer), f.loan.ID, view.ID))
	assert.Empty(t, f.store.Keys())
	assert.ErrorIs(t, f.svc.Delete(ctx, actorFor(f.customer), f.loan.ID, view.ID), domain.ErrDocumentNotFound)
}

func TestDocumentService_Upload_Rejections(t *testing.T) {
	f := newDocumentFixture()
	ctx := context.Background()
	data, filename := createTestImage(100, 100, "jpeg")

	_, err := f.svc.Upload(ctx, actorFor(f.customer), f.loan.ID, domain.DocumentKind("selfie"), filename, data)
	assert.ErrorIs(t, err, domain.ErrDocumentKindInvalid)

	_, err = f.svc.Upload(ctx, actorFor(f.customer), 999, domain.DocumentKindPayslip, filename, data)
	assert.ErrorIs(t, err, domain.ErrLoanNotFound)

	_, err = f.svc.Upload(ctx, actorFor(f.customer), f.loan.ID, domain.DocumentKindPayslip, "doc.bmp", data)
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestDocumentService_Upload_CleansUpOnFailure(t *testing.T) {
	f := newDocumentFixture()
	data, filename := createTestImage(100, 100, "jpeg")

	f.store.UploadFn = func(key string, _ []byte) error {
		if strings.HasSuffix(key, "_original.jpg") {
			return errors.New("bucket unavailable")
		}
		return nil
	}

	_, err := f.svc.Upload(context.Background(), actorFor(f.customer), f.loan.ID, domain.DocumentKindPayslip, filename, data)
	require.Error(t, err)
	assert.Empty(t, f.store.Keys())
	assert.Empty(t, f.docs.Documents)
}

func TestDocumentService_Delete_OtherUploader(t *testing.T) {
	f := newDocumentFixture()
	ctx := context.Background()
	data, filename := createTestImage(100, 100, "jpeg")

	view, err := f.svc.Upload(ctx, actorFor(f.officer), f.loan.ID, domain.DocumentKindOther, filename, data)
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Delete(ctx, actorFor(f.customer), f.loan.ID, view.ID), domain.ErrForbidden)
	assert.NoError(t, f.svc.Delete(ctx, actorFor(f.officer), f.loan.ID, view.ID))
}
