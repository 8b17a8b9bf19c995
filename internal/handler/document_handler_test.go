package handler

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dafibh/loanledger/loanledger-backend/internal/domain"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestImageData creates a valid JPEG image for testing
func createTestImageData(width, height int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 0, B: 0, A: 255})
		}
	}
	var buf bytes.Buffer
	jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85})
	return buf.Bytes()
}

// createMultipartForm creates a multipart form with file data
func createMultipartForm(fieldName, filename string, data []byte, kind string) (*bytes.Buffer, string) {
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)

	part, _ := writer.CreateFormFile(fieldName, filename)
	part.Write(data)

	if kind != "" {
		writer.WriteField("kind", kind)
	}

	writer.Close()
	return body, writer.FormDataContentType()
}

func (s *testServer) upload(loanID int32, filename string, data []byte, kind string, user *domain.User) *httptest.ResponseRecorder {
	body, contentType := createMultipartForm("file", filename, data, kind)
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/loans/%d/documents", loanID), body)
	req.Header.Set(echo.HeaderContentType, contentType)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+s.token(user))
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func TestDocuments_StorageDisabled(t *testing.T) {
	s := newTestServer(t, false)
	loan := s.createLoan("5000", 6)

	rec := s.upload(loan.ID, "id.jpg", createTestImageData(100, 100), "id_card", s.customer)
	assertProblem(t, rec, http.StatusServiceUnavailable, "")

	rec = s.request(http.MethodGet, fmt.Sprintf("/api/v1/loans/%d/documents", loan.ID), nil, s.customer)
	assertProblem(t, rec, http.StatusServiceUnavailable, "")
}

func TestDocuments_UploadListDelete(t *testing.T) {
	s := newTestServer(t, true)
	loan := s.createLoan("5000", 6)

	rec := s.upload(loan.ID, "payslip.jpg", createTestImageData(300, 200), "payslip", s.customer)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	doc := decode[DocumentResponse](t, rec)
	assert.Equal(t, "payslip", doc.Kind)
	assert.Equal(t, "payslip.jpg", doc.FileName)
	assert.Equal(t, s.customer.ID.String(), doc.UploadedByID)
	assert.Contains(t, doc.ThumbnailURL, "https://storage.test/")
	assert.Len(t, s.store.Keys(), 3)

	rec = s.request(http.MethodGet, fmt.Sprintf("/api/v1/loans/%d/documents", loan.ID), nil, s.officer)
	require.Equal(t, http.StatusOK, rec.Code)
	docs := decode[[]DocumentResponse](t, rec)
	require.Len(t, docs, 1)
	assert.Equal(t, doc.ID, docs[0].ID)

	path := fmt.Sprintf("/api/v1/loans/%d/documents/%s", loan.ID, doc.ID)
	rec = s.request(http.MethodDelete, path, nil, s.customer)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, s.store.Keys())

	rec = s.request(http.MethodDelete, path, nil, s.customer)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDocuments_UploadValidation(t *testing.T) {
	s := newTestServer(t, true)
	loan := s.createLoan("5000", 6)

	rec := s.upload(loan.ID, "tiny.jpg", createTestImageData(20, 20), "", s.customer)
	assertProblem(t, rec, http.StatusBadRequest, "file")

	rec = s.upload(loan.ID, "scan.gif", createTestImageData(100, 100), "", s.customer)
	assertProblem(t, rec, http.StatusBadRequest, "file")

	rec = s.upload(loan.ID, "id.jpg", createTestImageData(100, 100), "selfie", s.customer)
	assertProblem(t, rec, http.StatusBadRequest, "kind")

	stranger := s.seedUser("stranger", domain.RoleCustomer)
	rec = s.upload(loan.ID, "id.jpg", createTestImageData(100, 100), "id_card", stranger)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.request(http.MethodDelete, fmt.Sprintf("/api/v1/loans/%d/documents/not-a-uuid", loan.ID), nil, s.customer)
	assertProblem(t, rec, http.StatusBadRequest, "docId")
}
