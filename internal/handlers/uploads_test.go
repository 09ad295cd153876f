package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/google/uuid"

	"momolearn-backend/internal/models"
	"momolearn-backend/internal/services"
)

type stubUploadService struct {
	maxBytes int64
	stored   *services.UploadInput
	body     []byte
	err      error
}

func (s *stubUploadService) Store(ctx context.Context, userID uuid.UUID, in services.UploadInput) (*models.UploadDoc, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.stored = &in
	s.body, _ = io.ReadAll(in.Body)
	return &models.UploadDoc{ID: uuid.New(), UserID: userID}, nil
}

func (s *stubUploadService) Delete(ctx context.Context, userID, uploadID uuid.UUID) error {
	return nil
}

func (s *stubUploadService) MaxBytes() int64 { return s.maxBytes }

func multipartBody(t *testing.T, field, filename, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	part.Write(content)
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func uploadRequest(body *bytes.Buffer, contentType string) *http.Request {
	req := newRequest(http.MethodPost, "/uploads", body.Bytes(), uuid.New(), nil)
	req.Header.Set("Content-Type", contentType)
	return req
}

func TestUploadHandler_StoresPDF(t *testing.T) {
	svc := &stubUploadService{maxBytes: 1 << 20}
	h := NewUploadHandler(svc)

	body, ct := multipartBody(t, "file", "notes.pdf", "application/pdf", []byte("%PDF-1.4"))
	rr := httptest.NewRecorder()
	h.Upload(rr, uploadRequest(body, ct))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d (%s)", http.StatusCreated, rr.Code, rr.Body.String())
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, err := uuid.Parse(resp["uploadId"]); err != nil {
		t.Fatalf("expected uploadId, got %v", resp)
	}
	if svc.stored.ContentType != "application/pdf" || svc.stored.Filename != "notes.pdf" || svc.stored.Size != 8 {
		t.Fatalf("unexpected input %+v", svc.stored)
	}
	if string(svc.body) != "%PDF-1.4" {
		t.Fatalf("unexpected body %q", svc.body)
	}
}

func TestUploadHandler_Rejects(t *testing.T) {
	t.Run("service rejects non-PDF", func(t *testing.T) {
		svc := &stubUploadService{maxBytes: 1 << 20, err: &services.BadRequestError{Message: "Only PDF files are accepted"}}
		body, ct := multipartBody(t, "file", "a.png", "image/png", []byte("png"))
		rr := httptest.NewRecorder()
		NewUploadHandler(svc).Upload(rr, uploadRequest(body, ct))

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
		}
		if msg := decodeError(t, rr).Message; msg != "Only PDF files are accepted" {
			t.Fatalf("unexpected message %q", msg)
		}
	})

	t.Run("wrong field", func(t *testing.T) {
		svc := &stubUploadService{maxBytes: 1 << 20}
		body, ct := multipartBody(t, "document", "a.pdf", "application/pdf", []byte("%PDF"))
		rr := httptest.NewRecorder()
		NewUploadHandler(svc).Upload(rr, uploadRequest(body, ct))

		if rr.Code != http.StatusBadRequest || svc.stored != nil {
			t.Fatalf("expected 400 without storing, got %d", rr.Code)
		}
	})

	t.Run("not multipart", func(t *testing.T) {
		svc := &stubUploadService{maxBytes: 1 << 20}
		rr := httptest.NewRecorder()
		NewUploadHandler(svc).Upload(rr, newRequest(http.MethodPost, "/uploads", []byte(`{}`), uuid.New(), nil))

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
		}
	})

	t.Run("body over limit", func(t *testing.T) {
		svc := &stubUploadService{maxBytes: 16}
		body, ct := multipartBody(t, "file", "a.pdf", "application/pdf", bytes.Repeat([]byte("x"), multipartOverhead+64))
		rr := httptest.NewRecorder()
		NewUploadHandler(svc).Upload(rr, uploadRequest(body, ct))

		if rr.Code != http.StatusBadRequest || svc.stored != nil {
			t.Fatalf("expected 400 without storing, got %d", rr.Code)
		}
	})
}
