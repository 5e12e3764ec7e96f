package wikiai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/wikiai/kbclient/pkg/client"
	"github.com/wikiai/kbclient/pkg/types"
)

// FilesService manages knowledge-base documents: listing, content access,
// upload, editing, deletion, and reindexing.
type FilesService struct {
	s *Service
}

// Document describes one stored file.
type Document struct {
	Filename         string `json:"filename"`
	OriginalFilename string `json:"original_filename,omitempty"`
	Size             int64  `json:"size,omitempty"`
	UploadedAt       string `json:"uploaded_at,omitempty"`
}

// FileContent is a document's content; binary files arrive base64-encoded.
type FileContent struct {
	Content  string `json:"content"`
	IsBinary bool   `json:"isBinary"`
}

// Upload is one file to send to the backend.
type Upload struct {
	Filename string
	Content  io.Reader
}

// List returns the stored documents. Results are cached briefly since the
// listing backs several views.
func (f *FilesService) List(ctx context.Context, token string) ([]Document, error) {
	result, err := do[struct {
		Documents []Document `json:"documents"`
	}](ctx, f.s, client.Request{
		URL:      "/files/list",
		Token:    token,
		Cache:    true,
		CacheTTL: 30 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	return result.Documents, nil
}

// Content fetches a document's content. The backend returns either a JSON
// body with base64 content for binary files or the plain text itself.
func (f *FilesService) Content(ctx context.Context, token, filename string) (*FileContent, error) {
	env, err := f.s.http.Do(ctx, client.Request{
		URL:   "/files/content/" + url.PathEscape(filename),
		Token: token,
	})
	if err != nil {
		return nil, err
	}
	if err := env.Err(); err != nil {
		return nil, err
	}

	var content FileContent
	if json.Valid(bytes.TrimSpace(env.Raw)) {
		if err := json.Unmarshal(env.Raw, &content); err == nil && content.Content != "" {
			return &content, nil
		}
	}
	return &FileContent{Content: string(env.Raw), IsBinary: false}, nil
}

// UploadFiles sends one or more files as a multipart form, each under the
// "file" field.
func (f *FilesService) UploadFiles(ctx context.Context, token string, uploads []Upload) (*types.Envelope, error) {
	body, contentType, err := buildUploadForm(uploads)
	if err != nil {
		return nil, err
	}
	return f.s.http.Do(ctx, client.Request{
		URL:    "/upload",
		Method: http.MethodPost,
		Token:  token,
		Multipart: &client.MultipartBody{
			Body:        body,
			ContentType: contentType,
		},
	})
}

func buildUploadForm(uploads []Upload) ([]byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, upload := range uploads {
		part, err := writer.CreateFormFile("file", upload.Filename)
		if err != nil {
			return nil, "", fmt.Errorf("create form file %s: %w", upload.Filename, err)
		}
		if _, err := io.Copy(part, upload.Content); err != nil {
			return nil, "", fmt.Errorf("write form file %s: %w", upload.Filename, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("finish multipart form: %w", err)
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}

// Edit replaces a document's content.
func (f *FilesService) Edit(ctx context.Context, token, filename, newContent string) (*types.Envelope, error) {
	return doEnvelope(ctx, f.s, client.Request{
		URL:    "/files/edit",
		Method: http.MethodPost,
		Token:  token,
		Body:   map[string]string{"filename": filename, "new_content": newContent},
	})
}

// DeleteByID removes a document by its file ID.
func (f *FilesService) DeleteByID(ctx context.Context, token, fileID string) (*types.Envelope, error) {
	return doEnvelope(ctx, f.s, client.Request{
		URL:    "/files/delete_by_fileid",
		Method: http.MethodDelete,
		Token:  token,
		Body:   map[string]string{"file_id": fileID},
	})
}

// DeleteByFilename removes a document by name.
func (f *FilesService) DeleteByFilename(ctx context.Context, token, filename string) (*types.Envelope, error) {
	return doEnvelope(ctx, f.s, client.Request{
		URL:    "/files/delete_by_filename",
		Method: http.MethodDelete,
		Token:  token,
		Params: map[string]string{"filename": filename},
	})
}

// Index triggers a reindex of all stored documents.
func (f *FilesService) Index(ctx context.Context, token string) (*types.Envelope, error) {
	return doEnvelope(ctx, f.s, client.Request{
		URL:    "/files/index",
		Method: http.MethodPost,
		Token:  token,
		Body:   map[string]string{},
	})
}
