package evidence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

// Store uploads evidence files to a content-addressed store and returns the
// content identifier for each file.
type Store interface {
	Upload(ctx context.Context, fileName string, content []byte) (*UploadResult, error)
	UploadMany(ctx context.Context, files []File) []UploadResult
}

// File is one evidence file to upload.
type File struct {
	FileName string
	Content  []byte
}

// UploadResult carries the outcome of one upload. ContentID is empty and Err
// non-nil when the store was unreachable; LocalRef always points at the copy
// kept on disk.
type UploadResult struct {
	FileName  string
	ContentID string
	LocalRef  string
	Err       error
}

type Config struct {
	Endpoint string
	LocalDir string
}

type client struct {
	cfg  Config
	http *http.Client
	log  *zap.Logger
}

func NewClient(cfg Config, httpClient *http.Client, log *zap.Logger) Store {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &client{cfg: cfg, http: httpClient, log: log.Named("evidence.client")}
}

type addResponse struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

// Upload stores the file locally first, then pushes it to the store's
// /api/v0/add endpoint. A failed push still returns the local ref so the
// claim keeps a usable pointer to the file.
func (c *client) Upload(ctx context.Context, fileName string, content []byte) (*UploadResult, error) {
	res := UploadResult{FileName: fileName}

	localRef, err := c.saveLocal(fileName, content)
	if err != nil {
		return nil, fmt.Errorf("save evidence locally: %w", err)
	}
	res.LocalRef = localRef

	cid, err := c.add(ctx, fileName, content)
	if err != nil {
		res.Err = err
		c.log.Warn("evidence store upload failed",
			zap.String("file_name", fileName),
			zap.Error(err),
		)
		return &res, nil
	}
	res.ContentID = cid
	return &res, nil
}

// UploadMany uploads each file independently; one failed upload never blocks
// the rest. The returned slice is index-aligned with files.
func (c *client) UploadMany(ctx context.Context, files []File) []UploadResult {
	results := make([]UploadResult, 0, len(files))
	for _, f := range files {
		res, err := c.Upload(ctx, f.FileName, f.Content)
		if err != nil {
			results = append(results, UploadResult{FileName: f.FileName, Err: err})
			continue
		}
		results = append(results, *res)
	}
	return results
}

func (c *client) add(ctx context.Context, fileName string, content []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(content); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+"/api/v0/add", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("evidence store unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("evidence store returned %d: %s", resp.StatusCode, string(payload))
	}

	var parsed addResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode evidence store response: %w", err)
	}
	if parsed.Hash == "" {
		return "", fmt.Errorf("evidence store returned empty content id")
	}
	return parsed.Hash, nil
}

func (c *client) saveLocal(fileName string, content []byte) (string, error) {
	if err := os.MkdirAll(c.cfg.LocalDir, 0o755); err != nil {
		return "", err
	}
	ext := filepath.Ext(fileName)
	base := slug.Make(fileName[:len(fileName)-len(ext)])
	if base == "" {
		base = "evidence"
	}
	path := filepath.Join(c.cfg.LocalDir, base+ext)
	for i := 1; ; i++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		path = filepath.Join(c.cfg.LocalDir, fmt.Sprintf("%s-%d%s", base, i, ext))
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
