package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/uengine-oss/robo-analyzer-vue3-sub003/internal/common"
	"github.com/uengine-oss/robo-analyzer-vue3-sub003/internal/common/telemetry"
)

// UploadFile is one source file sent to the parsing server. Name keeps the
// relative path from the uploaded tree so the backend can rebuild systems.
type UploadFile struct {
	Name    string
	Content []byte
}

// UploadMetadata is the metadata part of the multipart upload request.
type UploadMetadata struct {
	ProjectName string   `json:"projectName"`
	Systems     []string `json:"systems,omitempty"`
	DDL         []string `json:"ddl,omitempty"`
}

// UploadedFile is one server-side classification entry of the upload reply.
type UploadedFile struct {
	System   string `json:"system"`
	FileName string `json:"fileName"`
}

// UploadResult is the parsing server's view of the uploaded tree.
type UploadResult struct {
	ProjectName string         `json:"projectName"`
	SystemFiles []UploadedFile `json:"systemFiles"`
	DDLFiles    []string       `json:"ddlFiles"`
}

// Upload sends the project tree as multipart form data: one "metadata" JSON
// part plus one part per file.
func (c *Client) Upload(ctx context.Context, sess Session, meta UploadMetadata, files []UploadFile) (UploadResult, error) {
	logger := common.Logger()
	if strings.TrimSpace(meta.ProjectName) == "" {
		return UploadResult{}, fmt.Errorf("project name required")
	}
	if len(files) == 0 {
		return UploadResult{}, fmt.Errorf("no files provided")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return UploadResult{}, fmt.Errorf("encode metadata: %w", err)
	}
	if err := writer.WriteField("metadata", string(metaJSON)); err != nil {
		return UploadResult{}, fmt.Errorf("write metadata part: %w", err)
	}
	for _, file := range files {
		name := strings.TrimSpace(file.Name)
		if name == "" {
			return UploadResult{}, fmt.Errorf("file name required")
		}
		part, err := writer.CreateFormFile("files", name)
		if err != nil {
			return UploadResult{}, fmt.Errorf("create file part: %w", err)
		}
		if _, err := part.Write(file.Content); err != nil {
			return UploadResult{}, fmt.Errorf("write file part: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("finalize upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.parserBase+"/fileUpload", &buf)
	if err != nil {
		return UploadResult{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.decorate(req, sess)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	telemetry.RecordGatewayRequest("upload", time.Since(start))
	if err != nil {
		return UploadResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return UploadResult{}, statusErrorFromResponse("upload", resp)
	}
	var result UploadResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(&result); err != nil {
		return UploadResult{}, fmt.Errorf("decode upload response: %w", err)
	}
	logger.Info("gateway: upload accepted", "project", result.ProjectName, "files", len(result.SystemFiles), "ddl", len(result.DDLFiles))
	return result, nil
}
