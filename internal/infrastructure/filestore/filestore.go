package filestore

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"resty.dev/v3"

	"parley-server/internal/config"
	"parley-server/internal/domain/prompt"
	"parley-server/internal/domain/provider"
	"parley-server/internal/infrastructure/logger"
	"parley-server/internal/utils/httpclients"
	"parley-server/internal/utils/platformerrors"
)

// Client talks to the file-storage service. The gateway never touches the
// filesystem: attachments are fetched by reference and, for vendors that
// want native handles, pushed to the vendor's file endpoint.
type Client struct {
	client *resty.Client
	log    zerolog.Logger

	mu         sync.Mutex
	vendorOnce map[string]string
}

// NewClient builds the file store client from configuration.
func NewClient(cfg *config.Config) *Client {
	client := httpclients.NewClient("FileStoreClient")
	client.SetBaseURL(strings.TrimRight(cfg.FileStoreURL, "/"))
	if cfg.FileStoreTimeout > 0 {
		client.SetTimeout(cfg.FileStoreTimeout)
	}
	if key := strings.TrimSpace(cfg.FileStoreKey); key != "" {
		client.SetHeader("X-Service-Key", key)
	}
	return &Client{
		client:     client,
		vendorOnce: map[string]string{},
		log:        logger.GetLogger(),
	}
}

// Fetch returns the raw bytes and content type for one file reference.
func (c *Client) Fetch(ctx context.Context, fileID string) (*prompt.File, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/%s/content", fileID))
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
			fmt.Sprintf("fetch file %s", fileID), err, "1c2d3e4f-5a6b-4c7d-8e8f-9a0b1c2d3e4f")
	}
	if resp.IsError() {
		if resp.StatusCode() == 404 {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeNotFound,
				fmt.Sprintf("file not found: %s", fileID), nil, "3e4f5a6b-7c8d-4e9f-8a0b-1c2d3e4f5a6b")
		}
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
			fmt.Sprintf("fetch file %s: status %d", fileID, resp.StatusCode()), nil, "5a6b7c8d-9e0f-4a1b-8c2d-3e4f5a6b7c8d")
	}

	return &prompt.File{
		ID:       fileID,
		MimeType: resp.Header().Get("Content-Type"),
		Name:     resp.Header().Get("X-File-Name"),
		Data:     resp.Bytes(),
	}, nil
}

// Resolve fetches every attachment and, for vendors requiring native file
// handles, ensures a vendor file id exists. Failures are attachment-scoped:
// a file that cannot be resolved is dropped with a warning, never failing
// the whole turn.
func (c *Client) Resolve(ctx context.Context, settings *provider.Settings, fileIDs []string) []prompt.File {
	files := make([]prompt.File, 0, len(fileIDs))
	for _, fileID := range fileIDs {
		file, err := c.Fetch(ctx, fileID)
		if err != nil {
			c.log.Warn().Err(err).Str("file_id", fileID).Msg("skipping unresolvable attachment")
			continue
		}

		if settings.Kind == provider.KindOpenAI {
			vendorID, err := c.ensureVendorFileID(ctx, settings, file)
			if err != nil {
				c.log.Warn().Err(err).Str("file_id", fileID).Msg("vendor upload failed, sending inline")
			} else {
				file.VendorFileID = vendorID
			}
		}

		files = append(files, *file)
	}
	return files
}

// ensureVendorFileID uploads the file to the vendor's files endpoint once
// per file reference and caches the returned handle.
func (c *Client) ensureVendorFileID(ctx context.Context, settings *provider.Settings, file *prompt.File) (string, error) {
	c.mu.Lock()
	cached, ok := c.vendorOnce[file.ID]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	name := file.Name
	if name == "" {
		name = file.ID
	}

	var response struct {
		ID string `json:"id"`
	}
	vendorClient := httpclients.NewClient("OpenAIFileClient")
	vendorClient.SetBaseURL(settings.BaseURL)
	vendorClient.SetHeader("Authorization", fmt.Sprintf("Bearer %s", settings.APIKey))

	resp, err := vendorClient.R().
		SetContext(ctx).
		SetMultipartFormData(map[string]string{"purpose": "assistants"}).
		SetMultipartField("file", name, file.MimeType, bytes.NewReader(file.Data)).
		SetResult(&response).
		Post("/files")
	if err != nil {
		return "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
			"vendor file upload failed", err, "7c8d9e0f-1a2b-4c3d-8e4f-5a6b7c8d9e0f")
	}
	if resp.IsError() {
		return "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
			fmt.Sprintf("vendor file upload failed: status %d", resp.StatusCode()), nil, "9e0f1a2b-3c4d-4e5f-8a6b-7c8d9e0f1a2b")
	}
	if response.ID == "" {
		return "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
			"vendor file upload returned no id", nil, "0f1a2b3c-4d5e-4f6a-8b7c-8d9e0f1a2b3c")
	}

	c.mu.Lock()
	c.vendorOnce[file.ID] = response.ID
	c.mu.Unlock()
	return response.ID, nil
}
