package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/imagekit-developer/imagekit-go"
	"github.com/imagekit-developer/imagekit-go/api/uploader"
)

type ImageKitOptions struct {
	PublicKey   string
	PrivateKey  string
	URLEndpoint string
	Folder      string
	// UploadPrefix and APIPrefix override the SDK endpoints (both end in "/").
	UploadPrefix string
	APIPrefix    string
}

// ImageKitHost stores uploads through the ImageKit media API.
type ImageKitHost struct {
	ik     *imagekit.ImageKit
	folder string
}

func NewImageKitHost(opts ImageKitOptions) (*ImageKitHost, error) {
	if opts.PrivateKey == "" {
		return nil, fmt.Errorf("imagekit private key is required")
	}

	ik := imagekit.NewFromParams(imagekit.NewParams{
		PrivateKey:  opts.PrivateKey,
		PublicKey:   opts.PublicKey,
		UrlEndpoint: opts.URLEndpoint,
	})
	if opts.UploadPrefix != "" {
		ik.Uploader.Config.API.UploadPrefix = opts.UploadPrefix
	}
	if opts.APIPrefix != "" {
		ik.Media.Config.API.Prefix = opts.APIPrefix
	}
	return &ImageKitHost{ik: ik, folder: opts.Folder}, nil
}

func (h *ImageKitHost) Upload(ctx context.Context, r io.Reader, opts UploadOptions) (*UploadResult, error) {
	fileName := path.Base(filepath.ToSlash(opts.FileName))
	if fileName == "." || fileName == "/" {
		fileName = "upload"
	}

	unique := opts.UniqueName
	resp, err := h.ik.Uploader.Upload(ctx, r, uploader.UploadParam{
		FileName:          fileName,
		UseUniqueFileName: &unique,
		Tags:              strings.Join(opts.Tags, ","),
		Folder:            h.folder,
	})
	if resp == nil {
		if err == nil {
			err = fmt.Errorf("empty response")
		}
		return nil, fmt.Errorf("upload to media host: %w", err)
	}

	// the host's own status decides; transport level failures carry none
	status := resp.ResponseMetaData.StatusCode
	if err != nil && status == 0 {
		return nil, fmt.Errorf("upload to media host: %w", err)
	}

	result := &UploadResult{
		URL:        resp.Data.Url,
		Name:       resp.Data.Name,
		FileID:     resp.Data.FileId,
		StatusCode: status,
	}
	if status != http.StatusOK {
		result.Message = strings.TrimSpace(string(resp.ResponseMetaData.Body))
		if err != nil {
			result.Message = err.Error()
		}
	}
	return result, nil
}

func (h *ImageKitHost) Discard(ctx context.Context, res UploadResult) error {
	if res.FileID == "" {
		return fmt.Errorf("file id is required")
	}
	if _, err := h.ik.Media.DeleteFile(ctx, res.FileID); err != nil {
		return fmt.Errorf("delete from media host: %w", err)
	}
	return nil
}

var _ Host = (*ImageKitHost)(nil)
