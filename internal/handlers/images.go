// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"mailsmith/internal/imaging"
	"mailsmith/internal/middleware"
	"mailsmith/internal/models"
	"mailsmith/internal/slug"
)

const (
	maxImageBytes     = 10 << 20
	presignedLifetime = 15 * time.Minute
	downloadTimeout   = 30 * time.Second
)

// errUnsupportedImage rejects ingests whose sniffed content type is not
// an accepted image format.
var errUnsupportedImage = errors.New("unsupported image type")

// allowedImageTypes are the content types the studio accepts, keyed to
// the stored file extension.
var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// imageAssetView is an ImageAsset plus resolved URLs for the original
// and its thumbnail.
type imageAssetView struct {
	*models.ImageAsset
	URL      string `json:"url"`
	ThumbURL string `json:"thumb_url,omitempty"`
}

// assetURL resolves a stored object to something a browser can fetch:
// a plain public URL for the public bucket, a presigned one otherwise.
func (a *API) assetURL(r *http.Request, bucket, key string) string {
	if bucket == a.storage.PublicBucket() {
		return a.storage.FileURL(key)
	}
	u, err := a.storage.PresignedURL(r.Context(), bucket, key, presignedLifetime)
	if err != nil {
		slog.Error("presign failed", "bucket", bucket, "key", key, "error", err)
		return ""
	}
	return u
}

func (a *API) assetView(r *http.Request, asset *models.ImageAsset) imageAssetView {
	v := imageAssetView{
		ImageAsset: asset,
		URL:        a.assetURL(r, asset.Bucket, asset.S3Key),
	}
	if asset.ThumbS3Key != nil {
		v.ThumbURL = a.assetURL(r, asset.Bucket, *asset.ThumbS3Key)
	}
	return v
}

// requireStorage writes a 503 when object storage is not configured.
func (a *API) requireStorage(w http.ResponseWriter) bool {
	if a.storage == nil {
		writeError(w, http.StatusServiceUnavailable, "object storage is not configured")
		return false
	}
	return true
}

// storeImage runs the shared ingest pipeline: sniff and check the
// content type, upload the original and a thumbnail to the public
// bucket, and record the asset row.
func (a *API) storeImage(r *http.Request, data []byte, declaredType, originalName string, source models.ImageAssetSource) (*models.ImageAsset, error) {
	sess := middleware.SessionFromCtx(r.Context())

	contentType := declaredType
	if _, ok := allowedImageTypes[contentType]; !ok {
		contentType = http.DetectContentType(data)
	}
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		return nil, fmt.Errorf("%w %q", errUnsupportedImage, contentType)
	}

	base := strings.TrimSuffix(originalName, path.Ext(originalName))
	name := slug.Generate(base)
	if name == "" {
		name = "image"
	}
	id := uuid.New()
	key := fmt.Sprintf("images/%s/%s-%s%s", sess.OrgID, id, name, ext)

	bucket := a.storage.PublicBucket()
	if err := a.storage.Upload(r.Context(), bucket, key, contentType, bytes.NewReader(data), int64(len(data))); err != nil {
		return nil, fmt.Errorf("upload original: %w", err)
	}

	// A broken thumbnail never fails the ingest; the original is already
	// safe in the bucket.
	var thumbKey *string
	thumb, err := imaging.GenerateThumbnail(data, contentType)
	if err != nil {
		slog.Warn("thumbnail generation failed", "key", key, "error", err)
	} else {
		tk := fmt.Sprintf("images/%s/thumbs/%s-%s%s", sess.OrgID, id, name, thumbExt(thumb.ContentType))
		if err := a.storage.Upload(r.Context(), bucket, tk, thumb.ContentType, bytes.NewReader(thumb.Data), int64(len(thumb.Data))); err != nil {
			slog.Warn("thumbnail upload failed", "key", tk, "error", err)
		} else {
			thumbKey = &tk
		}
	}

	asset, err := a.images.Create(&models.ImageAsset{
		OrgID:        sess.OrgID,
		Filename:     path.Base(key),
		OriginalName: originalName,
		ContentType:  contentType,
		SizeBytes:    int64(len(data)),
		Bucket:       bucket,
		S3Key:        key,
		ThumbS3Key:   thumbKey,
		Source:       source,
		UploaderID:   sess.UserID,
	})
	if err != nil {
		return nil, fmt.Errorf("record asset: %w", err)
	}
	return asset, nil
}

func thumbExt(contentType string) string {
	if contentType == "image/png" {
		return ".png"
	}
	return ".jpg"
}

// ListImages returns the organization's image assets with resolved URLs.
func (a *API) ListImages(w http.ResponseWriter, r *http.Request) {
	if !a.requireStorage(w) {
		return
	}
	sess := middleware.SessionFromCtx(r.Context())

	assets, err := a.images.ListByOrg(sess.OrgID)
	if err != nil {
		slog.Error("image list failed", "org_id", sess.OrgID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	views := make([]imageAssetView, 0, len(assets))
	for _, asset := range assets {
		views = append(views, a.assetView(r, asset))
	}
	writeJSON(w, http.StatusOK, map[string]any{"images": views})
}

// UploadImage ingests one multipart file upload.
func (a *API) UploadImage(w http.ResponseWriter, r *http.Request) {
	if !a.requireStorage(w) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes+(1<<20))
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	if len(data) > maxImageBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "image exceeds 10 MB limit")
		return
	}

	asset, err := a.storeImage(r, data, header.Header.Get("Content-Type"), header.Filename, models.ImageSourceUpload)
	if err != nil {
		if errors.Is(err, errUnsupportedImage) {
			writeError(w, http.StatusUnsupportedMediaType, "only JPEG, PNG, GIF and WebP images are accepted")
			return
		}
		slog.Error("image upload failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, a.assetView(r, asset))
}

type generateImageRequest struct {
	Prompt string `json:"prompt"`
}

// GenerateImage produces an image with the active AI provider and stores
// it through the same pipeline as uploads.
func (a *API) GenerateImage(w http.ResponseWriter, r *http.Request) {
	if !a.requireStorage(w) {
		return
	}

	var req generateImageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" || len(req.Prompt) > maxPromptLen {
		writeError(w, http.StatusBadRequest, "prompt is required and must be at most 4000 characters")
		return
	}

	if !a.registry.SupportsImageGeneration() {
		writeError(w, http.StatusNotImplemented, "the active AI provider does not support image generation")
		return
	}

	mod, err := a.registry.CheckPrompt(r.Context(), req.Prompt)
	if err != nil {
		slog.Warn("prompt moderation unavailable", "error", err)
	} else if !mod.Safe {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":      "prompt rejected by content moderation",
			"categories": mod.Categories,
		})
		return
	}

	data, contentType, err := a.registry.GenerateImage(r.Context(), req.Prompt)
	if err != nil {
		slog.Error("image generation failed", "error", err)
		writeError(w, http.StatusBadGateway, "image generation failed")
		return
	}

	name := slug.Generate(req.Prompt)
	if len(name) > 60 {
		name = name[:60]
	}
	asset, err := a.storeImage(r, data, contentType, name, models.ImageSourceGenerated)
	if err != nil {
		slog.Error("generated image store failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, a.assetView(r, asset))
}

// DownloadImage proxies a remote image URL into the studio's storage,
// so templates never hot-link third-party hosts.
func (a *API) DownloadImage(w http.ResponseWriter, r *http.Request) {
	if !a.requireStorage(w) {
		return
	}

	raw := r.URL.Query().Get("url")
	src, err := url.Parse(raw)
	if err != nil || (src.Scheme != "http" && src.Scheme != "https") || src.Host == "" {
		writeError(w, http.StatusBadRequest, "url must be an absolute http(s) URL")
		return
	}

	client := &http.Client{Timeout: downloadTimeout}
	resp, err := client.Get(src.String())
	if err != nil {
		slog.Warn("image download failed", "url", src.String(), "error", err)
		writeError(w, http.StatusBadGateway, "failed to download image")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("remote host returned status %d", resp.StatusCode))
		return
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to download image")
		return
	}
	if len(data) > maxImageBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "image exceeds 10 MB limit")
		return
	}

	asset, err := a.storeImage(r, data, resp.Header.Get("Content-Type"), path.Base(src.Path), models.ImageSourceDownload)
	if err != nil {
		if errors.Is(err, errUnsupportedImage) {
			writeError(w, http.StatusUnsupportedMediaType, "remote file is not a supported image")
			return
		}
		slog.Error("downloaded image store failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, a.assetView(r, asset))
}

// DeleteImage removes an asset from storage and the database.
func (a *API) DeleteImage(w http.ResponseWriter, r *http.Request) {
	if !a.requireStorage(w) {
		return
	}
	sess := middleware.SessionFromCtx(r.Context())

	id, ok := parseUUIDParam(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	asset, err := a.images.FindByID(id)
	if err != nil {
		slog.Error("image lookup failed", "image_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if asset == nil || asset.OrgID != sess.OrgID {
		writeError(w, http.StatusNotFound, "image not found")
		return
	}

	if err := a.storage.Delete(r.Context(), asset.Bucket, asset.S3Key); err != nil {
		slog.Warn("object delete failed", "key", asset.S3Key, "error", err)
	}
	if asset.ThumbS3Key != nil {
		if err := a.storage.Delete(r.Context(), asset.Bucket, *asset.ThumbS3Key); err != nil {
			slog.Warn("thumbnail delete failed", "key", *asset.ThumbS3Key, "error", err)
		}
	}
	if err := a.images.Delete(asset.ID); err != nil {
		slog.Error("image delete failed", "image_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
