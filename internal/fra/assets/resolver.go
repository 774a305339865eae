// Package assets resolves, fetches and deletes the photo evidence stored
// under {namespace}/{instanceId}/photos/{placeholderId}/{filename}.
package assets

import (
	"context"
	"net/http"
	"path"
	"strings"
	"time"

	apperrors "fra-engine/internal/common/errors"
	"fra-engine/internal/common/logger"
	"fra-engine/internal/models"
)

// ObjectStore is the blob store behind the resolver.
type ObjectStore interface {
	List(ctx context.Context, prefix string, limit int) ([]models.ObjectEntry, error)
	SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
	Remove(ctx context.Context, paths ...string) error
	Get(ctx context.Context, path string) ([]byte, string, error)
}

type Config struct {
	Namespace              string
	MaxPlaceholders        int
	MaxFilesPerPlaceholder int
	SignedURLTTL           time.Duration
	CallTimeout            time.Duration
	Budget                 time.Duration
}

func DefaultConfig() Config {
	return Config{
		Namespace:              "fra",
		MaxPlaceholders:        50,
		MaxFilesPerPlaceholder: 20,
		SignedURLTTL:           10 * time.Minute,
		CallTimeout:            5 * time.Second,
		Budget:                 20 * time.Second,
	}
}

type Resolver struct {
	store  ObjectStore
	cfg    Config
	logger logger.Logger
}

func NewResolver(store ObjectStore, cfg Config, log logger.Logger) *Resolver {
	def := DefaultConfig()
	if cfg.Namespace == "" {
		cfg.Namespace = def.Namespace
	}
	if cfg.MaxPlaceholders <= 0 {
		cfg.MaxPlaceholders = def.MaxPlaceholders
	}
	if cfg.MaxFilesPerPlaceholder <= 0 {
		cfg.MaxFilesPerPlaceholder = def.MaxFilesPerPlaceholder
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = def.SignedURLTTL
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	if cfg.Budget <= 0 {
		cfg.Budget = def.Budget
	}
	return &Resolver{store: store, cfg: cfg, logger: logger.Component(log, "fra-assets")}
}

// PhotoPrefix is the storage prefix owning every photo of an instance.
func (r *Resolver) PhotoPrefix(instanceID string) string {
	return r.cfg.Namespace + "/" + instanceID + "/photos/"
}

// DocumentPath is where an archived rendition of an instance is stored.
func (r *Resolver) DocumentPath(instanceID, filename string) string {
	return r.cfg.Namespace + "/" + instanceID + "/documents/" + filename
}

// Resolve lists every placeholder of the instance and signs its files,
// keeping the order storage listed the placeholders in. Failures are logged
// and the affected entries omitted; it never fails.
func (r *Resolver) Resolve(ctx context.Context, instanceID string) models.ResolvedAssets {
	start := time.Now()
	out := models.ResolvedAssets{Assets: models.AssetMap{}}

	placeholders := r.listPlaceholders(ctx, instanceID)
	if len(placeholders) == 0 {
		return out
	}

	results, complete := fanOut(ctx, len(placeholders), r.cfg.MaxPlaceholders, r.cfg.Budget,
		func(ctx context.Context, i int, emit func(models.Asset)) {
			ph := placeholders[i]
			for _, file := range r.listFiles(ctx, instanceID, ph) {
				url, err := r.sign(ctx, file.Path)
				if err != nil {
					r.logger.Warn("sign failed, photo omitted", map[string]interface{}{
						"instanceId": instanceID, "path": file.Path, "error": err,
					})
					continue
				}
				emit(models.Asset{Path: file.Path, Filename: file.Name, URL: url})
			}
		})

	total := 0
	for i, assets := range results {
		if len(assets) > 0 {
			out.Order = append(out.Order, placeholders[i].Name)
			out.Assets[placeholders[i].Name] = assets
			total += len(assets)
		}
	}

	fields := map[string]interface{}{
		"instanceId":   instanceID,
		"placeholders": len(out.Order),
		"assets":       total,
		"durationMs":   time.Since(start).Milliseconds(),
	}
	if !complete {
		r.logger.Warn("asset budget exhausted, continuing with partial set", fields)
	} else {
		r.logger.Debug("assets resolved", fields)
	}
	return out
}

// Fetch downloads the bytes of every resolved asset for embedding, under the
// same bounds and failure isolation as Resolve.
func (r *Resolver) Fetch(ctx context.Context, assets models.AssetMap) models.PhotoSet {
	keys := make([]string, 0, len(assets))
	for k := range assets {
		keys = append(keys, k)
	}

	results, complete := fanOut(ctx, len(keys), r.cfg.MaxPlaceholders, r.cfg.Budget,
		func(ctx context.Context, i int, emit func(models.Photo)) {
			for _, a := range assets[keys[i]] {
				callCtx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
				data, contentType, err := r.store.Get(callCtx, a.Path)
				cancel()
				if err != nil {
					r.logger.Warn("fetch failed, photo omitted", map[string]interface{}{"path": a.Path, "error": err})
					continue
				}
				if contentType == "" || contentType == "application/octet-stream" || contentType == "binary/octet-stream" {
					contentType = http.DetectContentType(data)
				}
				emit(models.Photo{Asset: a, ContentType: contentType, Data: data})
			}
		})
	if !complete {
		r.logger.Warn("photo fetch budget exhausted, continuing with partial set", map[string]interface{}{"placeholders": len(keys)})
	}

	out := models.PhotoSet{}
	for i, photos := range results {
		if len(photos) > 0 {
			out[keys[i]] = photos
		}
	}
	return out
}

// DeletePhoto removes one photo. The path must lie under the instance's own
// photo prefix; storage is not called otherwise. Storage errors surface.
func (r *Resolver) DeletePhoto(ctx context.Context, instanceID, p string) error {
	if err := r.checkPhotoPath(instanceID, p); err != nil {
		return err
	}
	callCtx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
	defer cancel()
	if err := r.store.Remove(callCtx, p); err != nil {
		return apperrors.NewStorageError("delete", err)
	}
	r.logger.Info("photo deleted", map[string]interface{}{"instanceId": instanceID, "path": p})
	return nil
}

func (r *Resolver) checkPhotoPath(instanceID, p string) error {
	if instanceID == "" || strings.ContainsAny(instanceID, "/\\") || instanceID == "." || instanceID == ".." {
		return apperrors.NewInvalidPathError(p)
	}
	prefix := r.PhotoPrefix(instanceID)
	if !strings.HasPrefix(p, prefix) {
		return apperrors.NewInvalidPathError(p)
	}
	rest := strings.TrimPrefix(p, prefix)
	if rest == "" || strings.Contains(p, "\\") || path.Clean(p) != p {
		return apperrors.NewInvalidPathError(p)
	}
	for _, seg := range strings.Split(rest, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return apperrors.NewInvalidPathError(p)
		}
	}
	return nil
}

func (r *Resolver) listPlaceholders(ctx context.Context, instanceID string) []models.ObjectEntry {
	callCtx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
	defer cancel()

	entries, err := r.store.List(callCtx, r.PhotoPrefix(instanceID), r.cfg.MaxPlaceholders)
	if err != nil {
		r.logger.Warn("photo listing failed, continuing without photos", map[string]interface{}{
			"instanceId": instanceID, "error": err,
		})
		return nil
	}
	var out []models.ObjectEntry
	for _, e := range entries {
		if e.IsPrefix && e.Name != "" {
			out = append(out, e)
		}
		if len(out) == r.cfg.MaxPlaceholders {
			break
		}
	}
	return out
}

func (r *Resolver) listFiles(ctx context.Context, instanceID string, ph models.ObjectEntry) []models.ObjectEntry {
	callCtx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
	defer cancel()

	entries, err := r.store.List(callCtx, r.PhotoPrefix(instanceID)+ph.Name+"/", r.cfg.MaxFilesPerPlaceholder)
	if err != nil {
		r.logger.Warn("placeholder listing failed", map[string]interface{}{
			"instanceId": instanceID, "placeholder": ph.Name, "error": err,
		})
		return nil
	}
	var out []models.ObjectEntry
	for _, e := range entries {
		if e.IsPrefix || e.Name == "" || strings.HasPrefix(e.Name, ".") {
			continue
		}
		out = append(out, e)
		if len(out) == r.cfg.MaxFilesPerPlaceholder {
			break
		}
	}
	return out
}

func (r *Resolver) sign(ctx context.Context, p string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
	defer cancel()
	return r.store.SignedURL(callCtx, p, r.cfg.SignedURLTTL)
}
