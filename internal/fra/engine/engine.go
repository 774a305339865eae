// Package engine wires the FRA components together: it validates the
// instance, maps its responses, resolves photos and hands the shared section
// content to the JSON view or the OOXML writer.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "fra-engine/internal/common/errors"
	"fra-engine/internal/common/logger"
	"fra-engine/internal/common/metrics"
	"fra-engine/internal/fra/assembler"
	"fra-engine/internal/fra/docx"
	"fra-engine/internal/fra/mapping"
	"fra-engine/internal/fra/overlay"
	"fra-engine/internal/fra/store"
	"fra-engine/internal/models"
)

// AssetResolver is the photo side of the engine.
type AssetResolver interface {
	Resolve(ctx context.Context, instanceID string) models.ResolvedAssets
	Fetch(ctx context.Context, assets models.AssetMap) models.PhotoSet
	DeletePhoto(ctx context.Context, instanceID, path string) error
}

type Options struct {
	TemplateCategory string
	Version          string
	EmbedPhotos      bool
}

type Engine struct {
	store    store.Store
	mapper   *mapping.Mapper
	assets   AssetResolver
	overlay  *overlay.Service
	opts     Options
	logger   logger.Logger
	now      func() time.Time
	newBuild func() string
}

func New(st store.Store, mapper *mapping.Mapper, assets AssetResolver, opts Options, log logger.Logger) *Engine {
	if opts.TemplateCategory == "" {
		opts.TemplateCategory = "fire_risk_assessment"
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	return &Engine{
		store:   st,
		mapper:  mapper,
		assets:  assets,
		overlay: overlay.NewService(st, opts.TemplateCategory, log),
		opts:    opts,
		logger:  logger.Component(log, "fra-engine"),
		now:     time.Now,
		newBuild: func() string {
			return strings.SplitN(uuid.NewString(), "-", 2)[0]
		},
	}
}

// RiskRating is the display-only outcome of the risk matrix.
type RiskRating struct {
	Likelihood  *models.Likelihood  `json:"likelihood"`
	Consequence *models.Consequence `json:"consequence"`
	Level       *models.RiskLevel   `json:"level"`
}

// View is the JSON rendition.
type View struct {
	InstanceID  string                   `json:"instanceId"`
	Data        *models.CanonicalFRAData `json:"data"`
	Assets      models.AssetMap          `json:"assets"`
	PhotoOrder  []string                 `json:"photoOrder"`
	RiskRating  RiskRating               `json:"riskRating"`
	Sections    []assembler.Section      `json:"sections"`
	BuildStamp  assembler.BuildStamp     `json:"buildStamp"`
	GeneratedAt time.Time                `json:"generatedAt"`
}

// Document is the OOXML rendition.
type Document struct {
	Bytes       []byte
	Filename    string
	ContentType string
	Stamp       assembler.BuildStamp
	Sections    []string
}

// Map returns the canonical data of an FRA instance with its overlay applied.
func (e *Engine) Map(ctx context.Context, instanceID string) (*models.CanonicalFRAData, error) {
	_, data, err := e.load(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (e *Engine) load(ctx context.Context, instanceID string) (*models.AuditInstance, *models.CanonicalFRAData, error) {
	if strings.TrimSpace(instanceID) == "" {
		return nil, nil, apperrors.NewMissingParameterError("instanceId")
	}

	inst, err := e.store.GetInstance(ctx, instanceID)
	if err != nil {
		return nil, nil, err
	}
	if inst.TemplateCategory != e.opts.TemplateCategory {
		return nil, nil, fmt.Errorf("%w: instance %s has template category %q",
			apperrors.ErrNotFRATemplate, instanceID, inst.TemplateCategory)
	}

	responses, err := e.store.ListResponses(ctx, instanceID)
	if err != nil {
		return nil, nil, err
	}

	ov, err := overlay.FromResponses(responses)
	if err != nil {
		e.logger.Warn("Ignoring unreadable custom data overlay", map[string]interface{}{
			"instanceId": instanceID,
			"error":      err.Error(),
		})
		ov = nil
	}

	return inst, e.mapper.Map(inst, responses, ov), nil
}

func (e *Engine) stamp(instanceID string) assembler.BuildStamp {
	return assembler.BuildStamp{
		GeneratedAt: e.now().UTC(),
		Version:     e.opts.Version,
		BuildID:     e.newBuild(),
		InstanceID:  instanceID,
	}
}

func (e *Engine) resolve(ctx context.Context, instanceID string) models.ResolvedAssets {
	assets := e.assets.Resolve(ctx, instanceID)
	if assets.Assets == nil {
		assets.Assets = models.AssetMap{}
	}
	status := "empty"
	if assets.Len() > 0 {
		status = "resolved"
	}
	metrics.AssetResolutions.WithLabelValues(status).Inc()
	return assets
}

// View renders the JSON rendition.
func (e *Engine) View(ctx context.Context, instanceID string) (*View, error) {
	start := time.Now()
	v, err := e.view(ctx, instanceID)
	observe("view", start, err)
	return v, err
}

func (e *Engine) view(ctx context.Context, instanceID string) (*View, error) {
	_, data, err := e.load(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	assets := e.resolve(ctx, instanceID)
	stamp := e.stamp(instanceID)

	return &View{
		InstanceID: instanceID,
		Data:       data,
		Assets:     assets.Assets,
		PhotoOrder: assets.Placeholders(),
		RiskRating: RiskRating{
			Likelihood:  data.Likelihood,
			Consequence: data.Consequence,
			Level:       data.RiskLevel(),
		},
		Sections:    assembler.Build(data, assets, stamp),
		BuildStamp:  stamp,
		GeneratedAt: stamp.GeneratedAt,
	}, nil
}

// Document renders the OOXML rendition. The bytes are complete or absent.
func (e *Engine) Document(ctx context.Context, instanceID string) (*Document, error) {
	start := time.Now()
	d, err := e.document(ctx, instanceID)
	observe("document", start, err)
	return d, err
}

func (e *Engine) document(ctx context.Context, instanceID string) (*Document, error) {
	inst, data, err := e.load(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	assets := e.resolve(ctx, instanceID)
	var photos models.PhotoSet
	if e.opts.EmbedPhotos && assets.Len() > 0 {
		photos = e.assets.Fetch(ctx, assets.Assets)
	}

	stamp := e.stamp(instanceID)
	sections := assembler.Build(data, assets, stamp)

	subject := inst.StoreName
	if data.PremisesName != nil {
		subject = *data.PremisesName
	}
	out, err := docx.Render(sections, photos, docx.Meta{
		Title:   "Fire Risk Assessment",
		Subject: subject,
		Creator: inst.ConductedBy,
		Stamp:   stamp,
	})
	if err != nil {
		e.logger.Error("Document render failed", map[string]interface{}{
			"instanceId": instanceID,
			"buildId":    stamp.BuildID,
			"error":      err.Error(),
		})
		return nil, apperrors.NewRenderError(instanceID, err)
	}

	ids := make([]string, len(sections))
	for i, s := range sections {
		ids[i] = s.ID
	}

	e.logger.Info("Document rendered", map[string]interface{}{
		"instanceId": instanceID,
		"buildId":    stamp.BuildID,
		"sizeBytes":  len(out),
		"sections":   len(sections),
	})

	return &Document{
		Bytes:       out,
		Filename:    Filename(instanceID),
		ContentType: docx.ContentType,
		Stamp:       stamp,
		Sections:    ids,
	}, nil
}

// UpsertCustomData validates and persists an overlay patch.
func (e *Engine) UpsertCustomData(ctx context.Context, instanceID string, patch map[string]interface{}) (*models.CustomDataOverlay, error) {
	if strings.TrimSpace(instanceID) == "" {
		return nil, apperrors.NewMissingParameterError("instanceId")
	}
	ov, err := e.overlay.Upsert(ctx, instanceID, patch)
	status := "success"
	if err != nil {
		status = string(apperrors.FromError(err).Code)
	}
	metrics.OverlayWrites.WithLabelValues(status).Inc()
	return ov, err
}

// DeletePhoto removes one photo of the instance.
func (e *Engine) DeletePhoto(ctx context.Context, instanceID, path string) error {
	if strings.TrimSpace(instanceID) == "" {
		return apperrors.NewMissingParameterError("instanceId")
	}
	if strings.TrimSpace(path) == "" {
		return apperrors.NewMissingParameterError("path")
	}
	return e.assets.DeletePhoto(ctx, instanceID, path)
}

// ShortID is the first eight filename-safe characters of the instance id.
func ShortID(instanceID string) string {
	var b strings.Builder
	for _, r := range instanceID {
		if b.Len() == 8 {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "document"
	}
	return b.String()
}

// Filename is the download name of an instance's document.
func Filename(instanceID string) string {
	return "FRA-" + ShortID(instanceID) + ".docx"
}

func observe(rendition string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = string(apperrors.FromError(err).Code)
	}
	metrics.RendersTotal.WithLabelValues(rendition, status).Inc()
	metrics.RenderDuration.WithLabelValues(rendition).Observe(time.Since(start).Seconds())
}
