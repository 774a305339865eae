// Package api exposes the FRA engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "fra-engine/internal/common/errors"
	"fra-engine/internal/common/logger"
	"fra-engine/internal/fra/engine"
	"fra-engine/internal/fra/renderlog"
	"fra-engine/internal/models"
)

// Service is the engine surface the handlers call.
type Service interface {
	View(ctx context.Context, instanceID string) (*engine.View, error)
	Document(ctx context.Context, instanceID string) (*engine.Document, error)
	UpsertCustomData(ctx context.Context, instanceID string, patch map[string]interface{}) (*models.CustomDataOverlay, error)
	DeletePhoto(ctx context.Context, instanceID, path string) error
}

// RenderHistory lists previous renders of an instance.
type RenderHistory interface {
	Recent(ctx context.Context, instanceID string, size int) ([]renderlog.Entry, error)
}

// ReadinessCheck reports whether a dependency is reachable.
type ReadinessCheck func(ctx context.Context) error

type Handler struct {
	Service Service
	History RenderHistory
	Logger  logger.Logger
}

func NewHandler(service Service, history RenderHistory, log logger.Logger) *Handler {
	return &Handler{Service: service, History: history, Logger: logger.Component(log, "api")}
}

// Register mounts the ops endpoints and the authenticated FRA routes.
func (h *Handler) Register(r *gin.Engine, auth gin.HandlerFunc, checks map[string]ReadinessCheck) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	r.GET("/ready", readyHandler(checks))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1", auth)
	{
		v1.GET("/fra/view", h.GetView)
		v1.GET("/fra/document", h.GetDocument)
		v1.PUT("/fra/custom-data", h.PutCustomData)
		v1.DELETE("/fra/photos", h.DeletePhoto)
		if h.History != nil {
			v1.GET("/fra/renders", h.GetRenders)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"code": "NOT_FOUND", "message": "route not found"})
	})
}

func readyHandler(checks map[string]ReadinessCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		failed := gin.H{}
		for name, check := range checks {
			if err := check(c.Request.Context()); err != nil {
				failed[name] = err.Error()
			}
		}
		if len(failed) > 0 {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "failed": failed})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}

func (h *Handler) GetView(c *gin.Context) {
	instanceID := strings.TrimSpace(c.Query("instanceId"))
	if instanceID == "" {
		h.fail(c, "", apperrors.NewMissingParameterError("instanceId"))
		return
	}
	view, err := h.Service.View(c.Request.Context(), instanceID)
	if err != nil {
		h.fail(c, instanceID, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) GetDocument(c *gin.Context) {
	instanceID := strings.TrimSpace(c.Query("instanceId"))
	if instanceID == "" {
		h.fail(c, "", apperrors.NewMissingParameterError("instanceId"))
		return
	}
	mode := "attachment"
	if c.Query("mode") == "inline" {
		mode = "inline"
	}

	doc, err := h.Service.Document(c.Request.Context(), instanceID)
	if err != nil {
		h.fail(c, instanceID, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`%s; filename="%s"`, mode, doc.Filename))
	c.Header("Cache-Control", "no-store")
	c.Header("X-FRA-Build", doc.Stamp.Version+"+"+doc.Stamp.BuildID)
	c.Data(http.StatusOK, doc.ContentType, doc.Bytes)
}

func (h *Handler) PutCustomData(c *gin.Context) {
	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			h.fail(c, "", apperrors.NewInvalidPatchError("body must be a JSON object"))
			return
		}
		h.fail(c, "", apperrors.NewInvalidInputError(err.Error()))
		return
	}
	if body == nil {
		h.fail(c, "", apperrors.NewInvalidPatchError("body must be a JSON object"))
		return
	}

	instanceID, _ := body["instanceId"].(string)
	instanceID = strings.TrimSpace(instanceID)
	if instanceID == "" {
		h.fail(c, "", apperrors.NewMissingParameterError("instanceId"))
		return
	}
	delete(body, "instanceId")

	overlay, err := h.Service.UpsertCustomData(c.Request.Context(), instanceID, body)
	if err != nil {
		h.fail(c, instanceID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "customData": overlay})
}

type deletePhotoRequest struct {
	InstanceID string `json:"instanceId"`
	Path       string `json:"path"`
}

func (h *Handler) DeletePhoto(c *gin.Context) {
	var req deletePhotoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, "", apperrors.NewInvalidInputError(err.Error()))
		return
	}
	if strings.TrimSpace(req.InstanceID) == "" {
		h.fail(c, "", apperrors.NewMissingParameterError("instanceId"))
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		h.fail(c, req.InstanceID, apperrors.NewMissingParameterError("path"))
		return
	}

	if err := h.Service.DeletePhoto(c.Request.Context(), req.InstanceID, req.Path); err != nil {
		h.fail(c, req.InstanceID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *Handler) GetRenders(c *gin.Context) {
	instanceID := strings.TrimSpace(c.Query("instanceId"))
	if instanceID == "" {
		h.fail(c, "", apperrors.NewMissingParameterError("instanceId"))
		return
	}
	entries, err := h.History.Recent(c.Request.Context(), instanceID, 20)
	if err != nil {
		h.fail(c, instanceID, apperrors.NewInternalError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"instanceId": instanceID, "renders": entries})
}

// fail writes the error body for err. Server-side failures are logged.
func (h *Handler) fail(c *gin.Context, instanceID string, err error) {
	stdErr := apperrors.FromError(err)
	status := apperrors.HTTPStatus(stdErr.Code)

	if status >= http.StatusInternalServerError {
		h.Logger.Error("Request failed", map[string]interface{}{
			"instanceId": instanceID,
			"code":       string(stdErr.Code),
			"path":       c.FullPath(),
			"error":      err.Error(),
		})
	}

	body := gin.H{"code": stdErr.Code, "message": stdErr.Message}
	if stdErr.Details != "" && status < http.StatusInternalServerError {
		body["details"] = stdErr.Details
	}
	c.AbortWithStatusJSON(status, body)
}
