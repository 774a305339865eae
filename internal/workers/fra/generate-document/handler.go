package generatedocument

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "fra-engine/internal/common/errors"
	"fra-engine/internal/common/logger"
	"fra-engine/internal/common/metrics"
	"fra-engine/internal/common/observability"
	"fra-engine/internal/fra/engine"
	"fra-engine/internal/fra/renderlog"
)

const TaskType = "fra-generate-document"

type Renderer interface {
	Document(ctx context.Context, instanceID string) (*engine.Document, error)
}

type Archive interface {
	Put(ctx context.Context, path string, body []byte, contentType string) error
}

type RenderRecorder interface {
	Record(ctx context.Context, e renderlog.Entry) error
}

type Mailer interface {
	SendText(ctx context.Context, to []string, subject, body string) (string, error)
}

type Publisher interface {
	PublishEvent(ctx context.Context, eventType string, payload interface{}) (string, error)
}

// Dependencies are the collaborators of the worker. Only Renderer is
// required; a nil collaborator skips its step.
type Dependencies struct {
	Renderer      Renderer
	Archive       Archive
	Recorder      RenderRecorder
	Mailer        Mailer
	Publisher     Publisher
	Observability *observability.Observability
	Logger        logger.Logger
}

type Handler struct {
	config       *Config
	deps         Dependencies
	logger       logger.Logger
	errorHandler *apperrors.ErrorHandler
}

func NewHandler(config *Config, deps Dependencies) *Handler {
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		deps:         deps,
		logger:       log,
		errorHandler: apperrors.NewErrorHandler(log),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.run(ctx, job.Variables)
	duration := time.Since(start)
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(duration.Seconds())

	if err != nil {
		code := string(apperrors.FromError(err).Code)
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, code).Inc()
		h.deps.Observability.RecordJobProcessed(ctx, TaskType, "failed")
		h.deps.Observability.RecordJobDuration(ctx, TaskType, duration, "failed")
		h.errorHandler.HandleJobError(context.Background(), client, job, err)
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	h.deps.Observability.RecordJobProcessed(ctx, TaskType, "completed")
	h.deps.Observability.RecordJobDuration(ctx, TaskType, duration, "completed")
	h.completeJob(client, job, output)
}

func (h *Handler) run(ctx context.Context, variables string) (*Output, error) {
	var vars map[string]interface{}
	if err := json.Unmarshal([]byte(variables), &vars); err != nil {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("parse variables: %v", err))
	}
	if err := validateInput(vars); err != nil {
		return nil, err
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err))
	}
	return h.Execute(ctx, &input)
}

// Execute renders the document of input.InstanceID, archives it and sends
// the follow-up notifications. Only rendering and archiving can fail the job.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	input.InstanceID = strings.TrimSpace(input.InstanceID)
	if input.InstanceID == "" {
		return nil, apperrors.NewMissingParameterError("instanceId")
	}

	doc, err := h.deps.Renderer.Document(ctx, input.InstanceID)
	if err != nil {
		return nil, err
	}

	out := &Output{
		SizeBytes:   len(doc.Bytes),
		BuildID:     doc.Stamp.BuildID,
		GeneratedAt: doc.Stamp.GeneratedAt,
		Sections:    doc.Sections,
	}

	if input.ShouldArchive() && h.deps.Archive != nil {
		path := h.ArchivePath(input.InstanceID, doc.Stamp.BuildID)
		if err := h.deps.Archive.Put(ctx, path, doc.Bytes, doc.ContentType); err != nil {
			return nil, apperrors.NewStorageError("archive", err)
		}
		out.DocumentPath = path
	}

	h.record(ctx, input, doc, out)
	out.Notified = h.notify(ctx, input, doc, out)
	h.publish(ctx, input, doc, out)

	h.logger.Info("document generated", map[string]interface{}{
		"instanceId":   input.InstanceID,
		"buildId":      out.BuildID,
		"sizeBytes":    out.SizeBytes,
		"documentPath": out.DocumentPath,
	})
	return out, nil
}

// ArchivePath is the storage key of one archived build.
func (h *Handler) ArchivePath(instanceID, buildID string) string {
	name := fmt.Sprintf("FRA-%s-%s.docx", engine.ShortID(instanceID), buildID)
	return h.config.Namespace + "/" + instanceID + "/documents/" + name
}

func (h *Handler) record(ctx context.Context, input *Input, doc *engine.Document, out *Output) {
	if h.deps.Recorder == nil {
		return
	}
	err := h.deps.Recorder.Record(ctx, renderlog.Entry{
		InstanceID:   input.InstanceID,
		BuildID:      doc.Stamp.BuildID,
		Version:      doc.Stamp.Version,
		GeneratedAt:  doc.Stamp.GeneratedAt,
		Sections:     doc.Sections,
		SizeBytes:    out.SizeBytes,
		DocumentPath: out.DocumentPath,
	})
	if err != nil {
		h.logger.Warn("render log write failed", map[string]interface{}{
			"instanceId": input.InstanceID,
			"error":      err.Error(),
		})
	}
}

func (h *Handler) notify(ctx context.Context, input *Input, doc *engine.Document, out *Output) bool {
	if h.deps.Mailer == nil || strings.TrimSpace(input.NotifyEmail) == "" {
		return false
	}
	var body strings.Builder
	fmt.Fprintf(&body, "The fire risk assessment for audit %s has been generated.\n\n", input.InstanceID)
	if out.DocumentPath != "" {
		fmt.Fprintf(&body, "Document: %s\n", out.DocumentPath)
	}
	fmt.Fprintf(&body, "Size: %d bytes\n%s\n", out.SizeBytes, doc.Stamp.String())

	subject := h.config.EmailSubject + ": " + engine.ShortID(input.InstanceID)
	messageID, err := h.deps.Mailer.SendText(ctx, []string{input.NotifyEmail}, subject, body.String())
	if err != nil {
		h.logger.Warn("notification email failed", map[string]interface{}{
			"instanceId": input.InstanceID,
			"error":      apperrors.NewNotificationError("ses", err).Details,
		})
		return false
	}
	h.logger.Debug("notification email sent", map[string]interface{}{"messageId": messageID})
	return true
}

func (h *Handler) publish(ctx context.Context, input *Input, doc *engine.Document, out *Output) {
	if h.deps.Publisher == nil {
		return
	}
	_, err := h.deps.Publisher.PublishEvent(ctx, EventDocumentGenerated, GeneratedEvent{
		InstanceID:   input.InstanceID,
		BuildID:      doc.Stamp.BuildID,
		Version:      doc.Stamp.Version,
		DocumentPath: out.DocumentPath,
		SizeBytes:    out.SizeBytes,
		GeneratedAt:  doc.Stamp.GeneratedAt,
	})
	if err != nil {
		h.logger.Warn("event publish failed", map[string]interface{}{
			"instanceId": input.InstanceID,
			"error":      apperrors.NewNotificationError("sns", err).Details,
		})
	}
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"error": err.Error()})
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{"error": err.Error()})
	}
}
