package generatedocument

import "time"

type Input struct {
	InstanceID  string `json:"instanceId"`
	NotifyEmail string `json:"notifyEmail,omitempty"`
	Archive     *bool  `json:"archive,omitempty"`
}

// ShouldArchive defaults to true when the process does not say otherwise.
func (i *Input) ShouldArchive() bool {
	return i.Archive == nil || *i.Archive
}

type Output struct {
	DocumentPath string    `json:"documentPath,omitempty"`
	SizeBytes    int       `json:"sizeBytes"`
	BuildID      string    `json:"buildId"`
	GeneratedAt  time.Time `json:"generatedAt"`
	Sections     []string  `json:"sections"`
	Notified     bool      `json:"notified"`
}

// GeneratedEvent is published on the FRA topic after each successful job.
type GeneratedEvent struct {
	InstanceID   string    `json:"instanceId"`
	BuildID      string    `json:"buildId"`
	Version      string    `json:"version"`
	DocumentPath string    `json:"documentPath,omitempty"`
	SizeBytes    int       `json:"sizeBytes"`
	GeneratedAt  time.Time `json:"generatedAt"`
}

const EventDocumentGenerated = "fra.document.generated"
