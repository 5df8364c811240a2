// Package worker parses documents announced on a JetStream subject.
//
// Each message carries a PDFCreatedEvent. The worker downloads the object,
// parses it, uploads the text and the retained archive, and publishes a
// DocumentParsedEvent. Permanent failures terminate the message; anything
// else is negatively acknowledged for redelivery.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/book-expert/ocr-parser-service/internal/docparser"
	"github.com/book-expert/ocr-parser-service/internal/dpi"
	"github.com/book-expert/ocr-parser-service/internal/ocrengine"
	"github.com/book-expert/ocr-parser-service/internal/textstate"
)

const defaultMimeType = "application/pdf"

// ErrMissingKey is returned for events that name no object.
var ErrMissingKey = errors.New("event has no object key")

// Message is the part of a JetStream message the worker uses.
type Message interface {
	Data() []byte
	Ack() error
	Nak() error
	Term() error
	InProgress() error
}

// ObjectStore is the part of a JetStream object store the worker uses.
type ObjectStore interface {
	GetFile(ctx context.Context, name, file string, opts ...jetstream.GetObjectOpt) error
	Put(ctx context.Context, obj jetstream.ObjectMeta, reader io.Reader) (*jetstream.ObjectInfo, error)
}

// Publisher publishes events.
type Publisher interface {
	Publish(
		ctx context.Context,
		subject string,
		payload []byte,
		opts ...jetstream.PublishOpt,
	) (*jetstream.PubAck, error)
}

// Parser parses one document.
type Parser interface {
	Parse(ctx context.Context, src docparser.Source) (docparser.Result, error)
}

// DocumentParsedEvent announces the text and archive of a parsed document.
type DocumentParsedEvent struct {
	Header     events.EventHeader `json:"header"`
	SourceKey  string             `json:"source_key"`
	TextKey    string             `json:"text_key"`
	ArchiveKey string             `json:"archive_key,omitempty"`
	Attempts   int                `json:"attempts"`
	TextState  string             `json:"text_state"`
}

// Stores groups the object stores used by the worker.
type Stores struct {
	Source  ObjectStore
	Text    ObjectStore
	Archive ObjectStore
}

// Options configures a Worker.
type Options struct {
	// ParsedSubject receives DocumentParsedEvents.
	ParsedSubject string
	// WorkDir holds per-message directories, the system temp directory when empty.
	WorkDir string
}

// Worker handles source-created messages.
type Worker struct {
	config    Options
	parser    Parser
	stores    Stores
	publisher Publisher
	log       *logger.Logger
}

// New creates a Worker.
func New(opts Options, parser Parser, stores Stores, publisher Publisher, log *logger.Logger) *Worker {
	return &Worker{
		config:    opts,
		parser:    parser,
		stores:    stores,
		publisher: publisher,
		log:       log,
	}
}

// job is the context of processing a single message.
type job struct {
	worker    *Worker
	msg       Message
	event     *events.PDFCreatedEvent
	header    *events.EventHeader
	outputDir string
	localPath string
}

// Handle processes one message and settles it with Ack, Nak or Term.
func (w *Worker) Handle(ctx context.Context, msg Message) {
	event, unmarshalErr := unmarshalEvent(msg)
	if unmarshalErr != nil {
		w.log.Error("Terminating undecodable message: %v", unmarshalErr)

		if termErr := msg.Term(); termErr != nil {
			w.log.Error("Failed to TERM message: %v", termErr)
		}

		return
	}

	j := &job{
		worker:    w,
		msg:       msg,
		event:     event,
		header:    &event.Header,
		outputDir: "",
		localPath: "",
	}
	j.run(ctx)
}

func unmarshalEvent(msg Message) (*events.PDFCreatedEvent, error) {
	var event events.PDFCreatedEvent
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal PDFCreatedEvent: %w", err)
	}

	if strings.TrimSpace(event.PDFKey) == "" {
		return nil, ErrMissingKey
	}

	return &event, nil
}

func (j *job) run(ctx context.Context) {
	log := j.worker.log
	log.Info("Received job for WorkflowID [%s]: parsing '%s'", j.header.WorkflowID, j.event.PDFKey)

	if progErr := j.msg.InProgress(); progErr != nil {
		log.Warn("Failed to send InProgress update: %v", progErr)
	}

	if dirErr := j.setupWorkDir(); dirErr != nil {
		j.nak(dirErr)

		return
	}
	defer j.cleanupWorkDir()

	if downloadErr := j.download(ctx); downloadErr != nil {
		j.term(downloadErr)

		return
	}

	result, parseErr := j.worker.parser.Parse(ctx, docparser.Source{
		Path:       j.localPath,
		MimeType:   mimeTypeForKey(j.event.PDFKey),
		ArchiveDir: filepath.Join(j.outputDir, "archive"),
	})
	if parseErr != nil {
		if IsPermanent(parseErr) {
			j.term(parseErr)
		} else {
			j.nak(parseErr)
		}

		return
	}

	if publishErr := j.publish(ctx, result); publishErr != nil {
		j.nak(publishErr)

		return
	}

	j.ack()
}

// IsPermanent reports whether redelivering a failed parse cannot succeed.
func IsPermanent(err error) bool {
	return errors.Is(err, docparser.ErrUnsupportedSource) ||
		errors.Is(err, dpi.ErrNoDPI) ||
		errors.Is(err, textstate.ErrNoPages) ||
		errors.Is(err, ocrengine.ErrEncryptedPDF) ||
		errors.Is(err, ocrengine.ErrInputFile)
}

func mimeTypeForKey(key string) string {
	if mimeType := docparser.MimeTypeForPath(key); mimeType != "" {
		return mimeType
	}

	return defaultMimeType
}

func (j *job) setupWorkDir() error {
	pattern := fmt.Sprintf("doc-%s-", strings.ReplaceAll(j.header.WorkflowID, string(os.PathSeparator), "_"))

	outputDir, err := os.MkdirTemp(j.worker.config.WorkDir, pattern)
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}

	j.outputDir = outputDir
	j.localPath = filepath.Join(outputDir, filepath.Base(j.event.PDFKey))

	return nil
}

func (j *job) cleanupWorkDir() {
	if err := os.RemoveAll(j.outputDir); err != nil {
		j.worker.log.Warn("Failed to remove temp directory '%s': %v", j.outputDir, err)
	}
}

func (j *job) download(ctx context.Context) error {
	err := j.worker.stores.Source.GetFile(ctx, j.event.PDFKey, j.localPath)
	if err != nil {
		return fmt.Errorf("failed to get '%s' from object store: %w", j.event.PDFKey, err)
	}

	return nil
}

// publish uploads the text and archive and announces them.
func (j *job) publish(ctx context.Context, result docparser.Result) error {
	stem := strings.TrimSuffix(filepath.Base(j.event.PDFKey), filepath.Ext(j.event.PDFKey))
	prefix := fmt.Sprintf("%s/%s/%s", j.header.TenantID, j.header.WorkflowID, stem)

	textKey := prefix + ".txt"

	textErr := putObject(ctx, j.worker.stores.Text, textKey, bytes.NewReader([]byte(result.Text)))
	if textErr != nil {
		return textErr
	}

	j.worker.log.Info("Job [%s]: Uploaded '%s'", j.header.WorkflowID, textKey)

	archiveKey := ""
	if result.ArchivePath != "" {
		archiveKey = prefix + ".pdf"

		archiveErr := uploadFile(ctx, j.worker.stores.Archive, archiveKey, result.ArchivePath)
		if archiveErr != nil {
			return archiveErr
		}

		j.worker.log.Info("Job [%s]: Uploaded '%s'", j.header.WorkflowID, archiveKey)
	}

	event := DocumentParsedEvent{
		Header: events.EventHeader{
			WorkflowID: j.header.WorkflowID,
			UserID:     j.header.UserID,
			TenantID:   j.header.TenantID,
			EventID:    uuid.New().String(),
			Timestamp:  time.Now(),
		},
		SourceKey:  j.event.PDFKey,
		TextKey:    textKey,
		ArchiveKey: archiveKey,
		Attempts:   result.Attempts,
		TextState:  result.State.String(),
	}

	eventJSON, marshalErr := json.Marshal(event)
	if marshalErr != nil {
		return fmt.Errorf("failed to marshal DocumentParsedEvent: %w", marshalErr)
	}

	_, pubErr := j.worker.publisher.Publish(ctx, j.worker.config.ParsedSubject, eventJSON)
	if pubErr != nil {
		return fmt.Errorf("failed to publish DocumentParsedEvent: %w", pubErr)
	}

	return nil
}

func uploadFile(ctx context.Context, store ObjectStore, objectName, filePath string) error {
	file, openErr := os.Open(filePath)
	if openErr != nil {
		return fmt.Errorf("failed to open file for upload: %w", openErr)
	}
	defer file.Close()

	return putObject(ctx, store, objectName, file)
}

func putObject(ctx context.Context, store ObjectStore, objectName string, reader io.Reader) error {
	meta := jetstream.ObjectMeta{
		Name:        objectName,
		Description: "",
		Headers:     nil,
		Metadata:    nil,
	}

	_, putErr := store.Put(ctx, meta, reader)
	if putErr != nil {
		return fmt.Errorf("failed to put '%s' in object store: %w", objectName, putErr)
	}

	return nil
}

func (j *job) ack() {
	if err := j.msg.Ack(); err != nil {
		j.worker.log.Error("Job [%s]: Failed to acknowledge message: %v", j.header.WorkflowID, err)
	} else {
		j.worker.log.Success("Job [%s]: Processing complete. Acknowledged.", j.header.WorkflowID)
	}
}

func (j *job) nak(reason error) {
	j.worker.log.Error("NAK'ing message for job [%s]: %v", j.header.WorkflowID, reason)

	if err := j.msg.Nak(); err != nil {
		j.worker.log.Error("Failed to NAK message: %v", err)
	}
}

func (j *job) term(reason error) {
	j.worker.log.Error("Terminating message for job [%s]: %v", j.header.WorkflowID, reason)

	if err := j.msg.Term(); err != nil {
		j.worker.log.Error("Failed to TERM message: %v", err)
	}
}
