package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // registered for image.Decode
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
	"github.com/redis/go-redis/v9"

	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/config"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/models"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/notify"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/services"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/storage"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/utils"
)

// Task types.
const (
	TypeNotifyTriggerDispatch = "notify:trigger"
	TypePhotoProcess          = "photo:process"
)

// --- Task Client (Enqueuing tasks) ---

func NewClient(rdb *redis.Client) *asynq.Client {
	clientOpt := asynq.RedisClientOpt{
		Addr:     rdb.Options().Addr,
		Password: rdb.Options().Password,
		DB:       rdb.Options().DB,
	}
	return asynq.NewClient(clientOpt)
}

// NotifyTriggerPayload carries a deferred single-trigger dispatch.
type NotifyTriggerPayload struct {
	TriggerID string                 `json:"trigger_id"`
	EventType string                 `json:"event_type"`
	EventData map[string]interface{} `json:"event_data"`
}

// PhotoTaskPayload carries an evidence photo normalization job.
type PhotoTaskPayload struct {
	S3Key      string `json:"s3_key"`
	EvidenceID string `json:"evidence_id"`
}

// Enqueuer wraps the asynq client for the enqueuing side of the task layer.
// It implements notify.DelayedEnqueuer.
type Enqueuer struct {
	client *asynq.Client
}

// NewEnqueuer creates an Enqueuer around an asynq client.
func NewEnqueuer(client *asynq.Client) *Enqueuer {
	return &Enqueuer{client: client}
}

// EnqueueTriggerDispatch schedules a single-trigger dispatch to run after the
// given delay.
func (e *Enqueuer) EnqueueTriggerDispatch(ctx context.Context, triggerID utils.SixID, eventType models.EventType, eventData map[string]interface{}, delay time.Duration) error {
	payload, err := json.Marshal(NotifyTriggerPayload{
		TriggerID: triggerID.String(),
		EventType: string(eventType),
		EventData: eventData,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal trigger dispatch payload: %w", err)
	}

	task := asynq.NewTask(TypeNotifyTriggerDispatch, payload)
	info, err := e.client.EnqueueContext(ctx, task, asynq.ProcessIn(delay), asynq.MaxRetry(5))
	if err != nil {
		return fmt.Errorf("failed to enqueue trigger dispatch: %w", err)
	}
	log.Printf("Enqueued deferred dispatch task %s for trigger %s (in %v)", info.ID, triggerID, delay)
	return nil
}

// EnqueuePhotoProcess schedules normalization of an uploaded evidence photo.
func (e *Enqueuer) EnqueuePhotoProcess(ctx context.Context, s3Key string, evidenceID utils.SixID) error {
	payload, err := json.Marshal(PhotoTaskPayload{
		S3Key:      s3Key,
		EvidenceID: evidenceID.String(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal photo task payload: %w", err)
	}

	task := asynq.NewTask(TypePhotoProcess, payload, asynq.Queue("photos"))
	if _, err := e.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue photo task: %w", err)
	}
	return nil
}

// --- Task Server (Processing tasks) ---

// TaskProcessor holds the dependencies task handlers need.
type TaskProcessor struct {
	cfg             *config.Config
	dispatcher      *notify.Dispatcher
	storageService  storage.IS3Storage
	evidenceService services.IEvidenceService
}

func NewTaskProcessor(
	cfg *config.Config,
	dispatcher *notify.Dispatcher,
	storageService storage.IS3Storage,
	evidenceService services.IEvidenceService,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:             cfg,
		dispatcher:      dispatcher,
		storageService:  storageService,
		evidenceService: evidenceService,
	}
}

// SetupServer configures an Asynq server instance. The caller runs it with
// the mux from SetupMux and shuts it down via srv.Shutdown().
func SetupServer(rdb *redis.Client) *asynq.Server {
	serverOpt := asynq.RedisClientOpt{
		Addr:     rdb.Options().Addr,
		Password: rdb.Options().Password,
		DB:       rdb.Options().DB,
	}

	return asynq.NewServer(
		serverOpt,
		asynq.Config{
			Queues: map[string]int{
				"default": 6,
				"photos":  3,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v", task.Type(), string(task.Payload()), err)
			}),
		},
	)
}

// SetupMux registers the background task handlers.
func SetupMux(processor *TaskProcessor) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeNotifyTriggerDispatch, processor.HandleNotifyTriggerTask)
	mux.HandleFunc(TypePhotoProcess, processor.HandlePhotoProcessTask)
	log.Println("Registered background task handlers.")
	return mux
}

// HandleNotifyTriggerTask runs a deferred single-trigger dispatch.
func (p *TaskProcessor) HandleNotifyTriggerTask(ctx context.Context, t *asynq.Task) error {
	var payload NotifyTriggerPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal trigger dispatch payload: %v: %w", err, asynq.SkipRetry)
	}

	triggerID, err := utils.ParseSixID(payload.TriggerID)
	if err != nil {
		return fmt.Errorf("invalid trigger ID in payload: %w", asynq.SkipRetry)
	}

	results, err := p.dispatcher.DispatchTrigger(ctx, triggerID, models.EventType(payload.EventType), payload.EventData)
	if err != nil {
		// Infrastructure failure; let asynq retry
		return err
	}

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	log.Printf("Deferred dispatch for trigger %s done: %d recipients, %d failed", triggerID, len(results), failed)
	return nil
}

// HandlePhotoProcessTask normalizes an uploaded evidence photo: decodes it,
// shrinks it to the configured maximum dimension, re-encodes as JPEG, writes
// it back and attaches the key to the evidence item.
func (p *TaskProcessor) HandlePhotoProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload PhotoTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal photo task payload: %v: %w", err, asynq.SkipRetry)
	}

	evidenceID, err := utils.ParseSixID(payload.EvidenceID)
	if err != nil {
		return fmt.Errorf("invalid evidence ID in payload: %w", asynq.SkipRetry)
	}

	log.Printf("Processing photo task: S3Key=%s, EvidenceID=%s", payload.S3Key, payload.EvidenceID)

	imgData, err := p.storageService.DownloadObject(ctx, payload.S3Key)
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			log.Printf("S3 object %s not found, likely upload failed.", payload.S3Key)
			return fmt.Errorf("s3 object not found: %w", asynq.SkipRetry)
		}
		return fmt.Errorf("failed to download photo from S3: %w", err)
	}

	maxSizeBytes := int64(p.cfg.PhotoMaxSizeMB) * 1024 * 1024
	if int64(len(imgData)) > maxSizeBytes {
		log.Printf("Photo %s exceeds max size (%d > %d bytes). Skipping.", payload.S3Key, len(imgData), maxSizeBytes)
		return fmt.Errorf("photo exceeds max size: %w", asynq.SkipRetry)
	}

	img, format, err := image.Decode(bytes.NewReader(imgData))
	if err != nil {
		return fmt.Errorf("unsupported image format or corrupt photo: %w", asynq.SkipRetry)
	}
	log.Printf("Decoded photo %s, format: %s, size: %dx%d", payload.S3Key, format, img.Bounds().Dx(), img.Bounds().Dy())

	maxDim := uint(p.cfg.PhotoMaxDimension)
	processedData := imgData
	contentType := "image/" + format

	if uint(img.Bounds().Dx()) > maxDim || uint(img.Bounds().Dy()) > maxDim {
		resized := resize.Thumbnail(maxDim, maxDim, img, resize.Lanczos3)
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
			return fmt.Errorf("failed to re-encode resized photo: %w", err)
		}
		processedData = buf.Bytes()
		contentType = "image/jpeg"
		log.Printf("Resized photo %s to %dx%d", payload.S3Key, resized.Bounds().Dx(), resized.Bounds().Dy())
	}

	if err := p.storageService.UploadObject(ctx, payload.S3Key, processedData, contentType); err != nil {
		return fmt.Errorf("failed to upload processed photo: %w", err)
	}

	if err := p.evidenceService.AddPhotoKey(ctx, evidenceID, payload.S3Key); err != nil {
		return fmt.Errorf("failed to attach photo to evidence: %w", err)
	}

	log.Printf("Photo task processed successfully: Key=%s, EvidenceID=%s", payload.S3Key, payload.EvidenceID)
	return nil
}
