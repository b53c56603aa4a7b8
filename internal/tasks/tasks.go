package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // Registered for image.Decode
	"log"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
	"github.com/redis/go-redis/v9"

	"github.com/zsleinadg/WebCarros/internal/config"
	"github.com/zsleinadg/WebCarros/internal/email"
	"github.com/zsleinadg/WebCarros/internal/services"
	"github.com/zsleinadg/WebCarros/internal/storage"
)

// TaskType defines the type of a background task.
const (
	TypeEmailDelivery = "email:deliver"
	TypeImageProcess  = "image:process"
	TypeOrphanSweep   = "image:orphan_sweep"
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

// ImageEnqueuer schedules image post-processing through the task queue.
type ImageEnqueuer struct {
	client *asynq.Client
}

func NewImageEnqueuer(client *asynq.Client) *ImageEnqueuer {
	return &ImageEnqueuer{client: client}
}

func (e *ImageEnqueuer) EnqueueImageProcess(ctx context.Context, path string) error {
	payload, err := json.Marshal(ImageTaskPayload{S3Key: path})
	if err != nil {
		return fmt.Errorf("failed to marshal image task payload: %w", err)
	}
	task := asynq.NewTask(TypeImageProcess, payload)
	_, err = e.client.EnqueueContext(ctx, task, asynq.Queue("images"))
	if err != nil {
		return fmt.Errorf("failed to enqueue image processing task for %s: %w", path, err)
	}
	return nil
}

// EmailEnqueuer schedules email delivery through the task queue.
type EmailEnqueuer struct {
	client *asynq.Client
}

func NewEmailEnqueuer(client *asynq.Client) *EmailEnqueuer {
	return &EmailEnqueuer{client: client}
}

// EnqueueWelcomeEmail schedules the post-signup welcome message.
func (e *EmailEnqueuer) EnqueueWelcomeEmail(ctx context.Context, to, name string) error {
	payload, err := json.Marshal(EmailTaskPayload{
		To:         to,
		TemplateID: "welcome",
		Data:       map[string]interface{}{"name": name},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email task payload: %w", err)
	}
	task := asynq.NewTask(TypeEmailDelivery, payload)
	_, err = e.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to enqueue welcome email for %s: %w", to, err)
	}
	return nil
}

// --- Task Server (Processing tasks) ---

// TaskProcessor handles the processing of tasks.
// It holds dependencies needed by task handlers.
type TaskProcessor struct {
	cfg                  *config.Config
	emailSender          email.Sender
	storageService       storage.IS3Storage
	carService           services.ICarService
	configService        services.IConfigService
	emailTemplateService services.IEmailTemplateService
	taskClient           *asynq.Client
}

func NewTaskProcessor(
	cfg *config.Config,
	emailSender email.Sender,
	storageService storage.IS3Storage,
	carService services.ICarService,
	configService services.IConfigService,
	emailTemplateService services.IEmailTemplateService,
	taskClient *asynq.Client,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:                  cfg,
		emailSender:          emailSender,
		storageService:       storageService,
		carService:           carService,
		configService:        configService,
		emailTemplateService: emailTemplateService,
		taskClient:           taskClient,
	}
}

// SetupServer configures and returns an Asynq server instance.
func SetupServer(rdb *redis.Client, processor *TaskProcessor, isImageWorker bool, isBgWorker bool) *asynq.Server {
	serverOpt := asynq.RedisClientOpt{
		Addr:     rdb.Options().Addr,
		Password: rdb.Options().Password,
		DB:       rdb.Options().DB,
	}

	srv := asynq.NewServer(
		serverOpt,
		asynq.Config{
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
				"images":   5,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				fmt.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v\n", task.Type(), string(task.Payload()), err)
			}),
		},
	)

	// Register handlers based on worker type
	mux := asynq.NewServeMux()

	if isBgWorker {
		mux.HandleFunc(TypeEmailDelivery, processor.HandleEmailDeliveryTask)
		mux.HandleFunc(TypeOrphanSweep, processor.HandleOrphanSweepTask)
		fmt.Println("Registered background task handlers (email & orphan sweep).")
	}

	if isImageWorker {
		mux.HandleFunc(TypeImageProcess, processor.HandleImageProcessTask)
		fmt.Println("Registered image processing task handlers.")
	}

	if !isBgWorker && !isImageWorker {
		fmt.Println("Running in API mode, no task server started.")
		return nil
	}

	if err := srv.Start(mux); err != nil {
		log.Fatalf("Could not start Asynq server: %v", err)
	}

	return srv
}

// SetupScheduler returns a scheduler that periodically enqueues the
// orphan sweep. Run it alongside the background worker.
func SetupScheduler(rdb *redis.Client) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{
			Addr:     rdb.Options().Addr,
			Password: rdb.Options().Password,
			DB:       rdb.Options().DB,
		},
		&asynq.SchedulerOpts{Location: time.UTC},
	)

	if _, err := scheduler.Register("@every 6h", asynq.NewTask(TypeOrphanSweep, nil)); err != nil {
		return nil, fmt.Errorf("failed to register orphan sweep schedule: %w", err)
	}
	return scheduler, nil
}

// --- Task Handlers ---

// HandleEmailDeliveryTask processes email delivery tasks.
type EmailTaskPayload struct {
	To         string                 `json:"to"`
	TemplateID string                 `json:"template_id"`
	Locale     string                 `json:"locale,omitempty"` // Optional locale
	Data       map[string]interface{} `json:"data"`
}

func (p *TaskProcessor) HandleEmailDeliveryTask(ctx context.Context, t *asynq.Task) error {
	var payload EmailTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal email task payload: %v: %w", err, asynq.SkipRetry)
	}

	fmt.Printf("Sending email task: To=%s, Template=%s\n", payload.To, payload.TemplateID)

	// Determine locale (use default if not provided)
	locale := payload.Locale
	if locale == "" {
		locale = "pt-BR"
	}

	// Get Email Template from DB
	tmpl, err := p.emailTemplateService.GetTemplate(ctx, payload.TemplateID, locale)
	if err != nil {
		log.Printf("Error getting email template %s/%s: %v", payload.TemplateID, locale, err)
		// Non-retryable if template not found
		return fmt.Errorf("email template not found: %w", asynq.SkipRetry)
	}

	// Simple placeholder replacement (replace {{.key}})
	subjectRendered := tmpl.Subject
	bodyRendered := tmpl.Body
	for key, val := range payload.Data {
		placeholder := fmt.Sprintf("{{.%s}}", key)
		valueStr := fmt.Sprintf("%v", val)
		subjectRendered = strings.ReplaceAll(subjectRendered, placeholder, valueStr)
		bodyRendered = strings.ReplaceAll(bodyRendered, placeholder, valueStr)
	}

	fromAddress := p.cfg.SmtpFromAddress
	if fromAddress == "" {
		fromAddress = "noreply@example.com"
		log.Printf("Warning: SmtpFromAddress not configured, using fallback %s for email to %s", fromAddress, payload.To)
	}

	// Basic email structure with essential headers.
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("To: %s\r\n", payload.To))
	sb.WriteString(fmt.Sprintf("From: %s\r\n", fromAddress))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", subjectRendered))
	sb.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(bodyRendered)
	sb.WriteString("\r\n")

	rawMessage := []byte(sb.String())

	err = p.emailSender.Send(ctx, []string{payload.To}, subjectRendered, rawMessage)
	if err != nil {
		fmt.Printf("Email sending failed (will retry?): %v\n", err)
		return err
	}

	fmt.Printf("Email task processed successfully: To=%s, Template=%s\n", payload.To, payload.TemplateID)
	return nil
}

// HandleImageProcessTask normalizes an uploaded car image in place.
type ImageTaskPayload struct {
	S3Key string `json:"s3_key"`
}

func (p *TaskProcessor) HandleImageProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ImageTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal image task payload: %v: %w", err, asynq.SkipRetry)
	}

	log.Printf("Processing image task: S3Key=%s", payload.S3Key)

	imgData, err := p.storageService.Get(ctx, payload.S3Key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			// The object may have been detached or the car deleted since enqueue.
			log.Printf("S3 object %s no longer exists, skipping processing.", payload.S3Key)
			return fmt.Errorf("s3 object not found: %w", asynq.SkipRetry)
		}
		return fmt.Errorf("failed to download image from S3: %w", err)
	}

	if int64(len(imgData)) > p.cfg.ImageMaxSizeBytes {
		log.Printf("Image %s exceeds max size (%d > %d bytes). Skipping.", payload.S3Key, len(imgData), p.cfg.ImageMaxSizeBytes)
		return fmt.Errorf("image exceeds max size: %w", asynq.SkipRetry)
	}

	img, format, err := image.Decode(bytes.NewReader(imgData))
	if err != nil {
		log.Printf("Error decoding image for key %s: %v", payload.S3Key, err)
		return fmt.Errorf("unsupported image format or corrupt image: %w", asynq.SkipRetry)
	}
	log.Printf("Decoded image %s, format: %s, size: %dx%d", payload.S3Key, format, img.Bounds().Dx(), img.Bounds().Dy())

	maxWidth := uint(p.cfg.ImageMaxDimension)
	maxHeight := uint(p.cfg.ImageMaxDimension)
	needsResize := uint(img.Bounds().Dx()) > maxWidth || uint(img.Bounds().Dy()) > maxHeight
	if !needsResize {
		log.Printf("Image %s within limits, nothing to do.", payload.S3Key)
		return nil
	}

	log.Printf("Resizing image %s (original: %dx%d, max: %dx%d)", payload.S3Key, img.Bounds().Dx(), img.Bounds().Dy(), maxWidth, maxHeight)
	resizedImg := resize.Thumbnail(maxWidth, maxHeight, img, resize.Lanczos3)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resizedImg, &jpeg.Options{Quality: 85}); err != nil {
		log.Printf("Error encoding resized image %s: %v", payload.S3Key, err)
		return fmt.Errorf("failed to re-encode resized image: %w", err)
	}
	log.Printf("Resized image %s to %dx%d", payload.S3Key, resizedImg.Bounds().Dx(), resizedImg.Bounds().Dy())

	if err := p.storageService.Upload(ctx, payload.S3Key, "image/jpeg", buf.Bytes()); err != nil {
		log.Printf("Error uploading processed image %s to S3: %v", payload.S3Key, err)
		return fmt.Errorf("failed to upload processed image: %w", err)
	}

	log.Printf("Image task processed successfully: Key=%s", payload.S3Key)
	return nil
}

// HandleOrphanSweepTask removes bucket objects that no car references
// and that are old enough to no longer belong to a live draft.
func (p *TaskProcessor) HandleOrphanSweepTask(ctx context.Context, t *asynq.Task) error {
	log.Println("Starting orphan image sweep...")

	referenced, err := p.carService.ReferencedImagePaths(ctx)
	if err != nil {
		log.Printf("Error collecting referenced image paths: %v", err)
		return err
	}

	objects, err := p.storageService.List(ctx, "")
	if err != nil {
		log.Printf("Error listing bucket objects for orphan sweep: %v", err)
		return err
	}

	maxAge := p.configService.GetDuration(ctx, "MAX_ORPHAN_AGE_SECONDS", p.cfg.MaxOrphanAge)
	cutoff := time.Now().UTC().Add(-maxAge)
	removedCount := 0

	for _, obj := range objects {
		if referenced[obj.Key] {
			continue
		}
		// Recent uploads may belong to a draft still being composed.
		if obj.LastModified.After(cutoff) {
			continue
		}
		if err := p.storageService.Remove(ctx, obj.Key); err != nil {
			if errors.Is(err, storage.ErrObjectNotFound) {
				continue
			}
			log.Printf("WARN: failed to remove orphan object %s: %v", obj.Key, err)
			continue
		}
		removedCount++
	}

	log.Printf("Orphan image sweep finished. Removed %d of %d objects (referenced: %d).", removedCount, len(objects), len(referenced))
	return nil
}
