package draft

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zsleinadg/WebCarros/internal/models"
	"github.com/zsleinadg/WebCarros/internal/session"
	"github.com/zsleinadg/WebCarros/internal/storage"
	"github.com/zsleinadg/WebCarros/internal/validation"
)

// Precondition errors. Messages are user-visible.
var (
	ErrInvalidImageType = errors.New("Envie uma imagem jpeg ou png!")
	ErrImageTooLarge    = errors.New("Envie uma imagem de até 5MB!")
	ErrNoImages         = errors.New("Envie no mínimo 1 imagem de carro!")
	ErrNotSignedIn      = errors.New("sessão expirada, faça login novamente")
	ErrNotAttached      = errors.New("imagem não encontrada no anúncio")
)

// ErrSubmitFailed is what a failed submission surfaces to the user; the
// underlying cause is only logged.
var ErrSubmitFailed = errors.New("Erro ao cadastrar o carro")

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

// Upload is one candidate image file, fully read into memory.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Image is one attached draft image. Preview is the locally owned
// resource; everything else mirrors what will be persisted.
type Image struct {
	Name    string         `json:"name"`
	OwnerID string         `json:"uid"`
	Path    string         `json:"path"`
	URL     string         `json:"url"`
	Preview *PreviewHandle `json:"-"`
}

// Ref projects the image to its persistable form, dropping the preview.
func (img *Image) Ref() models.CarImageRef {
	return models.CarImageRef{
		Name:    img.Name,
		OwnerID: img.OwnerID,
		Path:    img.Path,
		URL:     img.URL,
	}
}

// ICarInserter is the persistence collaborator the submission hands the
// assembled record to.
type ICarInserter interface {
	Create(ctx context.Context, car *models.Car) error
}

// IImageEnqueuer schedules post-upload processing for an object key.
type IImageEnqueuer interface {
	EnqueueImageProcess(ctx context.Context, path string) error
}

// Manager owns one listing draft: the form fields and the ordered image
// list. A draft has a single active editor, but the HTTP layer may issue
// parallel requests for it, so all state access is serialized internally.
type Manager struct {
	sess      session.ISession
	store     storage.IS3Storage
	inserter  ICarInserter
	validator validation.ICarFormValidator
	enqueuer  IImageEnqueuer // optional
	maxBytes  int64

	mu     sync.Mutex
	form   validation.CarForm
	images []*Image
}

// NewManager creates an empty draft. All collaborators are injected;
// enqueuer may be nil when no background processing is wanted.
func NewManager(sess session.ISession, store storage.IS3Storage, inserter ICarInserter, v validation.ICarFormValidator, enqueuer IImageEnqueuer, maxBytes int64) *Manager {
	return &Manager{
		sess:      sess,
		store:     store,
		inserter:  inserter,
		validator: v,
		enqueuer:  enqueuer,
		maxBytes:  maxBytes,
	}
}

// SetForm replaces the form fields and re-validates, so errors can be
// shown live on every change. Returns nil when the payload is well-formed.
func (m *Manager) SetForm(form validation.CarForm) validation.FieldErrors {
	m.mu.Lock()
	m.form = form
	m.mu.Unlock()
	return m.validator.Validate(form)
}

// Form returns the current form fields.
func (m *Manager) Form() validation.CarForm {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.form
}

// Images returns the attached images in attachment order.
func (m *Manager) Images() []*Image {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Image, len(m.images))
	copy(out, m.images)
	return out
}

// Attach validates the upload, stores it remotely and appends it to the
// draft. On any failure the image list is unchanged and no retry happens.
func (m *Manager) Attach(ctx context.Context, up Upload) (*Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.sess.Snapshot()
	if snap.Loading || !snap.SignedIn {
		return nil, ErrNotSignedIn
	}

	ext, ok := allowedImageTypes[up.ContentType]
	if !ok {
		return nil, ErrInvalidImageType
	}
	if int64(len(up.Data)) > m.maxBytes {
		return nil, ErrImageTooLarge
	}

	// Keep the original extension when the filename carries one.
	if orig := strings.ToLower(filepath.Ext(up.Filename)); orig == ".jpg" || orig == ".jpeg" || orig == ".png" {
		ext = orig
	}

	name := uuid.NewString() + ext
	path := snap.User.ID + "/" + name

	// The preview is local-only; create it before the remote call so a
	// remote failure leaves nothing to clean up but the handle itself.
	preview, err := NewPreviewHandle(up.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to create preview: %w", err)
	}

	if err := m.store.Upload(ctx, path, up.ContentType, up.Data); err != nil {
		if relErr := preview.Release(); relErr != nil {
			log.Printf("WARN: failed to release preview after upload error: %v", relErr)
		}
		return nil, fmt.Errorf("failed to upload image: %w", err)
	}

	img := &Image{
		Name:    name,
		OwnerID: snap.User.ID,
		Path:    path,
		URL:     m.store.PublicURL(path),
		Preview: preview,
	}
	m.images = append(m.images, img)

	if m.enqueuer != nil {
		if err := m.enqueuer.EnqueueImageProcess(ctx, path); err != nil {
			log.Printf("WARN: failed to enqueue image processing for %s: %v", path, err)
		}
	}

	return img, nil
}

// Detach removes the named image from the draft. The remote object is
// deleted first; an already-absent object is benign, any other remote
// failure leaves the list unchanged.
func (m *Manager) Detach(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := -1
	for i, img := range m.images {
		if img.Name == name {
			idx = i
			break
		}
	}
	if idx == -1 {
		return ErrNotAttached
	}
	img := m.images[idx]

	if err := m.store.Remove(ctx, img.Path); err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			log.Printf("Image object %s already absent on detach", img.Path)
		} else {
			return fmt.Errorf("failed to delete image %s: %w", img.Path, err)
		}
	}

	m.images = append(m.images[:idx], m.images[idx+1:]...)
	if err := img.Preview.Release(); err != nil {
		log.Printf("WARN: preview release on detach of %s: %v", img.Name, err)
	}
	return nil
}

// Submit validates the draft and hands the assembled record to the
// persistence collaborator. On success the whole draft resets; on failure
// form and images are preserved so the user can retry without
// re-uploading.
func (m *Manager) Submit(ctx context.Context) (*models.Car, validation.FieldErrors, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.sess.Snapshot()
	if snap.Loading || !snap.SignedIn {
		return nil, nil, ErrNotSignedIn
	}

	if fieldErrors := m.validator.Validate(m.form); fieldErrors != nil {
		return nil, fieldErrors, nil
	}
	if len(m.images) == 0 {
		return nil, nil, ErrNoImages
	}

	refs := make([]models.CarImageRef, len(m.images))
	for i, img := range m.images {
		refs[i] = img.Ref()
	}

	car := &models.Car{
		Base:        models.NewBase(),
		Name:        m.form.Name,
		Model:       m.form.Model,
		Year:        m.form.Year,
		Km:          m.form.Km,
		Price:       m.form.Price,
		City:        m.form.City,
		UF:          m.form.UF,
		Whatsapp:    m.form.Whatsapp,
		Description: m.form.Description,
		Owner:       snap.User.Name,
		UserID:      snap.User.ID,
		Images:      refs,
		CreatedAt:   time.Now().UTC(),
	}

	if err := m.inserter.Create(ctx, car); err != nil {
		log.Printf("ERROR: failed to insert car listing for user %s: %v", snap.User.ID, err)
		return nil, nil, ErrSubmitFailed
	}

	m.reset()
	return car, nil, nil
}

// Discard abandons the draft: every preview handle is released and the
// uploaded objects are removed best-effort.
func (m *Manager) Discard(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, img := range m.images {
		if err := m.store.Remove(ctx, img.Path); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			log.Printf("WARN: failed to remove abandoned image %s: %v", img.Path, err)
		}
	}
	m.reset()
}

// reset clears the form and releases all previews. Caller holds mu.
func (m *Manager) reset() {
	for _, img := range m.images {
		if err := img.Preview.Release(); err != nil {
			log.Printf("WARN: preview release on reset of %s: %v", img.Name, err)
		}
	}
	m.images = nil
	m.form = validation.CarForm{}
}
