package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"backend-cityfix/internal/docstore"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	mediaCollection = "media"
	uploadTTL       = 15 * time.Minute
)

var ErrInvalidKind = errors.New("kind must be image or video")

type Object struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	URL       string `json:"url"`
	Kind      string `json:"kind"`
	CreatedAt int64  `json:"createdAt"`
}

// Service records uploaded media so posts can reference them by URL.
type Service struct {
	store   docstore.Store
	baseURL string
	now     func() time.Time
}

func NewService(store docstore.Store, baseURL string) *Service {
	return &Service{store: store, baseURL: strings.TrimRight(baseURL, "/"), now: time.Now}
}

func validKind(kind string) bool {
	return kind == "image" || kind == "video"
}

// ObjectURL builds the public URL for a new object, keeping the file extension.
func (s *Service) ObjectURL(userID, fileName string) string {
	return fmt.Sprintf("%s/%s/%s%s", s.baseURL, userID, uuid.NewString(), strings.ToLower(path.Ext(fileName)))
}

func (s *Service) SaveObject(ctx context.Context, userID, url, kind string) (string, error) {
	if !validKind(kind) {
		return "", ErrInvalidKind
	}
	return s.store.Add(ctx, mediaCollection, docstore.Fields{
		"userId":    userID,
		"url":       url,
		"kind":      kind,
		"createdAt": s.now().UnixMilli(),
	})
}

func (s *Service) GetObject(ctx context.Context, id string) (Object, error) {
	doc, err := s.store.Get(ctx, docstore.Join(mediaCollection, id))
	if err != nil {
		return Object{}, err
	}
	var obj Object
	if err := doc.DataTo(&obj); err != nil {
		return Object{}, err
	}
	obj.ID = doc.ID
	return obj, nil
}

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/upload", authMiddleware, func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		if userID == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "user required")
		}
		var body struct {
			FileName string `json:"file_name"`
			Kind     string `json:"kind"`
		}
		_ = c.BodyParser(&body)
		if body.Kind == "" {
			body.Kind = "image"
		}
		if body.FileName == "" {
			body.FileName = "upload"
		}
		url := svc.ObjectURL(userID, body.FileName)
		id, err := svc.SaveObject(c.Context(), userID, url, body.Kind)
		if errors.Is(err, ErrInvalidKind) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{
			"id":         id,
			"url":        url,
			"kind":       body.Kind,
			"expires_at": svc.now().Add(uploadTTL),
		})
	})

	r.Get("/:id", authMiddleware, func(c *fiber.Ctx) error {
		obj, err := svc.GetObject(c.Context(), c.Params("id"))
		if errors.Is(err, docstore.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "object not found")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(obj)
	})
}
