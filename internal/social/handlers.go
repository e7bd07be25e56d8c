package social

import (
	"errors"
	"strings"

	"backend-cityfix/internal/docstore"
	"backend-cityfix/internal/shared/geo"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

type createPostRequest struct {
	Text          string     `json:"text" validate:"required_without=PhotoURL,max=2000"`
	PhotoURL      string     `json:"photoUrl" validate:"omitempty,url"`
	MediaType     string     `json:"mediaType" validate:"omitempty,oneof=image video"`
	Location      *geo.Point `json:"location"`
	ManualAddress string     `json:"manualAddress" validate:"max=300"`
}

type reportIssueRequest struct {
	Title         string     `json:"title" validate:"required,max=200"`
	Description   string     `json:"description" validate:"max=4000"`
	Photos        []string   `json:"photos" validate:"max=10,dive,url"`
	MediaType     string     `json:"mediaType" validate:"omitempty,oneof=image video"`
	Location      *geo.Point `json:"location"`
	ManualAddress string     `json:"manualAddress" validate:"max=300"`
}

type commentRequest struct {
	Text string `json:"text" validate:"required,max=1000"`
}

type statusRequest struct {
	Status     string `json:"status" validate:"required,oneof=verified resolved"`
	AfterPhoto string `json:"afterPhoto" validate:"omitempty,url"`
}

// RegisterRoutes mounts the social API. Author names, avatars and emails on
// new posts and comments come from authors, never from the request body.
func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler, authors AuthorLookup) {
	r.Get("/feed/live", authMiddleware, func(c *fiber.Ctx) error {
		return c.JSON(svc.GetVerifiedFeed(c.Context(), docstore.Cursor(c.Query("cursor")), c.QueryInt("limit")))
	})

	r.Get("/feed/neighborhood", authMiddleware, func(c *fiber.Ctx) error {
		return c.JSON(svc.GetNeighborhoodFeed(c.Context(), docstore.Cursor(c.Query("cursor")), c.QueryInt("limit")))
	})

	r.Get("/nearby", authMiddleware, func(c *fiber.Ctx) error {
		center := geo.Point{Lat: c.QueryFloat("lat"), Lng: c.QueryFloat("lng")}
		if err := validate.Struct(center); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		tickets, err := svc.NearbyTickets(c.Context(), center, c.QueryFloat("radius_km", 5))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(tickets)
	})

	r.Get("/tickets/:id", authMiddleware, func(c *fiber.Ctx) error {
		t, err := svc.GetTicket(c.Context(), c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(t)
	})

	for _, kind := range []Relation{Like, Upvote} {
		r.Get("/tickets/:id/"+kind.String(), authMiddleware, func(c *fiber.Ctx) error {
			active, err := svc.CheckRelation(c.Context(), c.Params("id"), currentUser(c), kind)
			if err != nil {
				return httpError(err)
			}
			return c.JSON(fiber.Map{"active": active})
		})

		r.Post("/tickets/:id/"+kind.String(), authMiddleware, func(c *fiber.Ctx) error {
			active, err := svc.ToggleRelation(c.Context(), c.Params("id"), currentUser(c), kind)
			if err != nil {
				return httpError(err)
			}
			return c.JSON(fiber.Map{"active": active})
		})
	}

	r.Get("/tickets/:id/comments", authMiddleware, func(c *fiber.Ctx) error {
		comments, err := svc.GetComments(c.Context(), c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(comments)
	})

	r.Post("/tickets/:id/comments", authMiddleware, func(c *fiber.Ctx) error {
		var req commentRequest
		if err := parseAndValidate(c, &req); err != nil {
			return err
		}
		author, err := currentAuthor(c, authors)
		if err != nil {
			return err
		}
		comment, err := svc.AddComment(c.Context(), NewComment{
			TicketID: c.Params("id"),
			UserID:   currentUser(c),
			UserName: author.Name,
			Text:     req.Text,
			Avatar:   author.Avatar,
		})
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(comment)
	})

	r.Post("/tickets/:id/comments/:commentId/flag", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.FlagComment(c.Context(), c.Params("id"), c.Params("commentId")); err != nil {
			return httpError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Patch("/tickets/:id/status", authMiddleware, func(c *fiber.Ctx) error {
		var req statusRequest
		if err := parseAndValidate(c, &req); err != nil {
			return err
		}
		if err := svc.UpdateStatus(c.Context(), c.Params("id"), Status(req.Status), req.AfterPhoto); err != nil {
			return httpError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Post("/posts", authMiddleware, func(c *fiber.Ctx) error {
		var req createPostRequest
		if err := parseAndValidate(c, &req); err != nil {
			return err
		}
		author, err := currentAuthor(c, authors)
		if err != nil {
			return err
		}
		id, err := svc.CreatePost(c.Context(), NewPost{
			UserID:        currentUser(c),
			UserAvatar:    author.Avatar,
			UserName:      author.Name,
			UserEmail:     author.Email,
			Text:          req.Text,
			PhotoURL:      req.PhotoURL,
			Coords:        req.Location,
			MediaType:     MediaType(req.MediaType),
			ManualAddress: req.ManualAddress,
		})
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
	})

	// Only the author may delete a post.
	r.Delete("/posts/:id", authMiddleware, func(c *fiber.Ctx) error {
		t, err := svc.GetTicket(c.Context(), c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		if t.UserID != currentUser(c) {
			return fiber.NewError(fiber.StatusForbidden, "only the author can delete this post")
		}
		if err := svc.DeletePost(c.Context(), t.ID); err != nil {
			return httpError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Get("/users/:id/posts", authMiddleware, func(c *fiber.Ctx) error {
		posts, err := svc.GetUserSocialPosts(c.Context(), c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(posts)
	})

	r.Post("/issues", authMiddleware, func(c *fiber.Ctx) error {
		var req reportIssueRequest
		if err := parseAndValidate(c, &req); err != nil {
			return err
		}
		author, err := currentAuthor(c, authors)
		if err != nil {
			return err
		}
		id, err := svc.ReportIssue(c.Context(), NewIssue{
			UserID:        currentUser(c),
			UserAvatar:    author.Avatar,
			UserName:      author.Name,
			UserEmail:     author.Email,
			Title:         req.Title,
			Description:   req.Description,
			Photos:        req.Photos,
			Coords:        req.Location,
			MediaType:     MediaType(req.MediaType),
			ManualAddress: req.ManualAddress,
		})
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
	})

	r.Get("/neighbors", authMiddleware, func(c *fiber.Ctx) error {
		ids, err := svc.Neighbors(c.Context(), currentUser(c))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(ids)
	})

	r.Post("/neighbors/:id", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.AddNeighbor(c.Context(), currentUser(c), c.Params("id")); err != nil {
			return httpError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Delete("/neighbors/:id", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.RemoveNeighbor(c.Context(), currentUser(c), c.Params("id")); err != nil {
			return httpError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func currentUser(c *fiber.Ctx) string {
	userID, _ := c.Locals("user_id").(string)
	return userID
}

func currentAuthor(c *fiber.Ctx, authors AuthorLookup) (Author, error) {
	author, err := authors(c.Context(), currentUser(c))
	if errors.Is(err, docstore.ErrNotFound) {
		return Author{}, fiber.NewError(fiber.StatusUnauthorized, "no profile for the signed-in user")
	}
	if err != nil {
		return Author{}, fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return author, nil
}

func parseAndValidate(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, validationMessage(err))
	}
	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Field()+" failed "+fe.Tag())
	}
	return strings.Join(msgs, "; ")
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, docstore.ErrInvalidCursor):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrTicketNotFound), errors.Is(err, ErrCommentNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidTransition):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}
