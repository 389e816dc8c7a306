package server

import (
	"io"

	"murmur/internal/cache"
	"murmur/internal/middleware"
	"murmur/internal/models"
	"murmur/internal/service"

	"github.com/gofiber/fiber/v2"
)

// readUpload returns the bytes of the multipart "file" field. Reading stops
// one byte past the size cap so oversized files are still rejected by the
// media service.
func (s *Server) readUpload(c *fiber.Ctx) ([]byte, error) {
	header, err := c.FormFile("file")
	if err != nil {
		return nil, models.NewValidationError("multipart field \"file\" is required")
	}
	f, err := header.Open()
	if err != nil {
		return nil, models.NewMediaError("failed to open upload", err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, s.config.PostImageMaxBytes()+1))
	if err != nil {
		return nil, models.NewMediaError("failed to read upload", err)
	}
	return data, nil
}

// UploadPostImage handles POST /media/posts/:post_id
func (s *Server) UploadPostImage(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	postID, err := parseUUID(c, "post_id", "Post")
	if err != nil {
		return err
	}
	data, err := s.readUpload(c)
	if err != nil {
		return err
	}

	err = s.do(c, func(sc *service.Scope) error {
		_, err := sc.Media.UploadPostImage(c.UserContext(), uid, postID, data)
		return err
	})
	if err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// UploadAvatar handles POST /media/users
func (s *Server) UploadAvatar(c *fiber.Ctx) error {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}
	data, err := s.readUpload(c)
	if err != nil {
		return err
	}

	err = s.do(c, func(sc *service.Scope) error {
		return sc.Media.UploadAvatar(c.UserContext(), user, data)
	})
	if err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetPostImage handles GET /media/posts/:token
func (s *Server) GetPostImage(c *fiber.Ctx) error {
	return s.serveImage(c, cache.PostImage)
}

// GetUserImage handles GET /media/users/:token
func (s *Server) GetUserImage(c *fiber.Ctx) error {
	return s.serveImage(c, cache.UserImage)
}

func (s *Server) serveImage(c *fiber.Ctx, kind cache.ImageKind) error {
	var img *service.Image
	err := s.do(c, func(sc *service.Scope) error {
		var err error
		img, err = sc.Media.Resolve(c.UserContext(), kind, c.Params("token"))
		return err
	})
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, img.Mime)
	c.Set(fiber.HeaderCacheControl, "private, max-age=60")
	return c.Send(img.Data)
}
