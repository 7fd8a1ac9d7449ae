package http_handler

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

type deleteBatchRequest struct {
	Keys []string `json:"keys"`
}

type deleteBatchResponse struct {
	Failed map[string]string `json:"failed"`
}

func (s *Server) handlePut(c *fiber.Ctx) error {
	size := int64(c.Request().Header.ContentLength())
	if size < 0 {
		return fiber.NewError(fiber.StatusLengthRequired, "content length is required")
	}

	body := c.Context().RequestBodyStream()
	if body == nil {
		body = bytes.NewReader(c.Body())
	}
	if err := s.objects.PutObject(c.UserContext(), c.Params("*"), body, size); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusCreated)
}

func (s *Server) handleGet(c *fiber.Ctx) error {
	key := c.Params("*")
	if c.Method() == fiber.MethodHead {
		size, err := s.objects.HeadObject(c.UserContext(), key)
		if err != nil {
			// HEAD answers carry no body.
			return c.SendStatus(statusOf(err))
		}
		c.Set(fiber.HeaderAcceptRanges, "bytes")
		c.Response().Header.SetContentLength(int(size))
		c.Status(fiber.StatusOK)
		return nil
	}

	offset, length, err := parseRange(c.Get(fiber.HeaderRange))
	if err != nil {
		return err
	}
	if offset < 0 {
		// Suffix range: the last -offset bytes.
		total, err := s.objects.HeadObject(c.UserContext(), key)
		if err != nil {
			return err
		}
		offset = total + offset
		if offset < 0 {
			offset = 0
		}
		length = -1
	}

	body, rng, err := s.objects.GetObject(c.UserContext(), key, offset, length)
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
	c.Set(fiber.HeaderAcceptRanges, "bytes")
	if rng.Partial() {
		c.Set(fiber.HeaderContentRange, fmt.Sprintf("bytes %d-%d/%d", rng.Offset, rng.Offset+rng.Length-1, rng.Total))
		c.Status(fiber.StatusPartialContent)
	}
	return c.SendStream(body, int(rng.Length))
}

func (s *Server) handleDelete(c *fiber.Ctx) error {
	if err := s.objects.DeleteObject(c.UserContext(), c.Params("*")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleDeleteBatch(c *fiber.Ctx) error {
	var req deleteBatchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed batch delete body")
	}
	failed := s.objects.DeleteObjects(c.UserContext(), req.Keys)
	return c.JSON(deleteBatchResponse{Failed: failed})
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	stats, err := s.objects.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(stats)
}

// parseRange reads "bytes=a-b", "bytes=a-" and "bytes=-n". A suffix range is
// returned as a negative offset. No header means the whole object.
func parseRange(header string) (offset, length int64, err error) {
	if header == "" {
		return 0, -1, nil
	}
	bad := fiber.NewError(fiber.StatusBadRequest, "malformed range header")
	set, ok := strings.CutPrefix(header, "bytes=")
	if !ok || strings.Contains(set, ",") {
		return 0, 0, bad
	}
	first, last, ok := strings.Cut(set, "-")
	if !ok {
		return 0, 0, bad
	}

	if first == "" {
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil || n <= 0 {
			return 0, 0, bad
		}
		return -n, -1, nil
	}

	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil || start < 0 {
		return 0, 0, bad
	}
	if last == "" {
		return start, -1, nil
	}
	end, err := strconv.ParseInt(last, 10, 64)
	if err != nil || end < start {
		return 0, 0, bad
	}
	return start, end - start + 1, nil
}
