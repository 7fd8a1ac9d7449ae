package http_handler

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/anthanhphan/go-chunk-transfer/internal/api/domain"
	"github.com/gofiber/fiber/v2"
)

type deleteFilesRequest struct {
	FileIDs []string `json:"fileIds"`
}

type createFolderRequest struct {
	ParentID *string `json:"parentId,omitempty"`
	Name     string  `json:"name"`
}

type nodeView struct {
	ID     string            `json:"id"`
	Region string            `json:"region"`
	Bucket string            `json:"bucket"`
	Status domain.NodeStatus `json:"status"`
	Type   string            `json:"type"`
	Load   int64             `json:"load"`
}

// parseJSON wraps body decoding failures so they surface as validation errors.
func parseJSON(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return domain.NewValidationError("body", "malformed JSON: "+err.Error())
	}
	return nil
}

func userID(c *fiber.Ctx) string {
	return c.Get(headerUserID)
}

func (s *Server) handleRegister(c *fiber.Ctx) error {
	var req domain.RegisterRequest
	if err := parseJSON(c, &req); err != nil {
		return err
	}

	res, err := s.transfer.Register(c.UserContext(), userID(c), &req)
	if err != nil {
		return err
	}

	status := fiber.StatusCreated
	if res.Duplicate || len(res.ExistingChunks) > 0 {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(res)
}

func (s *Server) handleUploadChunk(c *fiber.Ctx) error {
	token := c.Get(headerToken)
	if token == "" {
		token = c.Query("token")
	}

	body := c.Context().RequestBodyStream()
	if body == nil {
		body = bytes.NewReader(c.Body())
	}

	if err := s.transfer.UploadChunk(c.UserContext(), token, c.Params("fileId"), c.Params("hash"), body); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleComplete(c *fiber.Ctx) error {
	res, err := s.transfer.MarkComplete(c.UserContext(), userID(c), c.Params("fileId"))
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (s *Server) handleMeta(c *fiber.Ctx) error {
	meta, err := s.transfer.GetFileMeta(c.UserContext(), userID(c), c.Params("fileId"))
	if err != nil {
		return err
	}
	return c.JSON(meta)
}

func (s *Server) handleGetChunk(c *fiber.Ctx) error {
	rng, err := domain.ParseRange(c.Get(fiber.HeaderRange))
	if err != nil {
		return err
	}
	token := c.Query("token")
	if token == "" {
		token = c.Get(headerToken)
	}

	stream, err := s.transfer.GetChunk(c.UserContext(), token, c.Params("fileId"), c.Params("hash"), rng)
	if err != nil {
		return err
	}

	contentType := stream.ContentType
	if contentType == "" {
		contentType = fiber.MIMEOctetStream
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderAcceptRanges, "bytes")
	c.Set(fiber.HeaderCacheControl, "no-store")
	if stream.Partial {
		c.Set(fiber.HeaderContentRange, fmt.Sprintf("bytes %d-%d/%d", stream.Offset, stream.Offset+stream.Length-1, stream.Total))
		c.Status(fiber.StatusPartialContent)
	}

	// fasthttp closes the body once it has been written out.
	return c.SendStream(stream.Body, int(stream.Length))
}

func (s *Server) handleDeleteFile(c *fiber.Ctx) error {
	report, err := s.transfer.DeleteFile(c.UserContext(), userID(c), c.Params("fileId"))
	if err != nil {
		return err
	}
	return sendReport(c, report)
}

func (s *Server) handleDeleteFiles(c *fiber.Ctx) error {
	var req deleteFilesRequest
	if err := parseJSON(c, &req); err != nil {
		return err
	}
	report, err := s.transfer.DeleteFiles(c.UserContext(), userID(c), req.FileIDs)
	if err != nil {
		return err
	}
	return sendReport(c, report)
}

// sendReport answers 207 when some node batches failed.
func sendReport(c *fiber.Ctx, report *domain.DeleteReport) error {
	if report.HasFailures() {
		return c.Status(fiber.StatusMultiStatus).JSON(report)
	}
	return c.JSON(report)
}

func (s *Server) handleCreateFolder(c *fiber.Ctx) error {
	var req createFolderRequest
	if err := parseJSON(c, &req); err != nil {
		return err
	}
	folder, err := s.trash.CreateFolder(c.UserContext(), userID(c), req.ParentID, req.Name)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(folder)
}

func (s *Server) handleTrash(c *fiber.Ctx) error {
	ids, err := s.trash.Trash(c.UserContext(), userID(c), c.Params("fileId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"trashed": ids})
}

func (s *Server) handleRestore(c *fiber.Ctx) error {
	ids, err := s.trash.Restore(c.UserContext(), userID(c), c.Params("fileId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"restored": ids})
}

func (s *Server) handlePurge(c *fiber.Ctx) error {
	days := s.cfg.App.TrashRetentionDays
	if raw := c.Query("olderThanDays"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return domain.NewValidationError("olderThanDays", "must be a non-negative integer")
		}
		days = n
	}

	report, err := s.trash.PurgeTrash(c.UserContext(), userID(c), time.Duration(days)*24*time.Hour)
	if err != nil {
		return err
	}
	return sendReport(c, report)
}

func (s *Server) handleUsage(c *fiber.Ctx) error {
	used, err := s.transfer.GetUsage(c.UserContext(), userID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"userId": userID(c), "used": used})
}

func (s *Server) handleNodes(c *fiber.Ctx) error {
	nodes := s.transfer.ListNodes(c.UserContext())
	out := make([]nodeView, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, nodeView{
			ID:     n.ID,
			Region: n.Region,
			Bucket: n.Bucket,
			Status: n.Status,
			Type:   n.Backend.Type,
			Load:   n.Load,
		})
	}
	return c.JSON(fiber.Map{"nodes": out})
}
