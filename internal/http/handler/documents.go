package handler

import (
	"context"
	"mime/multipart"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"docvault/internal/http/middleware"
	"docvault/internal/model"
	"docvault/internal/service"
	"docvault/internal/storage"
)

const defaultContentType = "application/octet-stream"

// tenantOf returns the tenant stored by middleware.Tenant. The service rejects an empty one.
func tenantOf(c *fiber.Ctx) string {
	if s, ok := c.Locals(middleware.TenantLocalKey).(string); ok {
		return s
	}
	return ""
}

// requestContext carries the request id into the service as the job correlation id.
func requestContext(c *fiber.Ctx) context.Context {
	return service.WithCorrelationID(c.UserContext(), requestIDFromCtx(c))
}

// documentID validates the :id path parameter.
func documentID(c *fiber.Ctx) (string, bool) {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

func invalidID(c *fiber.Ctx) error {
	return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
}

func contentTypeOf(fh *multipart.FileHeader) string {
	if ct := fh.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return defaultContentType
}

// ListDocuments handles GET /documents?status=&limit=&offset=.
func ListDocuments(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}
		status := model.DocumentStatus(c.Query("status"))

		res, err := svc.List(requestContext(c), tenantOf(c), status, limit, offset)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// UploadDocument handles POST /documents (multipart/form-data, field name: file).
// An optional "name" field overrides the display name.
func UploadDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		name := c.FormValue("name", fh.Filename)
		doc, err := svc.Upload(requestContext(c), tenantOf(c), f, name, contentTypeOf(fh), fh.Size)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(doc)
	}
}

type prepareUploadRequest struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// PrepareUpload handles POST /documents/uploads. The response carries a PUT grant the
// client uploads to before committing.
func PrepareUpload(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req prepareUploadRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}
		if req.ContentType == "" {
			req.ContentType = defaultContentType
		}

		p, err := svc.PrepareUpload(requestContext(c), tenantOf(c), req.Name, req.ContentType, req.Size)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(p)
	}
}

type nameRequest struct {
	Name string `json:"name"`
}

// CommitUpload handles POST /documents/uploads/:id/commit.
func CommitUpload(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return invalidID(c)
		}
		var req nameRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}

		doc, err := svc.CommitUpload(requestContext(c), tenantOf(c), id, req.Name)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(doc)
	}
}

// GetDocument handles GET /documents/:id.
func GetDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return invalidID(c)
		}
		doc, err := svc.Get(requestContext(c), tenantOf(c), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(doc)
	}
}

// RenameDocument handles PATCH /documents/:id with {"name": "..."}.
func RenameDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return invalidID(c)
		}
		var req nameRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}

		doc, err := svc.Rename(requestContext(c), tenantOf(c), id, req.Name)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(doc)
	}
}

// ReplaceContent handles PUT /documents/:id/content (multipart/form-data, field name: file).
func ReplaceContent(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return invalidID(c)
		}
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}
		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		doc, err := svc.ReplaceContent(requestContext(c), tenantOf(c), id, f, contentTypeOf(fh), fh.Size)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(doc)
	}
}

// TrashDocument handles POST /documents/:id/trash.
func TrashDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return invalidID(c)
		}
		doc, err := svc.Trash(requestContext(c), tenantOf(c), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(doc)
	}
}

// RestoreDocument handles POST /documents/:id/restore.
func RestoreDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return invalidID(c)
		}
		doc, err := svc.Restore(requestContext(c), tenantOf(c), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(doc)
	}
}

// DeleteDocument handles DELETE /documents/:id. The bytes are removed asynchronously.
func DeleteDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return invalidID(c)
		}
		if err := svc.Delete(requestContext(c), tenantOf(c), id); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// DownloadURL handles GET /documents/:id/download-url.
func DownloadURL(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return invalidID(c)
		}
		g, err := svc.DownloadGrant(requestContext(c), tenantOf(c), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(g)
	}
}

// DownloadContent handles GET /documents/:id/content, streaming the bytes as an attachment.
func DownloadContent(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return invalidID(c)
		}

		doc, err := svc.Download(requestContext(c), tenantOf(c), id, c.Response().BodyWriter())
		if err != nil {
			c.Response().ResetBody()
			return writeServiceError(c, err)
		}

		ct := doc.ContentType
		if ct == "" {
			ct = defaultContentType
		}
		c.Set(fiber.HeaderContentType, ct)
		c.Set(fiber.HeaderContentDisposition, storage.AttachmentDisposition(doc.Name))
		return nil
	}
}

// QuotaSummary handles GET /quota for the calling tenant.
func QuotaSummary(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := svc.QuotaSummary(requestContext(c), tenantOf(c))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(s)
	}
}
