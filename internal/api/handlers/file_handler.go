package handlers

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/clonehub/internal/services"
)

type FileHandler struct {
	svc services.FileService
}

func NewFileHandler(svc services.FileService) *FileHandler {
	return &FileHandler{svc: svc}
}

// ListByClone handles GET /clone/files/:id.
func (h *FileHandler) ListByClone(c *gin.Context) {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		writeError(c, err)
		return
	}
	limit, err := queryInt(c, "limit", services.DefaultPageLimit)
	if err != nil {
		writeError(c, err)
		return
	}

	res, err := h.svc.ListByClone(c.Request.Context(), c.Param("id"), page, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Stream handles GET /file/:fileId. A single byte range is honoured.
func (h *FileHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()

	f, err := h.svc.Get(ctx, c.Param("fileId"))
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusOK
	offset, length := int64(0), int64(-1)
	if hdr := c.GetHeader("Range"); hdr != "" {
		start, end, err := parseRange(hdr, f.FileSize)
		switch {
		case errors.Is(err, errUnsatisfiable):
			c.Header("Content-Range", fmt.Sprintf("bytes */%d", f.FileSize))
			c.Status(http.StatusRequestedRangeNotSatisfiable)
			return
		case err == nil:
			status = http.StatusPartialContent
			offset, length = start, end-start+1
		}
	}

	blob, err := h.svc.Open(ctx, f, offset, length)
	if err != nil {
		writeError(c, err)
		return
	}
	defer blob.Body.Close()

	headers := map[string]string{
		"Accept-Ranges":       "bytes",
		"Content-Disposition": mime.FormatMediaType("inline", map[string]string{"filename": f.OriginalName}),
	}
	if status == http.StatusPartialContent {
		headers["Content-Range"] = fmt.Sprintf("bytes %d-%d/%d", blob.Offset, blob.Offset+blob.Length-1, blob.Size)
	}
	c.DataFromReader(status, blob.Length, f.MimeType, blob.Body, headers)
}

var (
	errUnsatisfiable = errors.New("range not satisfiable")
	errIgnoredRange  = errors.New("range ignored")
)

// parseRange parses a single "bytes=" range against size and returns the
// inclusive bounds. Malformed and multi-part ranges yield errIgnoredRange so
// the whole body is served.
func parseRange(h string, size int64) (int64, int64, error) {
	rng, ok := strings.CutPrefix(h, "bytes=")
	if !ok || strings.Contains(rng, ",") {
		return 0, 0, errIgnoredRange
	}
	a, b, ok := strings.Cut(strings.TrimSpace(rng), "-")
	if !ok {
		return 0, 0, errIgnoredRange
	}

	if a == "" {
		n, err := strconv.ParseInt(b, 10, 64)
		if err != nil || n < 0 {
			return 0, 0, errIgnoredRange
		}
		if n == 0 || size == 0 {
			return 0, 0, errUnsatisfiable
		}
		if n > size {
			n = size
		}
		return size - n, size - 1, nil
	}

	start, err := strconv.ParseInt(a, 10, 64)
	if err != nil || start < 0 {
		return 0, 0, errIgnoredRange
	}
	if start >= size {
		return 0, 0, errUnsatisfiable
	}
	end := size - 1
	if b != "" {
		e, err := strconv.ParseInt(b, 10, 64)
		if err != nil || e < start {
			return 0, 0, errIgnoredRange
		}
		if e < end {
			end = e
		}
	}
	return start, end, nil
}
