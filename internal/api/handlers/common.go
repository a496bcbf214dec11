package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/clonehub/internal/services"
	"github.com/yoockh/clonehub/internal/utils"
)

type APIError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

func writeError(c *gin.Context, err error) {
	status := utils.HTTPStatus(err)
	_ = c.Error(err)

	var ae *utils.AppError
	if errors.As(err, &ae) {
		c.JSON(status, APIError{
			Code:    ae.Code,
			Message: ae.Message,
		})
		return
	}

	c.JSON(status, APIError{
		Code:    utils.CodeInternal,
		Message: http.StatusText(status),
	})
}

func requireUserID(c *gin.Context) (string, bool) {
	if s := contextUserID(c); s != "" {
		return s, true
	}

	writeError(c, utils.E(utils.CodeUnauthorized, "Auth", "unauthorized", nil))
	return "", false
}

func contextUserID(c *gin.Context) string {
	if v, ok := c.Get("user_id"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// queryInt returns def when the parameter is absent and an INVALID_ARGUMENT
// error when it is not an integer.
func queryInt(c *gin.Context, name string, def int) (int, error) {
	s := c.Query(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, utils.E(utils.CodeInvalidArgument, "Query", name+" must be an integer", err)
	}
	return n, nil
}

// formValues merges the plain and bracketed spellings of a multipart field.
func formValues(form *multipart.Form, name string) []string {
	out := append([]string{}, form.Value[name]...)
	return append(out, form.Value[name+"[]"]...)
}

func formFiles(form *multipart.Form, names ...string) []*multipart.FileHeader {
	var out []*multipart.FileHeader
	for _, n := range names {
		out = append(out, form.File[n]...)
		out = append(out, form.File[n+"[]"]...)
	}
	return out
}

func toUpload(fh *multipart.FileHeader) services.Upload {
	return services.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

func toUploads(fhs []*multipart.FileHeader) []services.Upload {
	out := make([]services.Upload, 0, len(fhs))
	for _, fh := range fhs {
		out = append(out, toUpload(fh))
	}
	return out
}
