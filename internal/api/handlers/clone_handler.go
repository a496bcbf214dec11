package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/clonehub/internal/links"
	"github.com/yoockh/clonehub/internal/models"
	"github.com/yoockh/clonehub/internal/services"
	"github.com/yoockh/clonehub/internal/utils"
)

type CloneHandler struct {
	svc services.CloneService
}

func NewCloneHandler(svc services.CloneService) *CloneHandler {
	return &CloneHandler{svc: svc}
}

// Create handles POST /clone/create.
func (h *CloneHandler) Create(c *gin.Context) {
	const op = "CloneHandler.Create"

	form, err := c.MultipartForm()
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "expected a multipart form", err))
		return
	}

	in := services.CreateCloneInput{
		Name:        first(form.Value["cloneName"]),
		Dos:         first(form.Value["dos"]),
		Donts:       first(form.Value["donts"]),
		Description: first(formValues(form, "description")),
		UserID:      first(form.Value["userId"]),
	}
	if in.Description == "" {
		in.Description = first(form.Value["freeformDescription"])
	}
	if in.UserID == "" {
		in.UserID = contextUserID(c)
	}

	for _, f := range []struct {
		name string
		dst  *[]string
	}{
		{"tone", &in.Tone},
		{"style", &in.Style},
		{"values", &in.Values},
		{"catchphrases", &in.Catchphrases},
	} {
		vals, err := services.ParseListField(f.name, formValues(form, f.name))
		if err != nil {
			writeError(c, err)
			return
		}
		*f.dst = vals
	}

	var raw []string
	for _, name := range []string{"links", "youtubeLinks", "otherLinks"} {
		raw = append(raw, formValues(form, name)...)
	}
	in.Links, err = links.ParseFormValues(raw)
	if err != nil {
		writeError(c, err)
		return
	}

	if imgs := form.File["cloneImage"]; len(imgs) > 0 {
		up := toUpload(imgs[0])
		in.Image = &up
	}
	in.Documents = toUploads(formFiles(form, "uploadedFiles"))

	res, err := h.svc.Create(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func first(vals []string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func (h *CloneHandler) Get(c *gin.Context) {
	v, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *CloneHandler) List(c *gin.Context) {
	limit, err := queryInt(c, "limit", services.DefaultListLimit)
	if err != nil {
		writeError(c, err)
		return
	}
	if limit < 1 {
		writeError(c, utils.E(utils.CodeInvalidArgument, "CloneHandler.List", "limit must be between 1 and 100", nil))
		return
	}

	rows, err := h.svc.List(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"clones": rows, "count": len(rows)})
}

type uiPayload struct {
	UIType string `json:"uiType"`
	Data   any    `json:"data"`
}

// emptyForm is what the create screen renders before any input.
func emptyForm() *services.CloneView {
	return &services.CloneView{
		Tone:         []string{},
		Style:        []string{},
		Values:       []string{},
		Catchphrases: []string{},
		Image:        models.DefaultImage,
		Status:       models.StatusDraft,
		FileUploads:  []services.FileView{},
		YoutubeLinks: []string{},
		OtherLinks:   []string{},
	}
}

// UI serves the payload for the clone screen: the display view for an
// existing clone, otherwise an empty create form.
func (h *CloneHandler) UI(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusOK, uiPayload{UIType: "create", Data: emptyForm()})
		return
	}

	v, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		if utils.CodeOf(err) == utils.CodeNotFound {
			c.JSON(http.StatusNotFound, uiPayload{UIType: "create", Data: emptyForm()})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, uiPayload{UIType: "display", Data: v})
}

// UploadDocuments handles POST /clone/:id/upload/pdf.
func (h *CloneHandler) UploadDocuments(c *gin.Context) {
	const op = "CloneHandler.UploadDocuments"

	form, err := c.MultipartForm()
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "expected a multipart form", err))
		return
	}

	res, err := h.svc.AppendDocuments(c.Request.Context(), c.Param("id"), toUploads(formFiles(form, "files", "uploadedFiles")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type replaceLinksRequest struct {
	Links []links.RawLink `json:"links"`
}

// ReplaceLinks handles POST /clone/:id/upload/youtube and /upload/other.
func (h *CloneHandler) ReplaceLinks(c *gin.Context) {
	const op = "CloneHandler.ReplaceLinks"

	var req replaceLinksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if utils.CodeOf(err) != utils.CodeInvalidArgument {
			err = utils.E(utils.CodeInvalidArgument, op, `body must be {"links": [...]}`, err)
		}
		writeError(c, err)
		return
	}

	bucket := models.LinkBucket(c.Param("bucket"))
	lv, err := h.svc.ReplaceLinks(c.Request.Context(), c.Param("id"), bucket, req.Links)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, lv)
}

type statusRequest struct {
	Status models.CloneStatus `json:"status" binding:"required"`
}

func (h *CloneHandler) SetStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "CloneHandler.SetStatus", "status is required", err))
		return
	}

	v, err := h.svc.SetStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}
