package services

import (
	"strings"
	"time"

	"github.com/yoockh/clonehub/internal/models"
)

// CloneView is the resolved form of a clone returned by the API: document
// references become file summaries and the link collection is inlined.
type CloneView struct {
	ID           string             `json:"id"`
	CloneID      string             `json:"cloneId"`
	CloneName    string             `json:"cloneName"`
	Tone         []string           `json:"tone"`
	Style        []string           `json:"style"`
	Values       []string           `json:"values"`
	Catchphrases []string           `json:"catchphrases"`
	Dos          string             `json:"dos"`
	Donts        string             `json:"donts"`
	Description  string             `json:"freeformDescription"`
	Image        string             `json:"image"`
	Status       models.CloneStatus `json:"status"`
	FileUploads  []FileView         `json:"fileUploads"`
	LinkUploadID string             `json:"linkUploadId,omitempty"`
	YoutubeLinks []string           `json:"youtubeLinks"`
	OtherLinks   []string           `json:"otherLinks"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

type FileView struct {
	FileID       string    `json:"fileId"`
	OriginalName string    `json:"originalName"`
	FileSize     int64     `json:"fileSize"`
	MimeType     string    `json:"mimeType"`
	PageCount    int       `json:"pageCount,omitempty"`
	UploadDate   time.Time `json:"uploadDate"`
	Link         string    `json:"link"`
}

type LinkView struct {
	ID           string   `json:"id"`
	YoutubeLinks []string `json:"youtubeLinks"`
	OtherLinks   []string `json:"otherLinks"`
}

// AssetStatus reports the outcome of one optional ingestion stage.
type AssetStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type FileOutcome struct {
	OriginalName string `json:"originalName"`
	Status       string `json:"status"`
	FileID       string `json:"fileId,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

type AssetReport struct {
	UserLink  *AssetStatus  `json:"userLink,omitempty"`
	Image     *AssetStatus  `json:"image,omitempty"`
	Documents []FileOutcome `json:"documents,omitempty"`
	Links     *AssetStatus  `json:"links,omitempty"`
}

type CreateResult struct {
	CloneView
	Assets AssetReport `json:"assets"`
}

type AppendResult struct {
	FileUploads []FileView    `json:"fileUploads"`
	Documents   []FileOutcome `json:"documents"`
}

func fileLink(backendURL, fileID string) string {
	return strings.TrimRight(backendURL, "/") + "/file/" + fileID
}

func toFileView(f *models.FileUpload, backendURL string) FileView {
	id := f.ID.Hex()
	return FileView{
		FileID:       id,
		OriginalName: f.OriginalName,
		FileSize:     f.FileSize,
		MimeType:     f.MimeType,
		PageCount:    f.PageCount,
		UploadDate:   f.UploadDate,
		Link:         fileLink(backendURL, id),
	}
}

func toCloneView(c *models.Clone) *CloneView {
	return &CloneView{
		ID:           c.ID.Hex(),
		CloneID:      c.CloneID,
		CloneName:    c.Name,
		Tone:         nonNil(c.Tone),
		Style:        nonNil(c.Style),
		Values:       nonNil(c.Values),
		Catchphrases: nonNil(c.Catchphrases),
		Dos:          c.Dos,
		Donts:        c.Donts,
		Description:  c.Description,
		Image:        c.Image,
		Status:       c.Status,
		FileUploads:  []FileView{},
		LinkUploadID: c.LinkUploadID,
		YoutubeLinks: []string{},
		OtherLinks:   []string{},
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
