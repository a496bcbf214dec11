package services

import (
	"encoding/json"
	"io"
	"mime"
	"strings"

	"github.com/yoockh/clonehub/internal/links"
	"github.com/yoockh/clonehub/internal/models"
	"github.com/yoockh/clonehub/internal/utils"
)

// Upload is one file part of a multipart request. Open may be called once.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

type CreateCloneInput struct {
	Name         string
	Tone         []string
	Style        []string
	Values       []string
	Catchphrases []string
	Dos          string
	Donts        string
	Description  string

	// UserID, when set, receives a back-pointer to the new clone.
	UserID string

	Image     *Upload
	Documents []Upload
	Links     []links.RawLink
}

// ParseListField normalises the form values of a list field. A single value
// holding a JSON array is decoded; any other value is taken literally, so a
// bare scalar becomes a one-element list. Blank entries are dropped.
func ParseListField(field string, values []string) ([]string, error) {
	const op = "services.ParseListField"

	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if strings.HasPrefix(v, "[") {
			var arr []string
			if err := json.Unmarshal([]byte(v), &arr); err != nil {
				return nil, utils.E(utils.CodeInvalidArgument, op, "malformed JSON list in field "+field, err)
			}
			for _, a := range arr {
				if a = strings.TrimSpace(a); a != "" {
					out = append(out, a)
				}
			}
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func isPDF(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == models.MimePDF
}

type validatedInput struct {
	clone      *models.Clone
	videoLinks []string
	otherLinks []string
}

func validateCreate(in CreateCloneInput, imageMax int64) (*validatedInput, error) {
	const op = "CloneService.Create"

	name := strings.TrimSpace(in.Name)
	tone := trimAll(in.Tone)
	style := trimAll(in.Style)
	values := dedupe(trimAll(in.Values))

	var missing []string
	if name == "" {
		missing = append(missing, "cloneName")
	}
	if len(tone) == 0 {
		missing = append(missing, "tone")
	}
	if len(style) == 0 {
		missing = append(missing, "style")
	}
	if len(values) == 0 {
		missing = append(missing, "values")
	}
	if len(missing) > 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "missing required fields: "+strings.Join(missing, ", "), nil)
	}

	if in.Image != nil && imageMax > 0 && in.Image.Size > imageMax {
		return nil, utils.E(utils.CodeInvalidArgument, op, "clone image too large", nil)
	}

	video, other, err := links.Classify(in.Links)
	if err != nil {
		return nil, err
	}

	return &validatedInput{
		clone: &models.Clone{
			CloneID:      utils.NewCloneID(),
			Name:         name,
			Tone:         tone,
			Style:        style,
			Values:       values,
			Catchphrases: trimAll(in.Catchphrases),
			Dos:          strings.TrimSpace(in.Dos),
			Donts:        strings.TrimSpace(in.Donts),
			Description:  strings.TrimSpace(in.Description),
			Image:        models.DefaultImage,
			Status:       models.StatusDraft,
			FileUploads:  []string{},
			CreatedBy:    strings.TrimSpace(in.UserID),
		},
		videoLinks: video,
		otherLinks: other,
	}, nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
