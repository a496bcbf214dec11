// Package links normalises user supplied links and splits them into the
// video bucket and the catch-all bucket.
package links

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/yoockh/clonehub/internal/utils"
)

// VideoHosts are matched case-insensitively as substrings of the link.
var VideoHosts = []string{"youtube.com", "youtu.be"}

type Kind int

const (
	RawString Kind = iota
	ValueWrapper
)

// RawLink is a link as the client sent it: either a bare string or a
// {"value": "..."} wrapper.
type RawLink struct {
	Kind  Kind
	Value string
}

func Raw(s string) RawLink     { return RawLink{Kind: RawString, Value: s} }
func Wrapped(s string) RawLink { return RawLink{Kind: ValueWrapper, Value: s} }

func (l *RawLink) UnmarshalJSON(b []byte) error {
	const op = "links.RawLink.UnmarshalJSON"

	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return utils.E(utils.CodeInvalidArgument, op, "empty link", nil)
	}

	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return utils.E(utils.CodeInvalidArgument, op, "invalid link string", err)
		}
		*l = Raw(s)
		return nil
	case '{':
		var w struct {
			Value *string `json:"value"`
		}
		if err := json.Unmarshal(b, &w); err != nil {
			return utils.E(utils.CodeInvalidArgument, op, "invalid link object", err)
		}
		if w.Value == nil {
			return utils.E(utils.CodeInvalidArgument, op, "link object has no value", nil)
		}
		*l = Wrapped(*w.Value)
		return nil
	default:
		return utils.E(utils.CodeInvalidArgument, op, "link must be a string or {value} object", nil)
	}
}

func (l RawLink) MarshalJSON() ([]byte, error) {
	if l.Kind == ValueWrapper {
		return json.Marshal(map[string]string{"value": l.Value})
	}
	return json.Marshal(l.Value)
}

// Unwrap returns the trimmed link text regardless of its shape.
func (l RawLink) Unwrap() string { return strings.TrimSpace(l.Value) }

// ParseFormValues turns multipart form values into links. A value may be a
// bare URL, a JSON string, a JSON {value} object or a JSON array of either.
// Blank values are skipped.
func ParseFormValues(values []string) ([]RawLink, error) {
	const op = "links.ParseFormValues"

	out := make([]RawLink, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}

		switch v[0] {
		case '[':
			var arr []RawLink
			if err := json.Unmarshal([]byte(v), &arr); err != nil {
				return nil, utils.E(utils.CodeInvalidArgument, op, "malformed links array", err)
			}
			out = append(out, arr...)
		case '{', '"':
			var one RawLink
			if err := json.Unmarshal([]byte(v), &one); err != nil {
				return nil, utils.E(utils.CodeInvalidArgument, op, "malformed link", err)
			}
			out = append(out, one)
		default:
			out = append(out, Raw(v))
		}
	}
	return out, nil
}

// IsVideo reports whether the link points at a video platform host.
func IsVideo(link string) bool {
	lower := strings.ToLower(link)
	for _, h := range VideoHosts {
		if strings.Contains(lower, h) {
			return true
		}
	}
	return false
}

// Validate checks that link is an absolute http(s) URL.
func Validate(link string) error {
	const op = "links.Validate"

	if link == "" {
		return utils.E(utils.CodeInvalidArgument, op, "empty link", nil)
	}
	u, err := url.Parse(link)
	if err != nil {
		return utils.E(utils.CodeInvalidArgument, op, "invalid link: "+link, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return utils.E(utils.CodeInvalidArgument, op, "link must be an absolute http(s) url: "+link, nil)
	}
	return nil
}

// Classify partitions links into video and other links, preserving input
// order inside each bucket. Every input lands in exactly one bucket; an
// invalid element fails the whole call.
func Classify(in []RawLink) (video, other []string, err error) {
	video = []string{}
	other = []string{}

	for _, l := range in {
		s := l.Unwrap()
		if err := Validate(s); err != nil {
			return nil, nil, err
		}
		if IsVideo(s) {
			video = append(video, s)
		} else {
			other = append(other, s)
		}
	}
	return video, other, nil
}
