package storage

import (
	"bytes"
	"context"
	"errors"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

type CloudinaryHost struct {
	cld *cloudinary.Cloudinary
}

func NewCloudinaryHost(cloudName, apiKey, apiSecret string) (*CloudinaryHost, error) {
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return nil, errors.New("cloudinary: cloud name, api key and api secret are required")
	}
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, err
	}
	return &CloudinaryHost{cld: cld}, nil
}

func (h *CloudinaryHost) Upload(ctx context.Context, img Image, folder, quality string) (string, error) {
	params := uploader.UploadParams{Folder: folder}
	if quality != "" {
		params.Transformation = "q_" + quality
	}

	res, err := h.cld.Upload.Upload(ctx, bytes.NewReader(img.Data), params)
	if err != nil {
		return "", err
	}
	if res.Error.Message != "" {
		return "", errors.New("cloudinary: " + res.Error.Message)
	}
	return res.SecureURL, nil
}
