package helpers

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/joshua-takyi/rondpoint/internal/models"
)

const EventsFolder = "events"

// ImageUploader turns client supplied images into hosted URLs.
type ImageUploader interface {
	ResolveImages(ctx context.Context, images []string) ([]string, error)
}

// uploadAPI is the part of the Cloudinary client the uploader needs.
type uploadAPI interface {
	Upload(ctx context.Context, file interface{}, uploadParams uploader.UploadParams) (*uploader.UploadResult, error)
}

// CloudinaryUploader uploads inline data URIs and passes http(s) URLs through.
type CloudinaryUploader struct {
	api    uploadAPI
	folder string
	tags   []string
}

func NewCloudinaryUploader(api uploadAPI, folder string) *CloudinaryUploader {
	return &CloudinaryUploader{api: api, folder: folder, tags: []string{"rondpoint"}}
}

func (u *CloudinaryUploader) ResolveImages(ctx context.Context, images []string) ([]string, error) {
	urls := make([]string, 0, len(images))
	for i, img := range images {
		img = strings.TrimSpace(img)
		if img == "" {
			continue
		}
		if !IsDataURI(img) {
			if strings.HasPrefix(img, "data:") {
				return nil, models.NewFieldError(fmt.Sprintf("images[%d]", i), "only image data URIs can be uploaded")
			}
			urls = append(urls, img)
			continue
		}
		res, err := u.api.Upload(ctx, img, uploader.UploadParams{
			Folder: u.folder,
			Tags:   u.tags,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to upload image %d: %v", i, err)
		}
		if res.Error.Message != "" {
			return nil, fmt.Errorf("failed to upload image %d: %s", i, res.Error.Message)
		}
		urls = append(urls, res.SecureURL)
	}
	return urls, nil
}

// NopUploader leaves images untouched, so data URIs fail URL validation.
type NopUploader struct{}

func (NopUploader) ResolveImages(ctx context.Context, images []string) ([]string, error) {
	return images, nil
}

func IsDataURI(s string) bool {
	return strings.HasPrefix(s, "data:image/")
}

var _ ImageUploader = (*CloudinaryUploader)(nil)
