package helpers

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/joshua-takyi/rondpoint/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockUploadAPI struct {
	mock.Mock
}

func (m *mockUploadAPI) Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error) {
	args := m.Called(ctx, file, params)
	if res := args.Get(0); res != nil {
		return res.(*uploader.UploadResult), args.Error(1)
	}
	return nil, args.Error(1)
}

const pixel = "data:image/png;base64,iVBORw0KGgo="

func TestCloudinaryUploaderUploadsDataURIs(t *testing.T) {
	api := new(mockUploadAPI)
	api.On("Upload", mock.Anything, pixel, mock.MatchedBy(func(p uploader.UploadParams) bool {
		return p.Folder == EventsFolder
	})).Return(&uploader.UploadResult{SecureURL: "https://res.cloudinary.com/demo/events/a.png"}, nil).Once()

	u := NewCloudinaryUploader(api, EventsFolder)
	urls, err := u.ResolveImages(context.Background(), []string{"https://example.com/b.jpg", " ", pixel})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/b.jpg", "https://res.cloudinary.com/demo/events/a.png"}, urls)
	api.AssertExpectations(t)
}

func TestCloudinaryUploaderErrors(t *testing.T) {
	api := new(mockUploadAPI)
	api.On("Upload", mock.Anything, pixel, mock.Anything).Return(nil, errors.New("timeout"))
	u := NewCloudinaryUploader(api, EventsFolder)

	_, err := u.ResolveImages(context.Background(), []string{pixel})
	assert.Error(t, err)

	_, err = u.ResolveImages(context.Background(), []string{"data:text/plain;base64,aGk="})
	var fe *models.FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "images[0]", fe.Field)
}

func TestNopUploaderPassesThrough(t *testing.T) {
	in := []string{pixel}
	out, err := NopUploader{}.ResolveImages(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
