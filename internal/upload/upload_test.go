package upload_test

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"video-studio/internal/models"
	"video-studio/internal/upload"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func image(name string) upload.File {
	return upload.FromBytes(name, "image/jpeg", []byte("jpeg"))
}

func images(n int) []upload.File {
	out := make([]upload.File, n)
	for i := range out {
		out[i] = image("img.jpg")
	}
	return out
}

func TestImageSet_RejectsWholeBatchWithNonImage(t *testing.T) {
	var set upload.ImageSet
	added, err := set.Add(image("a.jpg"), upload.FromBytes("notes.txt", "text/plain", []byte("x")))

	assert.Equal(t, 0, added)
	assert.True(t, errors.Is(err, models.ErrValidation))
	assert.Equal(t, 0, set.Len())
	assert.NotEmpty(t, set.Reason())
}

func TestImageSet_AddsOnlyRemainingRoom(t *testing.T) {
	var set upload.ImageSet
	_, err := set.Add(images(8)...)
	require.NoError(t, err)

	added, err := set.Add(images(4)...)
	assert.Equal(t, 2, added)
	assert.Error(t, err)
	assert.Equal(t, upload.MaxImages, set.Len())
	assert.Contains(t, set.Reason(), "only 2 more")
	assert.NoError(t, set.Validate())
}

func TestImageSet_RemoveLastReportsReason(t *testing.T) {
	var set upload.ImageSet
	_, err := set.Add(image("a.jpg"))
	require.NoError(t, err)

	require.NoError(t, set.Remove(0))
	assert.Equal(t, "at least one image is required", set.Reason())
	assert.Error(t, set.Validate())
	assert.Error(t, set.Remove(3))
}

func TestValidateAudio(t *testing.T) {
	assert.NoError(t, upload.ValidateAudio(upload.FromBytes("song.mp3", "audio/mpeg", []byte("ID3"))))
	assert.NoError(t, upload.ValidateAudio(upload.FromBytes("voice.m4a", "application/octet-stream", []byte("x"))))

	err := upload.ValidateAudio(upload.FromBytes("clip.flac", "audio/flac", []byte("x")))
	assert.True(t, errors.Is(err, models.ErrValidation))

	big := upload.File{Name: "long.mp3", ContentType: "audio/mpeg", Size: upload.MaxAudioSize + 1}
	err = upload.ValidateAudio(big)
	assert.ErrorContains(t, err, "50MB")
}

func TestSelection_NoAudioDefaultsTransition(t *testing.T) {
	var sel upload.Selection
	sel.DeclareNoAudio(true)
	require.NotNil(t, sel.Transition())
	assert.Equal(t, upload.DefaultTransitionSeconds, *sel.Transition())

	require.NoError(t, sel.SetTransition(2))
	sel.DeclareNoAudio(true)
	assert.Equal(t, 2, *sel.Transition())

	sel.DeclareNoAudio(false)
	assert.Nil(t, sel.Transition())
}

func TestSelection_AudioClearsDeclaration(t *testing.T) {
	var sel upload.Selection
	sel.DeclareNoAudio(true)

	require.NoError(t, sel.SelectAudio(upload.FromBytes("song.mp3", "audio/mpeg", []byte("ID3"))))
	assert.False(t, sel.NoAudio())
	assert.Nil(t, sel.Transition())
	assert.NotNil(t, sel.Audio())
}

func TestSelection_Validate(t *testing.T) {
	var sel upload.Selection
	_, err := sel.Images.Add(image("a.jpg"))
	require.NoError(t, err)

	err = sel.Validate()
	assert.ErrorContains(t, err, "no audio")

	sel.DeclareNoAudio(true)
	assert.NoError(t, sel.Validate())

	require.NoError(t, sel.SelectAudio(upload.FromBytes("song.mp3", "audio/mpeg", []byte("ID3"))))
	sel.DeclareNoAudio(true)
	assert.ErrorContains(t, sel.Validate(), "cannot be combined")

	sel.RemoveAudio()
	assert.NoError(t, sel.Validate())
}

func TestFromPath_SniffsContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.bin")
	require.NoError(t, os.WriteFile(path, pngHeader, 0o644))

	f, err := upload.FromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "photo.bin", f.Name)
	assert.Equal(t, "image/png", f.ContentType)
	assert.True(t, upload.IsImage(f))

	data, err := f.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)
}

func TestFromMultipart_SniffsGenericType(t *testing.T) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("images", "upload")
	require.NoError(t, err)
	_, err = part.Write(pngHeader)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))

	f, err := upload.FromMultipart(req.MultipartForm.File["images"][0])
	require.NoError(t, err)
	assert.Equal(t, "image/png", f.ContentType)
}
