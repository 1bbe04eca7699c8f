package storage

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	input *s3.PutObjectInput
	body  string
	err   error
}

func (f *fakeUploader) Upload(_ context.Context, input *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	f.input = input
	b, _ := io.ReadAll(input.Body)
	f.body = string(b)
	if f.err != nil {
		return nil, f.err
	}
	return &manager.UploadOutput{Location: "https://media.s3.amazonaws.com/" + aws.ToString(input.Key)}, nil
}

type fakeDeleter struct {
	keys []string
}

func (f *fakeDeleter) DeleteObject(_ context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.keys = append(f.keys, aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3HostUpload(t *testing.T) {
	up := &fakeUploader{}
	host := &S3Host{uploader: up, deleter: &fakeDeleter{}, opts: S3Options{Bucket: "media", KeyPrefix: "/uploads/"}}

	res, err := host.Upload(context.Background(), strings.NewReader("jpeg-bytes"), UploadOptions{
		FileName:    "../holiday/Photo.JPG",
		ContentType: "image/jpeg",
		UniqueName:  true,
		Tags:        []string{"backend_upload"},
	})
	require.NoError(t, err)
	require.Equal(t, 200, res.StatusCode)
	require.True(t, strings.HasPrefix(res.Name, "uploads/"))
	require.True(t, strings.HasSuffix(res.Name, ".jpg"))
	require.NotContains(t, res.Name, "Photo")
	require.Equal(t, "https://media.s3.amazonaws.com/"+res.Name, res.URL)

	require.Equal(t, "media", aws.ToString(up.input.Bucket))
	require.Equal(t, "image/jpeg", aws.ToString(up.input.ContentType))
	tags, err := url.ParseQuery(aws.ToString(up.input.Tagging))
	require.NoError(t, err)
	require.Equal(t, "true", tags.Get("backend_upload"))
	require.Equal(t, "jpeg-bytes", up.body)
}

func TestS3HostPublicBaseURLAndPlainName(t *testing.T) {
	host := &S3Host{uploader: &fakeUploader{}, deleter: &fakeDeleter{}, opts: S3Options{Bucket: "media", PublicBaseURL: "https://cdn.example.com/"}}

	res, err := host.Upload(context.Background(), strings.NewReader("x"), UploadOptions{FileName: "clip.mp4"})
	require.NoError(t, err)
	require.Equal(t, "clip.mp4", res.Name)
	require.Equal(t, "https://cdn.example.com/clip.mp4", res.URL)
}

func TestS3HostUploadError(t *testing.T) {
	host := &S3Host{uploader: &fakeUploader{err: errors.New("boom")}, opts: S3Options{Bucket: "media"}}

	_, err := host.Upload(context.Background(), strings.NewReader("x"), UploadOptions{FileName: "a.png"})
	require.ErrorContains(t, err, "boom")
}

func TestS3HostDiscard(t *testing.T) {
	del := &fakeDeleter{}
	host := &S3Host{uploader: &fakeUploader{}, deleter: del, opts: S3Options{Bucket: "media"}}

	require.NoError(t, host.Discard(context.Background(), UploadResult{Name: "uploads/x.png"}))
	require.Equal(t, []string{"uploads/x.png"}, del.keys)
	require.Error(t, host.Discard(context.Background(), UploadResult{}))
}
