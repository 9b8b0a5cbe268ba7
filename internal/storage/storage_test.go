package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	now := time.UnixMilli(1712345678901)
	assert.Equal(t, "u1/p1/1712345678901_mi_parcela__1_.kml", Key("u1", "p1", "mi parcela (1).kml", now))
	assert.Equal(t, "_and_.zip", SanitizeFilename("Ñandú.zip"))
	assert.Equal(t, "a-b_c.1.geojson", SanitizeFilename("a-b_c.1.geojson"))
}

func TestLocalPut(t *testing.T) {
	dir := t.TempDir()
	l := NewLocal(dir)
	key := Key("u1", "p1", "parcela.kml", time.UnixMilli(1))

	require.NoError(t, l.Put(context.Background(), key, []byte("<kml/>"), "application/vnd.google-earth.kml+xml"))
	got, err := os.ReadFile(filepath.Join(dir, "u1", "p1", "1_parcela.kml"))
	require.NoError(t, err)
	assert.Equal(t, "<kml/>", string(got))

	assert.Error(t, l.Put(context.Background(), "../escape", nil, ""))
}

type fakePutter struct {
	in  *s3.PutObjectInput
	err error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	return &s3.PutObjectOutput{}, f.err
}

func TestS3Put(t *testing.T) {
	fp := &fakePutter{}
	s := &S3{client: fp, bucket: "uploads"}

	require.NoError(t, s.Put(context.Background(), "u1/p1/1_a.zip", []byte("PK"), "application/zip"))
	assert.Equal(t, "uploads", aws.ToString(fp.in.Bucket))
	assert.Equal(t, "u1/p1/1_a.zip", aws.ToString(fp.in.Key))
	assert.Equal(t, "application/zip", aws.ToString(fp.in.ContentType))
	body, err := io.ReadAll(fp.in.Body)
	require.NoError(t, err)
	assert.Equal(t, "PK", string(body))

	fp.err = errors.New("AccessDenied")
	err = s.Put(context.Background(), "k", nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3://uploads/k")
}
