package export

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rows = slices.Values([][]string{
	{"Name", "Notes"},
	{"Alice", "likes, commas"},
	{"Bob", "plain"},
})

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	n, err := Write(&buf, "CSV", rows)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "Name,Notes\nAlice,\"likes, commas\"\nBob,plain\n", buf.String())

	buf.Reset()
	_, err = Write(&buf, FormatTXT, rows)
	require.NoError(t, err)
	assert.Equal(t, "Name\tNotes\nAlice\tlikes, commas\nBob\tplain\n", buf.String())
}

func TestWrite_Unsupported(t *testing.T) {
	for _, f := range []string{"xls", "pdf", ""} {
		_, err := Write(io.Discard, f, rows)
		assert.ErrorIs(t, err, ErrUnsupportedFormat, f)
	}
}

func TestExport_FileSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	loc, err := Export(context.Background(), rows, "csv", "people", FileSink{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "people.csv"), loc)

	data, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Bob,plain")
}

type fakeS3 struct {
	in   *s3.PutObjectInput
	body string
	err  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.in = in
	data, _ := io.ReadAll(in.Body)
	f.body = string(data)
	return &s3.PutObjectOutput{}, nil
}

func TestExport_S3Sink(t *testing.T) {
	client := &fakeS3{}
	sink := NewS3SinkWithClient(client, "exports", "grids/")

	loc, err := Export(context.Background(), rows, "txt", "people", sink)
	require.NoError(t, err)
	assert.Equal(t, "s3://exports/grids/people.txt", loc)
	assert.Equal(t, "grids/people.txt", aws.ToString(client.in.Key))
	assert.Equal(t, "text/plain; charset=utf-8", aws.ToString(client.in.ContentType))
	assert.Contains(t, client.body, "Bob\tplain")

	client.err = errors.New("denied")
	_, err = Export(context.Background(), rows, "txt", "people", sink)
	assert.ErrorContains(t, err, "denied")
}
