package s3

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fs = afero.Afero{Fs: afero.NewMemMapFs()}

func tempFile(t *testing.T) afero.File {
	file, err := fs.TempFile("", "")
	if err != nil {
		t.Fatal(err)
	}
	t.Logf("Created temporary file: %s", file.Name())
	return file
}

type mockS3Client struct {
	s3iface.S3API
	f afero.File
}

func (c *mockS3Client) GetObjectWithContext(ctx aws.Context, input *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error) {
	return &s3.GetObjectOutput{
		Body:         c.f,
		ContentRange: aws.String("1"),
	}, nil
}

func TestObjectStorageImpl_Download(t *testing.T) {
	const want = "<article/>"

	// Input file S3 mock is to read from
	fi := tempFile(t)
	defer fi.Close()
	fmt.Fprint(fi, want)
	fi.Seek(0, 0)

	// Output file we want to validate
	fo := tempFile(t)
	defer fo.Close()

	client := NewWithClient(&mockS3Client{f: fi})

	_, err := client.Download(context.TODO(), fo, "[invalid-url]:12345")
	assert.Error(t, err)

	_, err = client.Download(context.TODO(), fo, "s3://pmc-oa-opendata/oa_comm/xml/all/PMC1.xml")
	require.NoError(t, err)

	fo.Seek(0, 0)
	data, err := io.ReadAll(fo)
	require.NoError(t, err)
	assert.Equal(t, want, string(data))
}

func TestGet(t *testing.T) {
	fi := tempFile(t)
	defer fi.Close()
	fmt.Fprint(fi, "payload")
	fi.Seek(0, 0)

	blob, err := Get(context.TODO(), NewWithClient(&mockS3Client{f: fi}), "s3://bucket/key")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(blob))
}

func TestObjectStorageImpl_Upload(t *testing.T) {
	puts := map[string]string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		blob, _ := io.ReadAll(r.Body)
		puts[r.URL.Path] = string(blob)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sess, err := NewSession(SessionConfig{Region: "us-east-1", Endpoint: srv.URL, Anonymous: true, ForcePathStyle: true})
	require.NoError(t, err)
	client := New(sess)

	err = client.Upload(context.TODO(), strings.NewReader("{}\n"), "s3://exports/gold/pmc_gold.jsonl")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"/exports/gold/pmc_gold.jsonl": "{}\n"}, puts)

	assert.Error(t, client.Upload(context.TODO(), strings.NewReader(""), "file:///tmp/x"))
}

func TestURI(t *testing.T) {
	assert.Equal(t, "s3://bucket/a/b.xml", URI("bucket", "/a/b.xml"))
	assert.Equal(t, "s3://bucket/a/b.xml", URI("bucket", "a/b.xml"))
}

func Test_getBucketAndKey(t *testing.T) {
	testCases := []struct {
		url     string
		bucket  string
		key     string
		wantErr bool
	}{
		{"s3://pmc-oa-opendata/oa_comm/xml/all/PMC1.xml", "pmc-oa-opendata", "oa_comm/xml/all/PMC1.xml", false},
		{"s3://a-different-bucket/oa_file_list.csv", "a-different-bucket", "oa_file_list.csv", false},
		{"[invalid-url]:12345", "", "", true},
		{"https://example.org/key", "", "", true},
		{"s3:///key", "", "", true},
	}
	for _, tc := range testCases {
		bucket, key, err := getBucketAndKey(tc.url)
		if tc.wantErr {
			assert.Error(t, err, tc.url)
			assert.Empty(t, bucket)
			assert.Empty(t, key)
			continue
		}
		assert.NoError(t, err, tc.url)
		assert.Equal(t, tc.bucket, bucket)
		assert.Equal(t, tc.key, key)
	}
}
