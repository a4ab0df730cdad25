package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// fakeS3 answers the subset of the S3 REST API the store uses, path style.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]fakeObject
	pageLen int
}

type fakeObject struct {
	body        []byte
	contentType string
}

func respond(status int, body string, header http.Header) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body)), Header: header}
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}
	if req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2" {
		return f.list(req), nil
	}
	obj, exists := f.objects[key]
	switch req.Method {
	case http.MethodHead:
		if !exists {
			return respond(http.StatusNotFound, "", nil), nil
		}
		return respond(http.StatusOK, "", f.headers(obj)), nil
	case http.MethodGet:
		if !exists {
			return respond(http.StatusNotFound, "<Error><Code>NoSuchKey</Code><Message>missing</Message></Error>",
				http.Header{"Content-Type": {"application/xml"}}), nil
		}
		return respond(http.StatusOK, string(obj.body), f.headers(obj)), nil
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		if decoded, ok := decodeChunked(body); ok {
			body = decoded
		}
		f.objects[key] = fakeObject{body: body, contentType: req.Header.Get("Content-Type")}
		return respond(http.StatusOK, "", http.Header{"ETag": {`"etag"`}}), nil
	case http.MethodDelete:
		delete(f.objects, key)
		return respond(http.StatusNoContent, "", nil), nil
	}
	return respond(http.StatusNotImplemented, "", nil), nil
}

func (f *fakeS3) headers(obj fakeObject) http.Header {
	return http.Header{
		"Content-Length": {strconv.Itoa(len(obj.body))},
		"Content-Type":   {obj.contentType},
		"ETag":           {`"etag"`},
		"Last-Modified":  {time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Format(http.TimeFormat)},
	}
}

// list pages through the keys pageLen at a time; the continuation token is
// the index of the next key.
func (f *fakeS3) list(req *http.Request) *http.Response {
	q := req.URL.Query()
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, q.Get("prefix")) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	start, _ := strconv.Atoi(q.Get("continuation-token"))
	end := len(keys)
	if f.pageLen > 0 && start+f.pageLen < end {
		end = start + f.pageLen
	}
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><ListBucketResult>`)
	if end < len(keys) {
		fmt.Fprintf(&b, "<IsTruncated>true</IsTruncated><NextContinuationToken>%d</NextContinuationToken>", end)
	} else {
		b.WriteString("<IsTruncated>false</IsTruncated>")
	}
	for _, k := range keys[start:end] {
		fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>2024-01-01T00:00:00Z</LastModified></Contents>", k, len(f.objects[k].body))
	}
	b.WriteString("</ListBucketResult>")
	return respond(http.StatusOK, b.String(), http.Header{"Content-Type": {"application/xml"}})
}

// decodeChunked unwraps a single-chunk aws-chunked upload body.
func decodeChunked(b []byte) ([]byte, bool) {
	parts := strings.Split(string(b), "\r\n")
	if len(parts) < 3 {
		return nil, false
	}
	size, err := strconv.ParseInt(strings.SplitN(parts[0], ";", 2)[0], 16, 64)
	if err != nil || size <= 0 || int64(len(parts[1])) != size {
		return nil, false
	}
	return []byte(parts[1]), true
}

func newFakeS3Store(t *testing.T, pageLen int) (*S3, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: make(map[string]fakeObject), pageLen: pageLen}
	store, err := NewS3(context.Background(), S3Config{
		Bucket:          "enzymeml",
		Endpoint:        "https://s3.test.local",
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		PathStyle:       true,
	}, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: fake}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.RetryMaxAttempts = 1
	})
	if err != nil {
		t.Fatalf("NewS3: %v", err)
	}
	return store, fake
}

func TestS3_BasicFlow(t *testing.T) {
	ctx := context.Background()
	store, _ := newFakeS3Store(t, 0)
	info, err := store.Put(ctx, "archives/run1.omex", bytes.NewReader([]byte("hello")), PutOptions{ContentType: ArchiveContentType})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "archives/run1.omex" || info.ContentType != ArchiveContentType || info.Size != 5 || info.ETag != "etag" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := store.Put(ctx, "archives/run1.omex", bytes.NewReader([]byte("again")), PutOptions{}); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	_, rc, err := store.Get(ctx, "archives/run1.omex")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	raw, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(raw) != "hello" {
		t.Fatalf("get mismatch: %q", raw)
	}
	if url, err := store.PresignURL(ctx, "archives/run1.omex", SignedURLOptions{}); err != nil || !strings.Contains(url, "archives/run1.omex") {
		t.Fatalf("presign: %v %s", err, url)
	}
	if ok, err := store.Delete(ctx, "archives/run1.omex"); err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, err := store.Delete(ctx, "archives/run1.omex"); err != nil || ok {
		t.Fatalf("second delete: %v %v", ok, err)
	}
	if _, _, err := store.Get(ctx, "archives/run1.omex"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound from get, got %v", err)
	}
}

func TestS3_ListFollowsContinuation(t *testing.T) {
	ctx := context.Background()
	store, fake := newFakeS3Store(t, 2)
	for _, k := range []string{"runs/c.omex", "runs/a.omex", "runs/b.omex", "other/z.omex"} {
		fake.objects[k] = fakeObject{body: []byte(k)}
	}
	list, err := store.List(ctx, "runs/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var keys []string
	for _, info := range list {
		keys = append(keys, info.Key)
	}
	if strings.Join(keys, ",") != "runs/a.omex,runs/b.omex,runs/c.omex" {
		t.Fatalf("unexpected keys %v", keys)
	}
}

func TestS3_PresignRejectsPut(t *testing.T) {
	store, _ := newFakeS3Store(t, 0)
	if _, err := store.PresignURL(context.Background(), "k", SignedURLOptions{Method: "put"}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}
