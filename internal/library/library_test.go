package library

import (
	"context"
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/soyeahso/storyforge/internal/domain"
	"github.com/soyeahso/storyforge/internal/logging"
	"github.com/soyeahso/storyforge/internal/parser"
	"github.com/soyeahso/storyforge/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testService(t *testing.T) *Service {
	t.Helper()
	log := logging.New(nil, "silent")
	db, err := store.Open(context.Background(), store.Options{Driver: store.DriverSQLite, DSN: ":memory:"}, log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewService(store.NewResourceStore(db), log)
}

func TestUpload_RoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := testService(t)

	data := []byte("# Cart\n\nUsers add items to the cart and check out.")
	res, err := svc.Upload(ctx, UploadRequest{
		Title:       "Cart PRD",
		Description: "checkout",
		FileName:    "cart.md",
		MIMEType:    "text/markdown",
		Data:        data,
	})
	require.NoError(t, err)
	assert.Equal(t, "Cart", res.Metadata["title"])

	got, err := svc.Get(ctx, res.Resource.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cart PRD", got.Title)
	assert.Equal(t, domain.ResourceTypeMarkdown, got.Type)
	assert.Equal(t, "cart.md", got.FileName)
	assert.Equal(t, int64(len(data)), got.FileSize)
	assert.Equal(t, string(data), got.ParsedContent)

	raw, err := base64.StdEncoding.DecodeString(got.OriginalContent)
	require.NoError(t, err)
	assert.Equal(t, data, raw)
}

func TestUpload_BlankTitleRejected(t *testing.T) {
	ctx := context.Background()
	svc := testService(t)

	for _, title := range []string{"", "   "} {
		_, err := svc.Upload(ctx, UploadRequest{
			Title:    title,
			FileName: "onboarding.txt",
			Data:     []byte("Welcome aboard, new hire."),
		})
		require.ErrorIs(t, err, domain.ErrMissingField)
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "title", verr.Field)
	}

	n, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUpload_UnknownExtensionStoredAsText(t *testing.T) {
	ctx := context.Background()
	svc := testService(t)

	res, err := svc.Upload(ctx, UploadRequest{
		Title:    "Notes",
		FileName: "notes",
		MIMEType: "application/pdf",
		Data:     []byte("Plain notes sent with a pdf content type."),
	})
	require.NoError(t, err)

	got, err := svc.Get(ctx, res.Resource.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ResourceTypeText, got.Type)
	assert.Equal(t, "Plain notes sent with a pdf content type.", got.ParsedContent)
}

func TestUpload_RejectionsPersistNothing(t *testing.T) {
	ctx := context.Background()
	svc := testService(t)

	tests := []struct {
		name string
		req  UploadRequest
		want error
	}{
		{"unsupported", UploadRequest{Title: "Setup", FileName: "setup.exe", MIMEType: "application/x-msdownload", Data: []byte("MZ.......... binary")}, parser.ErrUnsupportedType},
		{"too short", UploadRequest{Title: "Tiny", FileName: "tiny.txt", Data: []byte("  short  ")}, parser.ErrEmptyExtraction},
		{"no file", UploadRequest{Title: "Nothing", FileName: "", Data: []byte("plenty of content")}, domain.ErrMissingField},
		{"corrupt pdf", UploadRequest{Title: "Broken", FileName: "broken.pdf", Data: []byte("%PDF-1.4 not really a pdf")}, parser.ErrMalformed},
		{"empty data", UploadRequest{Title: "Empty", FileName: "x.txt"}, domain.ErrMissingField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	n, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSearchAndDelete(t *testing.T) {
	ctx := context.Background()
	svc := testService(t)

	a, err := svc.Upload(ctx, UploadRequest{Title: "Education", FileName: "edu.txt", Data: []byte("Students watch lectures.")})
	require.NoError(t, err)
	_, err = svc.Upload(ctx, UploadRequest{Title: "Retail", FileName: "shop.txt", Data: []byte("Shoppers browse products.")})
	require.NoError(t, err)

	found, err := svc.Search(ctx, "LECTURES")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, a.Resource.ID, found[0].ID)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, svc.Delete(ctx, a.Resource.ID))
	assert.ErrorIs(t, svc.Delete(ctx, a.Resource.ID), domain.ErrNotFound)
}

func TestFailureReason(t *testing.T) {
	assert.Equal(t, "unsupported_type", failureReason(parser.ErrUnsupportedType))
	assert.Equal(t, "empty_extraction", failureReason(parser.ErrEmptyExtraction))
	assert.Equal(t, "malformed", failureReason(fmt.Errorf("%w: bad xref", parser.ErrMalformed)))
	assert.Equal(t, "internal", failureReason(assert.AnError))
}
