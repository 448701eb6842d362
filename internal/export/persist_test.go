package export

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/receipts-compiler/constants"
	"github.com/joseph-ayodele/receipts-compiler/internal/common"
	"github.com/joseph-ayodele/receipts-compiler/internal/layout"
)

type putCall struct {
	bucket, key, contentType string
	data                     []byte
}

type fakeStore struct {
	puts    []putCall
	putErr  error
	urlErr  error
	urlTTLs []time.Duration
}

func (f *fakeStore) RetrievalURL(_ context.Context, bucket, key string, ttl time.Duration, filename string) (string, error) {
	if f.urlErr != nil {
		return "", f.urlErr
	}
	f.urlTTLs = append(f.urlTTLs, ttl)
	return "https://store.example/" + bucket + "/" + key + "?dl=" + filename, nil
}

func (f *fakeStore) Put(_ context.Context, bucket, key string, data []byte, contentType string) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.puts = append(f.puts, putCall{bucket: bucket, key: key, contentType: contentType, data: data})
	return nil
}

func (f *fakeStore) Ping(context.Context, string) error { return nil }

type fakeEncoder struct{ err error }

func (e fakeEncoder) Encode(*layout.Document) ([]byte, error) {
	if e.err != nil {
		return nil, e.err
	}
	return []byte("%PDF-fake"), nil
}
func (fakeEncoder) ContentType() string { return constants.ContentTypePDF }
func (fakeEncoder) Extension() string   { return "pdf" }

func testDocument() *layout.Document {
	return &layout.Document{
		PageWidth: 210, PageHeight: 297,
		Pages: []layout.Page{{}},
		Groups: []layout.GroupSummary{
			{ExpenseID: "e1", JobNo: "J-1", Status: constants.GroupIncluded, Resolved: 2, Placed: 2},
			{ExpenseID: "e2", JobNo: "J-2", Status: constants.GroupAllFetchesFailed, Resolved: 1},
		},
	}
}

func fixedNow() time.Time { return time.Date(2025, 4, 3, 14, 5, 6, 0, time.UTC) }

func TestPersistWritesDocumentAndManifest(t *testing.T) {
	store := &fakeStore{}
	p := NewPersister(store, fakeEncoder{}, Config{Bucket: "exports", Manifest: true}, nil)
	p.now = fixedNow

	h, err := p.Persist(context.Background(), Input{
		Document: testDocument(), RunID: "0123456789abcdef", SubjectName: "Ada Lovelace", PeriodLabel: "March 2025",
	})
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}

	if len(store.puts) != 2 {
		t.Fatalf("expected document and manifest puts, got %d", len(store.puts))
	}
	doc := store.puts[0]
	wantKey := "compilations/2025/04/20250403T140506Z-01234567-march-2025.pdf"
	if doc.bucket != "exports" || doc.key != wantKey || doc.contentType != constants.ContentTypePDF {
		t.Fatalf("unexpected document put: %s/%s (%s)", doc.bucket, doc.key, doc.contentType)
	}
	if h.ObjectKey != wantKey || h.Filename != "Receipts_Ada_Lovelace_March_2025.pdf" {
		t.Fatalf("unexpected handle: %+v", h)
	}
	if !strings.Contains(h.DownloadURL, wantKey) || !h.ExpiresAt.Equal(fixedNow().Add(time.Hour)) {
		t.Fatalf("unexpected download url/expiry: %s %v", h.DownloadURL, h.ExpiresAt)
	}
	for _, ttl := range store.urlTTLs {
		if ttl != time.Hour {
			t.Fatalf("retrieval urls must live one hour, got %v", ttl)
		}
	}

	man := store.puts[1]
	if !strings.HasSuffix(man.key, ".xlsx") || man.contentType != constants.ContentTypeXLSX {
		t.Fatalf("unexpected manifest put: %s (%s)", man.key, man.contentType)
	}
	if h.ManifestURL == "" {
		t.Fatalf("expected a manifest url")
	}
	wb, err := excelize.OpenReader(bytes.NewReader(man.data))
	if err != nil {
		t.Fatalf("open manifest: %v", err)
	}
	defer func() { _ = wb.Close() }()
	status, _ := wb.GetCellValue(manifestSheet, "C8")
	if status != string(constants.GroupAllFetchesFailed) {
		t.Fatalf("manifest row for e2 has status %q", status)
	}
}

func TestPersistFailures(t *testing.T) {
	cases := []struct {
		name  string
		store *fakeStore
		enc   fakeEncoder
		puts  int
	}{
		{name: "encode", store: &fakeStore{}, enc: fakeEncoder{err: errors.New("bad image")}},
		{name: "put", store: &fakeStore{putErr: errors.New("bucket gone")}},
		{name: "url", store: &fakeStore{urlErr: errors.New("signer down")}, puts: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewPersister(tc.store, tc.enc, Config{Bucket: "exports", Manifest: true}, nil)
			_, err := p.Persist(context.Background(), Input{Document: testDocument(), RunID: "r"})
			if common.KindOf(err) != common.KindPersistFailed {
				t.Fatalf("expected PersistFailed, got %v", err)
			}
			if len(tc.store.puts) != tc.puts {
				t.Fatalf("expected %d puts, got %d", tc.puts, len(tc.store.puts))
			}
		})
	}
}

func TestFilenameAndKey(t *testing.T) {
	cases := []struct {
		subject, period, want string
	}{
		{"", "", "Receipts.pdf"},
		{"Ada Lovelace", "", "Receipts_Ada_Lovelace.pdf"},
		{"", "Q1/2025", "Receipts_Q1_2025.pdf"},
		{"  O'Brien, Zoë ", "Jan–Mar 2025", "Receipts_O_Brien_Zoë_Jan_Mar_2025.pdf"},
	}
	for _, tc := range cases {
		if got := Filename(tc.subject, tc.period, "pdf"); got != tc.want {
			t.Fatalf("Filename(%q, %q) = %q, want %q", tc.subject, tc.period, got, tc.want)
		}
	}

	key := ObjectKeyBase(fixedNow(), "", "../../etc")
	if strings.Contains(key, "..") || !strings.HasSuffix(key, "-etc") {
		t.Fatalf("period label not sanitized: %s", key)
	}
	if a, b := ObjectKeyBase(fixedNow(), "", "x"), ObjectKeyBase(fixedNow(), "", "x"); a == b {
		t.Fatalf("keys for distinct runs collide: %s", a)
	}
}
