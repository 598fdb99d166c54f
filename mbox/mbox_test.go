package mbox

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dhcgn/msg-partition/element"
	"github.com/dhcgn/msg-partition/filter"
	"github.com/dhcgn/msg-partition/model"
	"github.com/dhcgn/msg-partition/partition"
)

const firstMessage = "From: Alice Example <alice@example.com>\n" +
	"To: Bob Example <bob@example.com>\n" +
	"Subject: =?utf-8?q?Quarterly_r=C3=A9sum=C3=A9?=\n" +
	"Date: Mon, 02 Jan 2006 15:04:05 -0700\n" +
	"Message-Id: <one@example.com>\n" +
	"\n" +
	"Hello Bob, the numbers are in.\n" +
	"\n" +
	"Next steps:\n" +
	"\n" +
	"- Review the sheet\n" +
	"- Send feedback\n"

const secondMessage = "From: Bob Example <bob@example.com>\n" +
	"To: Alice Example <alice@example.com>\n" +
	"Subject: Second\n" +
	"Date: Tue, 03 Jan 2006 09:00:00 +0000\n" +
	"Content-Type: text/html; charset=utf-8\n" +
	"\n" +
	"<p>Thanks Alice, looks good to me.</p>\n"

const brokenMessage = "this line is not a header\n" +
	"\n" +
	"body\n"

var testArchive = "From alice@example.com Mon Jan  2 15:04:05 2006\n" + firstMessage + "\n" +
	"From bob@example.com Tue Jan  3 09:00:00 2006\n" + secondMessage + "\n" +
	"From nobody@example.com Wed Jan  4 09:00:00 2006\n" + brokenMessage

func streamAll(t *testing.T, r Reader) (msgs []model.Message, errs []error) {
	t.Helper()
	out := make(chan model.Envelope, 10)
	done := make(chan error, 1)
	go func() {
		done <- r.Stream(context.Background(), out)
		close(out)
	}()
	for env := range out {
		if env.Err != nil {
			errs = append(errs, env.Err)
			continue
		}
		msgs = append(msgs, env.Message)
	}
	if err := <-done; err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	return msgs, errs
}

func TestStream(t *testing.T) {
	msgs, errs := streamAll(t, NewReader(strings.NewReader(testArchive), nil, zaptest.NewLogger(t)))

	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1", len(errs))
	}
	if msgs[0].ID != "one@example.com" || msgs[0].Index != 0 {
		t.Errorf("first message id = %q, index = %d", msgs[0].ID, msgs[0].Index)
	}
	if msgs[1].ID != msgs[1].Hash || msgs[1].Index != 1 {
		t.Errorf("second message id = %q, want its hash %q", msgs[1].ID, msgs[1].Hash)
	}
	if msgs[0].ReceivedAt.IsZero() || msgs[0].Size != int64(len(msgs[0].Raw)) {
		t.Errorf("first message = %+v", msgs[0])
	}
}

func TestStreamWithFilters(t *testing.T) {
	tests := []struct {
		name          string
		opts          filter.Options
		expectedCount int
	}{
		{
			name:          "no filters",
			expectedCount: 2,
		},
		{
			name:          "include header filter",
			opts:          filter.Options{IncludeHeader: []string{"Subject: Second"}},
			expectedCount: 1,
		},
		{
			name:          "exclude header filter",
			opts:          filter.Options{ExcludeHeader: []string{"Subject:.*nonexistent"}},
			expectedCount: 2,
		},
		{
			name:          "exclude sender",
			opts:          filter.Options{ExcludeHeader: []string{"From: Bob"}},
			expectedCount: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := filter.New(tt.opts)
			if err != nil {
				t.Fatalf("filter.New() error = %v", err)
			}
			msgs, _ := streamAll(t, NewReader(strings.NewReader(testArchive), f, nil))
			if len(msgs) != tt.expectedCount {
				t.Errorf("Expected %d messages, got %d", tt.expectedCount, len(msgs))
			}
		})
	}
}

func TestStreamCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := make(chan model.Envelope)
	err := NewReader(strings.NewReader(testArchive), nil, nil).Stream(ctx, out)
	if err != context.Canceled {
		t.Errorf("Stream() error = %v, want context.Canceled", err)
	}
}

func TestEMLPartitioner(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quarterly.eml")
	if err := os.WriteFile(path, []byte(firstMessage), 0o644); err != nil {
		t.Fatal(err)
	}

	opts := partition.DefaultOptions()
	opts.Logger = zaptest.NewLogger(t)
	els, err := EMLPartitioner{}.Partition(partition.Source{Path: path}, opts)
	if err != nil {
		t.Fatalf("Partition() error = %v", err)
	}

	want := []element.Element{
		element.New(element.KindNarrativeText, "Hello Bob, the numbers are in."),
		element.New(element.KindTitle, "Next steps:"),
		element.New(element.KindListItem, "Review the sheet"),
		element.New(element.KindListItem, "Send feedback"),
	}
	if !element.EqualAll(els, want) {
		t.Fatalf("Partition() = %v, want %v", els, want)
	}

	md := els[0].Metadata
	if md.Filename != "quarterly.eml" || md.FileDirectory != filepath.Dir(path) {
		t.Errorf("filename = %q, dir = %q", md.Filename, md.FileDirectory)
	}
	if md.Filetype != EMLFiletype || md.Subject != "Quarterly résumé" {
		t.Errorf("filetype = %q, subject = %q", md.Filetype, md.Subject)
	}
	if md.LastModified != "2006-01-02T15:04:05-07:00" {
		t.Errorf("last_modified = %q", md.LastModified)
	}
	if !slices.Equal(md.SentFrom, []string{"Alice Example <alice@example.com>"}) ||
		!slices.Equal(md.SentTo, []string{"Bob Example <bob@example.com>"}) {
		t.Errorf("sent_from = %q, sent_to = %q", md.SentFrom, md.SentTo)
	}
	if md.ParentID == "" {
		t.Error("parent_id not set")
	}
}

func TestEMLPartitionerErrors(t *testing.T) {
	_, err := EMLPartitioner{}.Partition(partition.Source{}, partition.DefaultOptions())
	if err == nil {
		t.Error("Partition() without source succeeded")
	}
	_, err = EMLPartitioner{}.Partition(partition.Source{Path: filepath.Join(t.TempDir(), "missing.eml")}, partition.DefaultOptions())
	if err == nil {
		t.Error("Partition() of a missing file succeeded")
	}
}

func TestArchivePartitioner(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	opts := partition.DefaultOptions()
	opts.Logger = zap.New(core)

	els, err := ArchivePartitioner{}.Partition(partition.Source{Reader: strings.NewReader(testArchive)}, opts)
	if err != nil {
		t.Fatalf("Partition() error = %v", err)
	}
	if len(els) != 5 {
		t.Fatalf("got %d elements, want 5: %v", len(els), els)
	}

	first, last := els[0].Metadata, els[len(els)-1].Metadata
	if first.ParentID == "" || first.ParentID == last.ParentID {
		t.Errorf("parent ids = %q and %q, want one per message", first.ParentID, last.ParentID)
	}
	if els[1].Metadata.ParentID != first.ParentID {
		t.Errorf("elements of one message have different parent ids")
	}
	if last.Filetype != ArchiveFiletype || last.Subject != "Second" {
		t.Errorf("last metadata = %+v", last)
	}
	if got := els[len(els)-1].Text; got != "Thanks Alice, looks good to me." {
		t.Errorf("html message text = %q", got)
	}
	if n := logs.FilterMessage("skipping archive message").Len(); n != 1 {
		t.Errorf("logged %d skip warnings, want 1", n)
	}

	ids := make(map[string]bool)
	for _, e := range els {
		if ids[e.ID] {
			t.Errorf("duplicate element id %s", e.ID)
		}
		ids[e.ID] = true
	}
}

func TestArchivePartitionerFilter(t *testing.T) {
	f, err := filter.New(filter.Options{ExcludeHeader: []string{"Subject: Second"}, IncludeKinds: []string{"ListItem"}})
	if err != nil {
		t.Fatal(err)
	}
	els, err := ArchivePartitioner{Filter: f}.Partition(partition.Source{Reader: strings.NewReader(testArchive)}, partition.DefaultOptions())
	if err != nil {
		t.Fatalf("Partition() error = %v", err)
	}
	if len(els) != 2 {
		t.Fatalf("got %v, want the two list items", els)
	}
	for _, e := range els {
		if e.Kind != element.KindListItem {
			t.Errorf("kind = %s, want ListItem", e.Kind)
		}
	}
}

func BenchmarkArchivePartitioner(b *testing.B) {
	opts := partition.DefaultOptions()
	for i := 0; i < b.N; i++ {
		if _, err := (ArchivePartitioner{}).Partition(partition.Source{Reader: strings.NewReader(testArchive)}, opts); err != nil {
			b.Fatal(err)
		}
	}
}
