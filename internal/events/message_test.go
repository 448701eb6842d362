package events

import (
	"context"
	"testing"
	"time"
)

func TestExportCompletedJSON(t *testing.T) {
	in := ExportCompleted{
		RunID: "run-1", UserID: "admin", SubjectID: "u1", ObjectKey: "compilations/x.pdf",
		Images: 9, SkippedExpenses: 1, CompletedAt: time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC),
	}
	body, err := in.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	out, err := ExportCompletedFromJSON(body)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if *out != in {
		t.Fatalf("round trip mismatch: %+v vs %+v", out, in)
	}
	if _, err := ExportCompletedFromJSON([]byte("{")); err == nil {
		t.Fatalf("expected error for truncated payload")
	}
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = Noop{}
	if err := p.PublishExportCompleted(context.Background(), ExportCompleted{}); err != nil {
		t.Fatalf("noop publish: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("noop close: %v", err)
	}
}
