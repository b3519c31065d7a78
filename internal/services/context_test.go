package services_test

import (
	"context"
	"testing"

	"reelgate/internal/services"
)

func TestContextHelpersRoundTrip(t *testing.T) {
	ctx := services.WithFileID(context.Background(), 42)
	ctx = services.WithTrack(ctx, "subtitle")
	ctx = services.WithRequestID(ctx, "req-1")

	if id, ok := services.FileIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("FileIDFromContext = %d, %v", id, ok)
	}
	if track, ok := services.TrackFromContext(ctx); !ok || track != "subtitle" {
		t.Fatalf("TrackFromContext = %q, %v", track, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-1" {
		t.Fatalf("RequestIDFromContext = %q, %v", rid, ok)
	}
}

func TestContextHelpersIgnoreEmptyValues(t *testing.T) {
	base := context.Background()
	if services.WithTrack(base, "") != base {
		t.Fatal("empty track should return the parent context")
	}
	if services.WithRequestID(base, "") != base {
		t.Fatal("empty request id should return the parent context")
	}
	if _, ok := services.FileIDFromContext(base); ok {
		t.Fatal("expected no file id on a bare context")
	}
	if _, ok := services.TrackFromContext(base); ok {
		t.Fatal("expected no track on a bare context")
	}
}
