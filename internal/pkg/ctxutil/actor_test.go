package ctxutil

import (
	"context"
	"fmt"
	"testing"
)

func TestActorRoundTrip(t *testing.T) {
	if got := ActorID(context.Background()); got != "" {
		t.Fatalf("anonymous actor: want=\"\" got=%q", got)
	}
	ctx := WithActor(context.Background(), &RequestActor{ActorID: " user-1 "})
	if got := ActorID(ctx); got != "user-1" {
		t.Fatalf("actor id: want=user-1 got=%q", got)
	}
}

func TestLogFields(t *testing.T) {
	if kv := LogFields(context.Background()); len(kv) != 0 {
		t.Fatalf("bare context: want no fields got=%v", kv)
	}
	ctx := WithRequestMeta(context.Background(), RequestMeta{TraceID: "t", RequestID: "r"})
	ctx = WithActor(ctx, &RequestActor{ActorID: "u"})
	got := fmt.Sprint(LogFields(ctx))
	if want := "[request_id r trace_id t]"; got != want {
		t.Fatalf("fields: want=%s got=%s", want, got)
	}
}
