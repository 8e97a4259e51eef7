package apperr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorMessageKeepsRemoteBody(t *testing.T) {
	body := `{"error":"invalid_client","error_description":"AADSTS7000215: Invalid client secret provided."}`
	err := HTTP(KindAuthentication, "token request rejected", 401, body).WithStage("authenticating")

	msg := err.Error()
	if !strings.Contains(msg, body) {
		t.Errorf("message must carry the body verbatim, got %q", msg)
	}
	if !strings.HasPrefix(msg, "authenticating: ") {
		t.Errorf("message should start with the stage, got %q", msg)
	}
	if !strings.Contains(msg, "HTTP 401") {
		t.Errorf("message should include the status, got %q", msg)
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	base := New(KindStorageWrite, "batch 2 failed", errors.New("boom")).WithCode(CodeConflictTargetMissing)
	wrapped := fmt.Errorf("sync run: %w", base)

	if KindOf(wrapped) != KindStorageWrite {
		t.Errorf("KindOf = %q, want %q", KindOf(wrapped), KindStorageWrite)
	}
	if CodeOf(wrapped) != CodeConflictTargetMissing {
		t.Errorf("CodeOf = %q, want %q", CodeOf(wrapped), CodeConflictTargetMissing)
	}
	if !Is(wrapped, KindStorageWrite) {
		t.Error("Is should match through fmt wrapping")
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("unclassified errors have no kind")
	}
}

func TestWithStageDoesNotMutate(t *testing.T) {
	base := New(KindQuery, "query failed", nil)
	_ = base.WithStage("querying")
	if base.Stage != "" {
		t.Errorf("original error mutated: stage=%q", base.Stage)
	}
}
