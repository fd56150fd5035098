package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeStockExceeded, status: http.StatusConflict, publicMsg: "requested quantity exceeds available stock", detailsOK: true},
		{code: CodeInvalidTransition, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodeLocked, status: http.StatusLocked, publicMsg: "order is locked for edits", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected", retryable: true},
		{code: CodeIdempotency, status: http.StatusConflict, publicMsg: "idempotency key reused", detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing productId")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing productId" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "items"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeDependency, cause, "store unavailable")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeDependency {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
	if !wrapped.Retryable() {
		t.Fatalf("dependency errors should be retryable")
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "no entry")
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestIsCodeFollowsWrapping(t *testing.T) {
	locked := New(CodeLocked, "order locked")
	err := fmt.Errorf("update status: %w", locked)
	if !IsCode(err, CodeLocked) {
		t.Fatalf("expected wrapped locked error to match")
	}
	if IsCode(err, CodeConflict) {
		t.Fatalf("unexpected match on conflict code")
	}
}

func TestDumpCollectsChain(t *testing.T) {
	root := stdErrors.New("driver: bad connection")
	err := fmt.Errorf("load order: %w", Wrap(CodeDependency, root, "store unavailable"))

	d := Dump(err)
	if d.Code != CodeDependency {
		t.Fatalf("expected dependency code, got %s", d.Code)
	}
	if len(d.Chain) != 3 {
		t.Fatalf("expected 3 chain entries, got %d: %v", len(d.Chain), d.Chain)
	}
	if d.PGCode != "" {
		t.Fatalf("unexpected pg code %q", d.PGCode)
	}
}

func TestStoreFailureClassification(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "order_sellers_pkey"})
	if got := StoreFailureCode(unique); got != CodeInternal {
		t.Fatalf("integrity violation should be internal, got %s", got)
	}
	if IsTransientStoreError(unique) {
		t.Fatalf("integrity violation is not transient")
	}

	serialization := &pq.Error{Code: "40001", Message: "could not serialize access"}
	if got := StoreFailureCode(serialization); got != CodeDependency {
		t.Fatalf("serialization failure should be a dependency error, got %s", got)
	}
	if !IsTransientStoreError(serialization) {
		t.Fatalf("serialization failure should be transient")
	}

	plain := stdErrors.New("sql: database is closed")
	if StoreFailureCode(plain) != CodeDependency || IsTransientStoreError(plain) {
		t.Fatalf("non-postgres errors are non-transient dependency failures")
	}
}

func TestDumpLogFieldsIncludePostgresDetail(t *testing.T) {
	err := Wrap(CodeInternal, &pgconn.PgError{Code: "23503", TableName: "order_sellers", Detail: "missing order"}, "record sellers")
	fields := Dump(err).LogFields()
	if fields["pg_code"] != "23503" || fields["pg_table"] != "order_sellers" {
		t.Fatalf("unexpected pg fields: %v", fields)
	}
	if fields["error_code"] != CodeInternal {
		t.Fatalf("unexpected code field: %v", fields["error_code"])
	}

	plain := Dump(stdErrors.New("boom")).LogFields()
	if _, ok := plain["pg_code"]; ok {
		t.Fatalf("pg fields must be omitted without a postgres cause")
	}
}
