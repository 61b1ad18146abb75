// internal/form/actions_test.go
//
// Unit-tests for post-submit actions and server intake using sqlmock and
// httptest.
//
// Run: go test ./internal/form -run 'Actions|Intake' -v

package form

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

func TestActions_Store(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	at := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta(
		`INSERT INTO labour_job (form_id, submission_id, submitted_at, data) VALUES (?, ?, ?, ?)`,
	)).
		WithArgs("labour-job", "sub-1", at, []byte(`{"village":"Rampur"}`)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	a := NewActions(sqlx.NewDb(db, "mysql"), nil, zap.NewNop().Sugar())
	a.now = func() time.Time { return at }

	def := &Definition{ID: "labour-job", Actions: []ActionDef{{Type: "store", Params: map[string]any{"table": "labour_job"}}}}
	if err := a.Execute(context.Background(), def, "sub-1", map[string]any{"village": "Rampur"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestActions_StoreRejectsTableName(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer db.Close()
	a := NewActions(sqlx.NewDb(db, "mysql"), nil, zap.NewNop().Sugar())
	def := &Definition{ID: "x", Actions: []ActionDef{{Type: "store", Params: map[string]any{"table": "x; DROP TABLE app_user"}}}}
	if err := a.Execute(context.Background(), def, "id", nil); err == nil {
		t.Fatalf("expected error for unsafe table name")
	}
}

func TestActions_Webhook(t *testing.T) {
	var gotHeader, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Token")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	a := NewActions(nil, testSubmitter(), zap.NewNop().Sugar())
	def := &Definition{ID: "labour-job", Actions: []ActionDef{{Type: "webhook", Params: map[string]any{
		"url": srv.URL, "header.X-Token": "s3cret",
	}}}}
	if err := a.Execute(context.Background(), def, "id", map[string]any{"wage": 450.0}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if gotHeader != "s3cret" || gotBody != `{"wage":450}` {
		t.Fatalf("header=%q body=%q", gotHeader, gotBody)
	}
}

func TestActions_WebhookFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a := NewActions(nil, testSubmitter(), zap.NewNop().Sugar())
	def := &Definition{ID: "x", Actions: []ActionDef{
		{Type: "webhook", Params: map[string]any{"url": srv.URL}},
		{Type: "store"},
		{Type: "pdf"},
	}}
	err := a.Execute(context.Background(), def, "id", nil)
	if err == nil || !strings.Contains(err.Error(), "webhook") || !strings.Contains(err.Error(), "store") {
		t.Fatalf("err = %v, want webhook and store failures", err)
	}
}

func TestIntake_JSONAndForm(t *testing.T) {
	def := yieldDef()

	r := httptest.NewRequest(http.MethodPost, "/api/forms/crop-yield", strings.NewReader(`{"crop":"wheat","area":10}`))
	r.Header.Set("Content-Type", "application/json")
	_, payload, err := HandleSubmit(def, r, anchor2026)
	if err != nil {
		t.Fatalf("HandleSubmit JSON: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"crop": "wheat", "area": 10.0}, payload); diff != "" {
		t.Fatalf("payload (-want +got):\n%s", diff)
	}

	r = httptest.NewRequest(http.MethodPost, "/api/forms/crop-yield", strings.NewReader("crop=&area=0"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	_, _, err = HandleSubmit(def, r, anchor2026)
	res, ok := AsValidationError(err)
	if !ok {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if diff := cmp.Diff([]string{"crop", "area"}, res.Fields()); diff != "" {
		t.Fatalf("fields (-want +got):\n%s", diff)
	}

	r = httptest.NewRequest(http.MethodPost, "/api/forms/crop-yield", strings.NewReader("x"))
	r.Header.Set("Content-Type", "text/csv")
	if _, _, err := HandleSubmit(def, r, anchor2026); err == nil || IsValidationError(err) {
		t.Fatalf("err = %v, want unsupported body", err)
	}
}

func TestEnvelope_RoundTripsThroughDecode(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteFieldErrors(rec, Validate(Values{}, yieldRules(), anchor2026))
	out := DecodeOutcome(rec.Code, rec.Body.Bytes(), nil)
	fe, ok := out.(FieldErrors)
	if !ok || fe.Errors["crop"] != MsgRequired {
		t.Fatalf("outcome = %#v", out)
	}

	rec = httptest.NewRecorder()
	WriteSuccess(rec, http.StatusOK, map[string]any{"prediction": 2.5})
	if _, ok := DecodeOutcome(rec.Code, rec.Body.Bytes(), nil).(Success); !ok {
		t.Fatalf("success envelope not recognised: %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	WriteError(rec, http.StatusNotFound, "Unknown form.")
	te, ok := DecodeOutcome(rec.Code, rec.Body.Bytes(), nil).(*TransportError)
	if !ok || te.Message != "Unknown form." {
		t.Fatalf("error envelope = %#v", te)
	}
}

func TestActions_WithoutSecrets(t *testing.T) {
	rules := Ruleset{
		{Name: "email", Kind: KindText, Input: "email"},
		{Name: "password", Kind: KindText, Input: "password"},
	}
	got := withoutSecrets(rules, map[string]any{"email": "a@b.co", "password": "Harvest2026", "extra": 1.0})
	want := map[string]any{"email": "a@b.co", "extra": 1.0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("payload (-want +got):\n%s", diff)
	}
}
