package twilio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSendSMS(t *testing.T) {
	var gotPath, gotFrom, gotTo, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if _, _, ok := r.BasicAuth(); !ok {
			t.Error("expected basic auth on request")
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotFrom = r.PostForm.Get("From")
		gotTo = r.PostForm.Get("To")
		gotBody = r.PostForm.Get("Body")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM123"}`))
	}))
	defer srv.Close()

	client := New("AC42", "secret").WithBaseURL(srv.URL)
	sid, err := client.SendSMS(context.Background(), "+15550001111", "+15552223333", "hello")
	if err != nil {
		t.Fatalf("SendSMS failed: %v", err)
	}
	if sid != "SM123" {
		t.Errorf("sid = %q, want SM123", sid)
	}
	if !strings.Contains(gotPath, "AC42") {
		t.Errorf("request path %q missing account SID", gotPath)
	}
	if gotFrom != "+15550001111" || gotTo != "+15552223333" || gotBody != "hello" {
		t.Errorf("unexpected form values: from=%q to=%q body=%q", gotFrom, gotTo, gotBody)
	}
}

func TestSendSMSAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":21211,"message":"The 'To' number is not a valid phone number."}`))
	}))
	defer srv.Close()

	client := New("AC42", "secret").WithBaseURL(srv.URL)
	_, err := client.SendSMS(context.Background(), "+15550001111", "bogus", "hello")
	if err == nil {
		t.Fatal("expected error for rejected message")
	}
	if !strings.Contains(err.Error(), "21211") {
		t.Errorf("error %q should include the twilio error code", err)
	}
}
