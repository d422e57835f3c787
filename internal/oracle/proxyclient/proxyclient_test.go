package proxyclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"oraclecraft.ai/internal/oracle"
)

func TestGenerate_PostsRequest(t *testing.T) {
	var got oracle.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method=%s", r.Method)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(Reply{Message: `{"success":true}`})
	}))
	defer srv.Close()

	text, err := New(srv.URL, nil).Generate(context.Background(), oracle.Request{
		SystemInstruction: "sys",
		UserQuery:         "q",
		Schema:            json.RawMessage(`{"type":"object"}`),
	})
	if err != nil || text != `{"success":true}` {
		t.Fatalf("text=%q err=%v", text, err)
	}
	if got.SystemInstruction != "sys" || got.UserQuery != "q" || string(got.Schema) != `{"type":"object"}` {
		t.Fatalf("request=%+v", got)
	}
}

func TestGenerate_ClassifiesErrors(t *testing.T) {
	cases := []struct {
		code      int
		permanent bool
	}{
		{http.StatusBadRequest, true},
		{http.StatusTooManyRequests, false},
		{http.StatusBadGateway, false},
		{http.StatusInternalServerError, false},
	}
	for _, c := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(c.code)
			_ = json.NewEncoder(w).Encode(Reply{Error: "boom", Details: "why"})
		}))
		_, err := New(srv.URL, nil).Generate(context.Background(), oracle.Request{UserQuery: "q"})
		srv.Close()

		var se *StatusError
		if !errors.As(err, &se) || se.Code != c.code || se.Message != "boom" {
			t.Fatalf("code %d: err=%v", c.code, err)
		}
		var pe *oracle.PermanentError
		if errors.As(err, &pe) != c.permanent {
			t.Fatalf("code %d: permanent=%v", c.code, !c.permanent)
		}
	}
}

func TestClient_RetriesThroughProxy(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			_ = json.NewEncoder(w).Encode(Reply{Error: "upstream"})
			return
		}
		_ = json.NewEncoder(w).Encode(Reply{Message: `{"success":true,"description":"ok","outputs":[{"item":"rock","amount":1}]}`})
	}))
	defer srv.Close()

	c := oracle.NewClient(New(srv.URL, nil), oracle.Policy{MaxAttempts: 3, InitialDelay: time.Millisecond}, nil)
	j, err := c.RequestJudgment(context.Background(), "sys", "q", oracle.ExploreSchema)
	if err != nil || !j.Success || len(j.Outputs) != 1 {
		t.Fatalf("j=%+v err=%v", j, err)
	}
	if calls != 2 {
		t.Fatalf("calls=%d", calls)
	}
}
