package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domain "github.com/aurahealth/screening-core/internal/domain/inference"
)

func TestAnalyzeParsesFlatResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/analyze" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["image_url"] == "" || body["image_type"] == "" {
			t.Errorf("request body missing fields: %v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"risk_level": "Moderate",
			"risk_score": 0.87,
			"confidence": 0.92,
			"predicted_class": "DRUSEN",
			"findings": [{"type": "Drusen", "severity": "Mild", "location": "Temporal"}],
			"recommendations": ["Follow up in 6 months"],
			"model_version": "v2.1.0"
		}`))
	}))
	defer srv.Close()

	cli := NewClient(srv.URL, 5*time.Second)
	res, err := cli.Analyze(context.Background(), "http://images/img-1", "Fundus")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.RiskLevel != "Moderate" || res.RiskScore == nil || *res.RiskScore != 0.87 {
		t.Fatalf("bad result: %+v", res)
	}
	if len(res.Findings) != 1 || res.Findings[0].Type != "Drusen" {
		t.Fatalf("findings = %+v", res.Findings)
	}
	if len(res.Raw) == 0 {
		t.Fatal("raw payload not retained")
	}
}

func TestAnalyzeParsesNestedAssessment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"risk_assessment": {"risk_level": "High", "risk_score": 72.0},
			"systemic_health_risks": {
				"cardiovascular": {"risk_score": 0.4},
				"diabetes": {"risk_score": 0.8}
			}
		}`))
	}))
	defer srv.Close()

	cli := NewClient(srv.URL, 5*time.Second)
	res, err := cli.Analyze(context.Background(), "http://images/img-1", "OCT")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.RiskLevel != "High" || res.RiskScore == nil || *res.RiskScore != 72.0 {
		t.Fatalf("nested assessment not folded in: %+v", res)
	}
	if res.SubScores["diabetes"] != 0.8 {
		t.Fatalf("sub scores = %v", res.SubScores)
	}
}

func TestAnalyzeClassifies404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "image not found", http.StatusNotFound)
	}))
	defer srv.Close()

	cli := NewClient(srv.URL, 5*time.Second)
	_, err := cli.Analyze(context.Background(), "http://images/img-gone", "Fundus")
	if !errors.Is(err, domain.ErrImageNotFound) {
		t.Fatalf("err = %v, want ErrImageNotFound", err)
	}
}

func TestAnalyzeClassifies5xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cli := NewClient(srv.URL, 5*time.Second)
	_, err := cli.Analyze(context.Background(), "http://images/img-1", "Fundus")
	if !errors.Is(err, domain.ErrUnreachable) {
		t.Fatalf("err = %v, want ErrUnreachable", err)
	}
}

func TestAnalyzeClassifiesTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	cli := NewClient(srv.URL, 20*time.Millisecond)
	_, err := cli.Analyze(context.Background(), "http://images/img-1", "Fundus")
	if !errors.Is(err, domain.ErrUnreachable) {
		t.Fatalf("err = %v, want ErrUnreachable", err)
	}
}

func TestAnalyzeClassifiesConnRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	cli := NewClient(srv.URL, time.Second)
	_, err := cli.Analyze(context.Background(), "http://images/img-1", "Fundus")
	if !errors.Is(err, domain.ErrUnreachable) {
		t.Fatalf("err = %v, want ErrUnreachable", err)
	}
}

func TestAnalyzeClassifiesMalformed(t *testing.T) {
	cases := map[string]string{
		"invalid json":   `{"risk_level": `,
		"no risk fields": `{"status": "ok"}`,
	}
	for name, payload := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(payload))
		}))
		cli := NewClient(srv.URL, 5*time.Second)
		_, err := cli.Analyze(context.Background(), "http://images/img-1", "Fundus")
		srv.Close()
		if !errors.Is(err, domain.ErrMalformedResponse) {
			t.Errorf("%s: err = %v, want ErrMalformedResponse", name, err)
		}
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	cli := NewClient(srv.URL, time.Second)
	for i := 0; i < 5; i++ {
		if _, err := cli.Analyze(context.Background(), "http://images/img-1", "Fundus"); err == nil {
			t.Fatal("expected failure")
		}
	}

	// Breaker is open now; the call fails without touching the server.
	_, err := cli.Analyze(context.Background(), "http://images/img-1", "Fundus")
	if !errors.Is(err, domain.ErrUnreachable) {
		t.Fatalf("err = %v, want ErrUnreachable while open", err)
	}
}

func TestMockClientStableAcrossPresignedURLs(t *testing.T) {
	cli := MockClient{}
	a, _ := cli.Analyze(context.Background(), "http://minio/bucket/clinic/img-1?X-Amz-Signature=aaa", "Fundus")
	b, _ := cli.Analyze(context.Background(), "http://minio/bucket/clinic/img-1?X-Amz-Signature=bbb", "Fundus")

	if a.PredictedClass != b.PredictedClass || *a.RiskScore != *b.RiskScore {
		t.Fatal("mock result changed across presigned URL variants of the same object")
	}
}
