package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/mailtrust/internal/core"
	"github.com/mikey/mailtrust/internal/extractor"
)

type fakeInspector struct {
	filename string
	data     []byte
	err      error
}

func (f *fakeInspector) Inspect(ctx context.Context, filename string, data []byte) (*core.InspectResult, error) {
	f.filename = filename
	f.data = data
	if f.err != nil {
		return nil, f.err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("extract message: %w", extractor.ErrEmptyInput)
	}
	return &core.InspectResult{
		ID:          "01HZY5B1Q3XF6J1M0S0B3T2E9K",
		Kind:        core.KindText,
		Auth:        core.NotApplicableAuth(),
		Links:       []string{},
		LinkDomains: []core.LinkDomain{},
		Verdict:     core.VerdictSpam,
		Score:       1,
		Reasons:     []string{"Spam language"},
		Tips:        []string{"Mark the message as spam and delete it."},
	}, nil
}

type fakeVerifier struct {
	address string
}

func (f *fakeVerifier) Verify(ctx context.Context, address string) *core.VerifyResult {
	f.address = address
	return &core.VerifyResult{
		Source:  core.SourceLocal,
		Input:   address,
		MX:      []core.MXRecord{},
		Mailbox: core.MailboxInfo{Status: core.MailboxUnknown},
		Verdict: core.AddressVerdict{List: core.ListBlack, Confidence: core.Confidence{Score: 2, Band: "low"}},
		Notes:   []string{"Address format is invalid"},
	}
}

func setup(inspector *fakeInspector, maxUpload int64) (http.Handler, *fakeVerifier) {
	verifier := &fakeVerifier{}
	h := NewHandlers(inspector, verifier, zap.NewNop(), maxUpload)
	return h.Router(), verifier
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestInspect_JSON(t *testing.T) {
	inspector := &fakeInspector{}
	router, _ := setup(inspector, 1<<20)

	req := httptest.NewRequest(http.MethodPost, "/api/inspect", bytes.NewBufferString(`{"raw":"You are a WINNER!"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "01HZY5B1Q3XF6J1M0S0B3T2E9K", rec.Header().Get("X-Inspection-Id"))
	assert.Equal(t, "You are a WINNER!", string(inspector.data))

	body := decode(t, rec)
	assert.Equal(t, "spam", body["verdict"])
	assert.Equal(t, "text", body["kind"])
	assert.Equal(t, []interface{}{}, body["links"])
	assert.Contains(t, body, "linkDomains")
	assert.Equal(t, map[string]interface{}{"spf": "not-applicable", "dkim": "not-applicable", "dmarc": "not-applicable"}, body["auth"])
}

func TestInspect_Multipart(t *testing.T) {
	inspector := &fakeInspector{}
	router, _ := setup(inspector, 1<<20)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "invoice.eml")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("From: a@example.com\r\n\r\nhello"))
	require.NoError(t, mw.WriteField("raw", "ignored when a file is present"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/inspect", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "invoice.eml", inspector.filename)
	assert.Equal(t, "From: a@example.com\r\n\r\nhello", string(inspector.data))
}

func TestInspect_MultipartRawOnly(t *testing.T) {
	inspector := &fakeInspector{}
	router, _ := setup(inspector, 1<<20)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("raw", "<p>hi</p>"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/inspect", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, inspector.filename)
	assert.Equal(t, "<p>hi</p>", string(inspector.data))
}

func TestInspect_BadRequests(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		err     error
		status  int
		message string
	}{
		{"empty raw", `{"raw":""}`, nil, http.StatusBadRequest, extractor.ErrEmptyInput.Error()},
		{"no body", ``, nil, http.StatusBadRequest, extractor.ErrEmptyInput.Error()},
		{"invalid json", `{"raw":`, nil, http.StatusBadRequest, "invalid JSON body"},
		{"corrupt msg", `{"raw":"x"}`, fmt.Errorf("extract message: %w: bad header", extractor.ErrCorruptArchive), http.StatusBadRequest, extractor.ErrCorruptArchive.Error()},
		{"internal", `{"raw":"x"}`, errors.New("boom"), http.StatusInternalServerError, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := setup(&fakeInspector{err: tt.err}, 1<<20)

			req := httptest.NewRequest(http.MethodPost, "/api/inspect", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.message, decode(t, rec)["error"])
		})
	}
}

func TestInspect_TooLarge(t *testing.T) {
	router, _ := setup(&fakeInspector{}, 16)

	req := httptest.NewRequest(http.MethodPost, "/api/inspect", bytes.NewBufferString(`{"raw":"this payload is well over sixteen bytes"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestVerify_AlwaysOK(t *testing.T) {
	router, verifier := setup(&fakeInspector{}, 1<<20)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/verify?email=user%40", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user@", verifier.address)
	body := decode(t, rec)
	assert.Equal(t, "local", body["source"])
	assert.Equal(t, false, body["formatOK"])
	assert.Equal(t, "blacklist", body["verdict"].(map[string]interface{})["list"])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/verify", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, verifier.address)
}

func TestHealthAndMetrics(t *testing.T) {
	router, _ := setup(&fakeInspector{}, 1<<20)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_StartStop(t *testing.T) {
	h := NewHandlers(&fakeInspector{}, &fakeVerifier{}, zap.NewNop(), 1<<20)
	s := NewServer(h, zap.NewNop(), "127.0.0.1:0")

	require.NoError(t, s.Start())
	defer s.Stop()

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
