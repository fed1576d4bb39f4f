package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"resumeform/internal/config"
	"resumeform/internal/errors"
	"resumeform/internal/types"
	"resumeform/internal/uploadform"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resultBody = `{"atsScore":{"atsScore":87,"breakdown":{"keywordMatch":90,"formatting":80}}}`

type fakeAnalyzer struct {
	mu       sync.Mutex
	calls    int
	lastFile types.SelectedFile
	lastJD   string
	err      error
	release  chan struct{} // when set, Analyze blocks until it is closed
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, file types.SelectedFile, jobDescription string) (*types.AnalysisResult, error) {
	f.mu.Lock()
	f.calls++
	f.lastFile = file
	f.lastJD = jobDescription
	release, err := f.release, f.err
	f.mu.Unlock()

	if release != nil {
		<-release
	}
	if err != nil {
		return nil, err
	}
	return types.DecodeAnalysisResult([]byte(resultBody))
}

func (f *fakeAnalyzer) last() (types.SelectedFile, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastFile, f.lastJD
}

func (f *fakeAnalyzer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeHealth struct{ healthy bool }

func (h fakeHealth) Stats() map[string]any { return map[string]any{"enabled": true, "state": "open"} }
func (h fakeHealth) Healthy() bool         { return h.healthy }

func newTestServer(t *testing.T, client uploadform.AnalysisClient, mutate func(*ServerConfig)) (*Server, *httptest.Server) {
	t.Helper()
	cfg := ServerConfig{
		Version: "test",
		Server: config.ServerConfig{
			Host:       "localhost",
			Port:       "0",
			SessionTTL: time.Hour,
		},
		MaxRequestSize: 1 << 20,
		Client:         client,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	srv := NewServer(cfg, errors.Discard())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return srv, ts
}

func newBrowser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

type upload struct {
	fileName       string
	contentType    string
	content        string
	jobDescription *string
	action         string
}

func (u upload) body(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="resume"; filename="%s"`, u.fileName))
	if u.contentType != "" {
		h.Set("Content-Type", u.contentType)
	}
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write([]byte(u.content))
	require.NoError(t, err)

	if u.jobDescription != nil {
		require.NoError(t, w.WriteField("jobDescription", *u.jobDescription))
	}
	if u.action != "" {
		require.NoError(t, w.WriteField("action", u.action))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func strPtr(s string) *string { return &s }

// postForm submits like a browser: it follows the redirect and reloads while
// the page asks for a refresh, returning the first idle page.
func postForm(t *testing.T, client *http.Client, url string, u upload) *goquery.Document {
	t.Helper()
	body, contentType := u.body(t)
	resp, err := client.Post(url, contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, http.MethodGet, resp.Request.Method, "a form post must redirect to the form")

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	require.NoError(t, err)
	return waitForIdle(t, client, url, doc)
}

func waitForIdle(t *testing.T, client *http.Client, url string, doc *goquery.Document) *goquery.Document {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for isRefreshing(doc) {
		require.True(t, time.Now().Before(deadline), "form stayed busy")
		time.Sleep(10 * time.Millisecond)
		doc, _ = getForm(t, client, url)
	}
	return doc
}

func isRefreshing(doc *goquery.Document) bool {
	return doc.Find(`meta[http-equiv="refresh"]`).Length() > 0
}

func getForm(t *testing.T, client *http.Client, url string) (*goquery.Document, *http.Response) {
	t.Helper()
	resp, err := client.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	require.NoError(t, err)
	return doc, resp
}

func TestFormInitialRender(t *testing.T) {
	_, ts := newTestServer(t, &fakeAnalyzer{}, nil)

	doc, resp := getForm(t, newBrowser(t), ts.URL+"/")

	var sessionCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookie {
			sessionCookie = c
		}
	}
	require.NotNil(t, sessionCookie, "expected a session cookie")
	assert.True(t, sessionCookie.HttpOnly)
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	submit := doc.Find("#submit-button")
	assert.Equal(t, uploadform.SubmitLabel, strings.TrimSpace(submit.Text()))
	_, disabled := submit.Attr("disabled")
	assert.True(t, disabled, "submit must be disabled without a file")

	accept, _ := doc.Find("#resumeInput").Attr("accept")
	assert.Equal(t, ".pdf,.doc,.docx", accept)
	assert.Contains(t, doc.Find(".hint").Text(), "Supported formats: PDF")
	assert.Zero(t, doc.Find(".file-info").Length())
	assert.Zero(t, doc.Find(".loader").Length())
	assert.Zero(t, doc.Find(".result").Length())
}

func TestFormSelectThenAnalyze(t *testing.T) {
	client := &fakeAnalyzer{}
	_, ts := newTestServer(t, client, nil)
	browser := newBrowser(t)

	doc := postForm(t, browser, ts.URL+"/", upload{
		fileName:       "resume.pdf",
		contentType:    "application/pdf",
		content:        "%PDF-1.4\n",
		jobDescription: strPtr(""),
		action:         "select",
	})
	assert.Equal(t, 0, client.Calls(), "selecting a file must not submit")
	assert.Equal(t, "resume.pdf", doc.Find(".file-name").Text())
	assert.Equal(t, "0.01 KB - PDF", doc.Find(".file-summary").Text())
	_, disabled := doc.Find("#submit-button").Attr("disabled")
	assert.False(t, disabled, "submit must be enabled once a file is selected")

	// The browser sends an empty file part when nothing new is picked.
	doc = postForm(t, browser, ts.URL+"/", upload{
		jobDescription: strPtr("Senior Go engineer"),
		action:         "analyze",
	})
	require.Equal(t, 1, client.Calls())
	sent, jobDescription := client.last()
	assert.Equal(t, "resume.pdf", sent.Name)
	assert.Equal(t, "application/pdf", sent.ContentType)
	assert.Equal(t, "Senior Go engineer", jobDescription)

	assert.Equal(t, uploadform.SuccessMessage, strings.TrimSpace(doc.Find(".alert-success[role=alert]").Text()))
	assert.Equal(t, "ATS Score: 87", doc.Find(".ats-score").Text())

	var items []string
	doc.Find(".breakdown li").Each(func(_ int, li *goquery.Selection) {
		items = append(items, strings.Join(strings.Fields(li.Text()), " "))
	})
	assert.Equal(t, []string{"keyword Match: 90", "formatting: 80"}, items)

	// Alerts are shown once; the result stays.
	doc, _ = getForm(t, browser, ts.URL+"/")
	assert.Zero(t, doc.Find("[role=alert]").Length())
	assert.Equal(t, "ATS Score: 87", doc.Find(".ats-score").Text())
	assert.Equal(t, "Senior Go engineer", doc.Find("#jdInput").Text())
}

func TestFormShowsSubmittingView(t *testing.T) {
	client := &fakeAnalyzer{release: make(chan struct{})}
	_, ts := newTestServer(t, client, nil)
	browser := newBrowser(t)
	released := false
	defer func() {
		if !released {
			close(client.release)
		}
	}()

	body, contentType := upload{
		fileName: "resume.pdf", contentType: "application/pdf", content: "%PDF-1.4\n",
		jobDescription: strPtr("Go"), action: "analyze",
	}.body(t)
	resp, err := browser.Post(ts.URL+"/", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, http.MethodGet, resp.Request.Method)

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	require.NoError(t, err)

	assert.True(t, isRefreshing(doc))
	assert.Equal(t, uploadform.LoadingMessage, strings.TrimSpace(doc.Find(".loader").Text()))
	submit := doc.Find("#submit-button")
	assert.Equal(t, uploadform.BusyLabel, strings.TrimSpace(submit.Text()))
	_, disabled := submit.Attr("disabled")
	assert.True(t, disabled, "submit must be disabled while submitting")
	_, disabled = doc.Find("#select-button").Attr("disabled")
	assert.True(t, disabled)
	assert.Zero(t, doc.Find(".result").Length())

	// Reloads while busy keep the view and hold back alerts.
	doc, _ = getForm(t, browser, ts.URL+"/")
	assert.Equal(t, 1, doc.Find(".loader").Length())
	assert.Zero(t, doc.Find("[role=alert]").Length())

	close(client.release)
	released = true

	doc = waitForIdle(t, browser, ts.URL+"/", doc)
	assert.Zero(t, doc.Find(".loader").Length())
	assert.Equal(t, uploadform.SuccessMessage, strings.TrimSpace(doc.Find(".alert-success[role=alert]").Text()))
	assert.Equal(t, "ATS Score: 87", doc.Find(".ats-score").Text())
	assert.Equal(t, uploadform.SubmitLabel, strings.TrimSpace(doc.Find("#submit-button").Text()))
	assert.Equal(t, 1, client.Calls())
}

func TestFormValidationAlert(t *testing.T) {
	client := &fakeAnalyzer{}
	_, ts := newTestServer(t, client, nil)

	doc := postForm(t, newBrowser(t), ts.URL+"/", upload{
		fileName:       "resume.pdf",
		contentType:    "application/pdf",
		content:        "%PDF-1.4\n",
		jobDescription: strPtr("   "),
		action:         "analyze",
	})

	assert.Equal(t, 0, client.Calls())
	assert.Equal(t, uploadform.ValidationMessage, strings.TrimSpace(doc.Find(".alert-error").Text()))
	assert.Zero(t, doc.Find(".result").Length())
}

func TestFormFailureKeepsPreviousResult(t *testing.T) {
	client := &fakeAnalyzer{}
	_, ts := newTestServer(t, client, nil)
	browser := newBrowser(t)

	postForm(t, browser, ts.URL+"/", upload{
		fileName: "resume.pdf", contentType: "application/pdf", content: "%PDF-1.4\n",
		jobDescription: strPtr("Go"), action: "analyze",
	})

	client.mu.Lock()
	client.err = fmt.Errorf("backend down")
	client.mu.Unlock()

	doc := postForm(t, browser, ts.URL+"/", upload{jobDescription: strPtr("Go"), action: "analyze"})
	assert.Equal(t, uploadform.FailureMessage, strings.TrimSpace(doc.Find(".alert-error").Text()))
	assert.NotContains(t, doc.Text(), "backend down")
	assert.Equal(t, "ATS Score: 87", doc.Find(".ats-score").Text())
	assert.Equal(t, uploadform.SubmitLabel, strings.TrimSpace(doc.Find("#submit-button").Text()))
}

func postAPI(t *testing.T, url string, u upload, header http.Header) *http.Response {
	t.Helper()
	body, contentType := u.body(t)
	req, err := http.NewRequest(http.MethodPost, url, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAnalyzeAPI(t *testing.T) {
	tests := []struct {
		name       string
		clientErr  error
		upload     upload
		wantStatus int
		wantCode   string
		wantCalls  int
	}{
		{
			name:       "success",
			upload:     upload{fileName: "cv.docx", contentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document", content: "PK", jobDescription: strPtr("Go")},
			wantStatus: http.StatusOK,
			wantCalls:  1,
		},
		{
			name:       "missing file",
			upload:     upload{jobDescription: strPtr("Go")},
			wantStatus: http.StatusBadRequest,
			wantCode:   errors.ErrCodeMissingInput,
		},
		{
			name:       "blank job description",
			upload:     upload{fileName: "cv.pdf", content: "%PDF-1.4\n"},
			wantStatus: http.StatusBadRequest,
			wantCode:   errors.ErrCodeMissingInput,
		},
		{
			name:       "service failure",
			clientErr:  errors.NewSubmissionError(errors.ErrCodeUnexpectedStatus, "status 500", nil),
			upload:     upload{fileName: "cv.pdf", content: "%PDF-1.4\n", jobDescription: strPtr("Go")},
			wantStatus: http.StatusBadGateway,
			wantCode:   errors.ErrCodeSubmissionFailed,
			wantCalls:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeAnalyzer{err: tt.clientErr}
			_, ts := newTestServer(t, client, nil)

			resp := postAPI(t, ts.URL+"/api/analyze", tt.upload, nil)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
			assert.Equal(t, tt.wantCalls, client.Calls())

			if tt.wantStatus == http.StatusOK {
				var result types.AnalysisResult
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
				require.NotNil(t, result.ATSScore)
				assert.Equal(t, float64(87), result.ATSScore.Score)
				require.Len(t, result.ATSScore.Breakdown, 2)
				assert.Equal(t, "keywordMatch", result.ATSScore.Breakdown[0].Key)
				return
			}

			var errResp ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
			assert.Equal(t, tt.wantCode, errResp.Error)
			assert.NotContains(t, errResp.Message, "status 500")
		})
	}
}

func TestAnalyzeAPIDetectsMissingContentType(t *testing.T) {
	client := &fakeAnalyzer{}
	_, ts := newTestServer(t, client, nil)

	resp := postAPI(t, ts.URL+"/api/analyze", upload{fileName: "cv.pdf", content: "%PDF-1.4\n%body\n", jobDescription: strPtr("Go")}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sent, _ := client.last()
	assert.Equal(t, "application/pdf", sent.ContentType)
}

func TestAnalyzeAPIKeepsDeclaredGenericContentType(t *testing.T) {
	client := &fakeAnalyzer{}
	_, ts := newTestServer(t, client, nil)

	resp := postAPI(t, ts.URL+"/api/analyze", upload{fileName: "cv.pdf", contentType: "application/octet-stream", content: "%PDF-1.4\n%body\n", jobDescription: strPtr("Go")}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	sent, _ := client.last()
	assert.Equal(t, "application/octet-stream", sent.ContentType)
	assert.Equal(t, "application/pdf", sent.DetectedType)
	assert.Equal(t, "PDF", sent.Subtype())
}

func TestAnalyzeAPIAuthentication(t *testing.T) {
	client := &fakeAnalyzer{}
	_, ts := newTestServer(t, client, func(cfg *ServerConfig) {
		cfg.Server.APIKeys = []string{"secret-key-123"}
	})
	u := upload{fileName: "cv.pdf", content: "%PDF-1.4\n", jobDescription: strPtr("Go")}

	resp := postAPI(t, ts.URL+"/api/analyze", u, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = postAPI(t, ts.URL+"/api/analyze", u, http.Header{"X-Api-Key": {"wrong"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = postAPI(t, ts.URL+"/api/analyze", u, http.Header{"Authorization": {"Bearer secret-key-123"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, client.Calls())
}

func TestAnalyzeAPIRejectsBadRequests(t *testing.T) {
	_, ts := newTestServer(t, &fakeAnalyzer{}, func(cfg *ServerConfig) {
		cfg.MaxRequestSize = 64
	})

	resp, err := http.Get(ts.URL + "/api/analyze")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/api/analyze", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	big := postAPI(t, ts.URL+"/api/analyze", upload{fileName: "cv.pdf", content: strings.Repeat("x", 1024), jobDescription: strPtr("Go")}, nil)
	assert.Contains(t, []int{http.StatusBadRequest, http.StatusRequestEntityTooLarge}, big.StatusCode)
}

func TestRateLimiting(t *testing.T) {
	_, ts := newTestServer(t, &fakeAnalyzer{}, func(cfg *ServerConfig) {
		cfg.Server.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMin: 1, BurstCapacity: 1, ByIP: true}
	})
	u := upload{fileName: "cv.pdf", content: "%PDF-1.4\n", jobDescription: strPtr("Go")}

	first := postAPI(t, ts.URL+"/api/analyze", u, nil)
	assert.Equal(t, http.StatusOK, first.StatusCode)

	second := postAPI(t, ts.URL+"/api/analyze", u, nil)
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
	assert.NotEmpty(t, second.Header.Get("Retry-After"))
}

func TestHealthAndStats(t *testing.T) {
	_, ts := newTestServer(t, &fakeAnalyzer{}, func(cfg *ServerConfig) {
		cfg.Health = fakeHealth{healthy: false}
	})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "degraded", health["status"])
	assert.Equal(t, "test", health["version"])

	getForm(t, newBrowser(t), ts.URL+"/")

	resp, err = http.Get(ts.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	server, ok := stats["server"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), server["active_sessions"])
}

func TestRequestIDPropagation(t *testing.T) {
	_, ts := newTestServer(t, &fakeAnalyzer{}, nil)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "0b5c3f0e-6a0c-4d7e-9a57-0d1f2b3c4d5e")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "0b5c3f0e-6a0c-4d7e-9a57-0d1f2b3c4d5e", resp.Header.Get(RequestIDHeader))

	req.Header.Set(RequestIDHeader, "not-a-uuid")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEqual(t, "not-a-uuid", resp.Header.Get(RequestIDHeader))
}

func TestUnknownPathIsNotFound(t *testing.T) {
	_, ts := newTestServer(t, &fakeAnalyzer{}, nil)

	resp, err := http.Get(ts.URL + "/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
