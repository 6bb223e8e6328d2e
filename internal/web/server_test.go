package web

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dunamismax/stylize/internal/form"
	"github.com/dunamismax/stylize/internal/function"
	"github.com/dunamismax/stylize/internal/store"
	"github.com/dunamismax/stylize/internal/transform"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type testEnv struct {
	t             *testing.T
	app           *httptest.Server
	client        *http.Client
	server        *Server
	backendStatus atomic.Int32
	backendHits   atomic.Int32
	backendType   atomic.Value
	lastQuery     atomic.Value
}

func newTestEnv(t *testing.T, configure ...func(*Config)) *testEnv {
	t.Helper()
	env := &testEnv{t: t}
	env.backendStatus.Store(http.StatusOK)
	env.backendType.Store("image/png")

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.backendHits.Add(1)
		env.lastQuery.Store(r.URL.Path + "?" + r.URL.RawQuery)
		status := int(env.backendStatus.Load())
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", env.backendType.Load().(string))
		_, _ = w.Write([]byte("stylized"))
	}))
	t.Cleanup(backend.Close)

	client, err := transform.NewClient(transform.Config{BaseURL: backend.URL, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("transform client: %v", err)
	}

	sessions := store.NewSessionStore(time.Minute, func() *form.Controller { return form.NewController(client) })
	cfg := Config{Sessions: sessions}
	for _, fn := range configure {
		fn(&cfg)
	}
	srv, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	env.server = srv
	env.app = httptest.NewServer(srv.Handler())
	t.Cleanup(env.app.Close)

	env.client = newBrowser()
	return env
}

// newBrowser is an HTTP client with its own cookie jar.
func newBrowser() *http.Client {
	jar, _ := cookiejar.New(nil)
	return &http.Client{Jar: jar}
}

// submitFlow selects edge, attaches an image and submits it.
func (e *testEnv) submitFlow() string {
	e.t.Helper()
	e.postForm("/select", url.Values{"function": {"edge"}})
	e.upload("picker", "cat.png", pngHeader)
	return e.postForm("/submit", nil)
}

func (e *testEnv) get(path string) (int, string) {
	e.t.Helper()
	resp, err := e.client.Get(e.app.URL + path)
	if err != nil {
		e.t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func (e *testEnv) postForm(path string, values url.Values) string {
	e.t.Helper()
	resp, err := e.client.PostForm(e.app.URL+path, values)
	if err != nil {
		e.t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return string(body)
}

func (e *testEnv) upload(channel, name string, data []byte) string {
	e.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("channel", channel)
	part, _ := mw.CreateFormFile("image", name)
	_, _ = part.Write(data)
	_ = mw.Close()

	resp, err := e.client.Post(e.app.URL+"/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		e.t.Fatalf("POST /upload: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return string(body)
}

var resultSrc = regexp.MustCompile(`src="(/results/[^"]+)"`)

func TestFormFlow(t *testing.T) {
	env := newTestEnv(t)

	status, page := env.get("/")
	if status != http.StatusOK || !strings.Contains(page, function.Placeholder) {
		t.Fatalf("unexpected index status=%d", status)
	}

	page = env.postForm("/submit", nil)
	if !strings.Contains(page, "no function selected") {
		t.Fatal("expected missing function alert")
	}

	page = env.postForm("/select", url.Values{"function": {"braille"}})
	if !strings.Contains(page, `name="threshold"`) {
		t.Fatal("expected braille options to render")
	}

	page = env.postForm("/options", url.Values{"threshold": {"300"}})
	if !strings.Contains(page, "Value must be an integer between 0 and 255") {
		t.Fatal("expected threshold feedback alert")
	}

	page = env.postForm("/options", url.Values{"invert": {"on"}, "threshold": {"120"}})
	if strings.Contains(page, `role="alert"`) {
		t.Fatal("expected valid options to be accepted")
	}

	page = env.postForm("/submit", nil)
	if !strings.Contains(page, "no image attached") {
		t.Fatal("expected missing file alert")
	}

	page = env.upload("picker", "cat.png", pngHeader)
	if !strings.Contains(page, "cat.png") {
		t.Fatal("expected attached file name")
	}

	page = env.postForm("/submit", nil)
	match := resultSrc.FindStringSubmatch(page)
	if match == nil {
		t.Fatal("expected result image in output area")
	}
	if got := env.lastQuery.Load(); got != "/braille?invert=true&threshold=120" {
		t.Fatalf("unexpected backend request %v", got)
	}

	status, body := env.get(match[1])
	if status != http.StatusOK || body != "stylized" {
		t.Fatalf("unexpected result status=%d body=%q", status, body)
	}

	env.backendStatus.Store(http.StatusRequestEntityTooLarge)
	page = env.postForm("/submit", nil)
	if !strings.Contains(page, "413: Something went wrong") {
		t.Fatal("expected backend status alert")
	}
	if resultSrc.MatchString(page) {
		t.Fatal("expected output to return to placeholder")
	}
	if status, _ := env.get(match[1]); status != http.StatusNotFound {
		t.Fatalf("expected previous result to be revoked, got %d", status)
	}
}

func TestSelectClearsOptionsBeforeSubmit(t *testing.T) {
	env := newTestEnv(t)

	env.postForm("/select", url.Values{"function": {"lego"}})
	env.postForm("/options", url.Values{"size": {"12"}})
	env.postForm("/select", url.Values{"function": {"frost"}})
	env.upload("picker", "cat.png", pngHeader)
	env.postForm("/submit", nil)

	if got := env.lastQuery.Load(); got != "/frost?" {
		t.Fatalf("expected no options for frost, got %v", got)
	}
}

func TestPasteAndDropRejectNonImages(t *testing.T) {
	env := newTestEnv(t)

	for _, channel := range []string{"paste", "drop"} {
		page := env.upload(channel, "notes.txt", []byte("plain text notes"))
		if !strings.Contains(page, "file is not an image") {
			t.Fatalf("expected %s of text to be rejected", channel)
		}
	}

	page := env.upload("paste", "pasted-image", pngHeader)
	if !strings.Contains(page, "Attached: <strong>pasted-image</strong>") {
		t.Fatal("expected pasted image to be attached")
	}
}

func TestFunctionsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.get("/functions")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if !strings.Contains(body, `"function":"hue_rotate"`) {
		t.Fatal("expected hue_rotate in function list")
	}
}

func TestResultRequiresSession(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.app.URL + "/results/whatever")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestInputsFromForm(t *testing.T) {
	schema := function.SchemaFor(function.Matrix)
	inputs := inputsFromForm(schema, url.Values{"size": {"50"}, "bogus": {"x"}})

	want := []function.Input{
		{ID: "num_only", Kind: function.InputCheckbox, Checked: false},
		{ID: "bogus", Kind: function.InputText, Value: "x"},
		{ID: "size", Kind: function.InputNumber, Value: "50"},
	}
	if len(inputs) != len(want) {
		t.Fatalf("expected %d inputs, got %d", len(want), len(inputs))
	}
	for i := range want {
		if inputs[i] != want[i] {
			t.Fatalf("input %d: expected %+v, got %+v", i, want[i], inputs[i])
		}
	}
}

func TestRouteLabel(t *testing.T) {
	cases := map[string]string{
		"/":                "/",
		"/results/abc-123": "/results/{id}",
		"/submit":          "/submit",
		"/wp-admin":        "other",
	}
	for path, want := range cases {
		if got := routeLabel(path); got != want {
			t.Fatalf("routeLabel(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestResultContentTypeOnlyPassesImages(t *testing.T) {
	env := newTestEnv(t)
	env.backendType.Store("text/html; charset=utf-8")

	match := resultSrc.FindStringSubmatch(env.submitFlow())
	if match == nil {
		t.Fatal("expected result image in output area")
	}
	resp, err := env.client.Get(env.app.URL + match[1])
	if err != nil {
		t.Fatalf("GET result: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Content-Type"); got != "application/octet-stream" {
		t.Fatalf("expected octet-stream for html result, got %q", got)
	}

	cases := map[string]string{
		"image/png":              "image/png",
		"image/jpeg; q=1":        "image/jpeg; q=1",
		"image/svg+xml":          "application/octet-stream",
		"text/html":              "application/octet-stream",
		"":                       "application/octet-stream",
		"application/javascript": "application/octet-stream",
	}
	for in, want := range cases {
		if got := resultContentType(in); got != want {
			t.Fatalf("resultContentType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUploadHonorsRequestLimit(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) { cfg.MaxRequestBytes = 1024 })

	big := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, 4096)...)
	page := env.upload("picker", "big.png", big)
	if !strings.Contains(page, `role="alert"`) || strings.Contains(page, "big.png") {
		t.Fatal("expected oversized request to be rejected")
	}

	page = env.upload("picker", "cat.png", pngHeader)
	if !strings.Contains(page, "cat.png") {
		t.Fatal("expected small upload to be attached")
	}
}
