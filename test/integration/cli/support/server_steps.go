package support

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/docscan/internal/analyzer"
	"github.com/MeKo-Tech/docscan/internal/pipeline"
	"github.com/MeKo-Tech/docscan/internal/server"
	"github.com/MeKo-Tech/docscan/internal/utils"
	"github.com/cucumber/godog"
	"github.com/gorilla/websocket"
)

const httpTimeout = 30 * time.Second

// startServer runs the scan API in-process behind an httptest listener.
func (testCtx *TestContext) startServer(requestsPerMinute int) error {
	if testCtx.HTTPServer != nil {
		return errors.New("scan server already running")
	}
	s, err := server.NewServer(server.Config{
		CORSOrigin:        "*",
		MaxUploadMB:       10,
		TimeoutSec:        30,
		JPEGQuality:       90,
		RequestsPerMinute: requestsPerMinute,
		PipelineConfig:    pipeline.DefaultConfig(),
		AnalyzerConfig:    analyzer.DefaultConfig(),
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	testCtx.serverCancel = cancel
	testCtx.HTTPServer = httptest.NewServer(s.Handler())
	return nil
}

func (testCtx *TestContext) stopServer() {
	if testCtx.HTTPServer != nil {
		testCtx.HTTPServer.Close()
		testCtx.HTTPServer = nil
	}
	if testCtx.serverCancel != nil {
		testCtx.serverCancel()
		testCtx.serverCancel = nil
	}
}

func (testCtx *TestContext) theScanServerIsRunning() error {
	return testCtx.startServer(0)
}

func (testCtx *TestContext) theScanServerIsRunningWithLimit(perMinute int) error {
	return testCtx.startServer(perMinute)
}

func (testCtx *TestContext) do(req *http.Request) error {
	client := &http.Client{Timeout: httpTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = body
	testCtx.LastHTTPHeaders = map[string]string{}
	for k := range resp.Header {
		testCtx.LastHTTPHeaders[k] = resp.Header.Get(k)
	}
	return nil
}

func (testCtx *TestContext) newRequest(method, endpoint string, body io.Reader) (*http.Request, error) {
	if testCtx.HTTPServer == nil {
		return nil, errors.New("scan server is not running")
	}
	return http.NewRequestWithContext(context.Background(), method, testCtx.HTTPServer.URL+endpoint, body)
}

func (testCtx *TestContext) iGET(endpoint string) error {
	req, err := testCtx.newRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return testCtx.do(req)
}

func (testCtx *TestContext) iSendOPTIONS(endpoint string) error {
	req, err := testCtx.newRequest(http.MethodOptions, endpoint, nil)
	if err != nil {
		return err
	}
	return testCtx.do(req)
}

func (testCtx *TestContext) upload(name, endpoint string, fields map[string]string) error {
	data, err := os.ReadFile(testCtx.resolvePath(name))
	if err != nil {
		return err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", filepath.Base(name))
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := testCtx.newRequest(http.MethodPost, endpoint, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return testCtx.do(req)
}

func (testCtx *TestContext) iUploadTo(name, endpoint string) error {
	return testCtx.upload(name, endpoint, nil)
}

func (testCtx *TestContext) iUploadToWithFields(name, endpoint string, table *godog.Table) error {
	fields := map[string]string{}
	for _, row := range table.Rows {
		if len(row.Cells) != 2 {
			return errors.New("field table needs two columns")
		}
		fields[row.Cells[0].Value] = row.Cells[1].Value
	}
	return testCtx.upload(name, endpoint, fields)
}

func (testCtx *TestContext) iUploadToTimes(name, endpoint string, n int) error {
	for range n {
		if err := testCtx.upload(name, endpoint, nil); err != nil {
			return err
		}
	}
	return nil
}

// iStreamOverTheFramesWebSocket sends one encoded frame and stores the pushed result.
func (testCtx *TestContext) iStreamOverTheFramesWebSocket(name string) error {
	if testCtx.HTTPServer == nil {
		return errors.New("scan server is not running")
	}
	data, err := os.ReadFile(testCtx.resolvePath(name))
	if err != nil {
		return err
	}

	url := "ws" + strings.TrimPrefix(testCtx.HTTPServer.URL, "http") + "/ws/frames"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", url, err)
	}
	_ = resp.Body.Close()
	defer func() { _ = conn.Close() }()

	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return err
	}
	if err := conn.SetReadDeadline(time.Now().Add(httpTimeout)); err != nil {
		return err
	}
	for {
		var msg struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("failed to read frame result: %w", err)
		}
		switch msg.Type {
		case "result":
			testCtx.LastHTTPStatusCode = http.StatusOK
			testCtx.LastHTTPResponse = msg.Payload
			return nil
		case "error":
			return fmt.Errorf("server rejected frame: %s", msg.Payload)
		}
	}
}

func (testCtx *TestContext) theResponseStatusShouldBe(expected int) error {
	if testCtx.LastHTTPStatusCode != expected {
		return fmt.Errorf("expected status %d, got %d: %s", expected, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldBeValidJSON() error {
	if !json.Valid(testCtx.LastHTTPResponse) {
		return fmt.Errorf("response is not valid JSON: %s", testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) responseField(field string) (any, error) {
	var m map[string]any
	if err := json.Unmarshal(testCtx.LastHTTPResponse, &m); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w", err)
	}
	v, ok := m[field]
	if !ok {
		return nil, fmt.Errorf("response has no field %q: %s", field, testCtx.LastHTTPResponse)
	}
	return v, nil
}

func (testCtx *TestContext) theResponseFieldShouldBe(field, expected string) error {
	v, err := testCtx.responseField(field)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); got != expected {
		return fmt.Errorf("field %q is %q, expected %q", field, got, expected)
	}
	return nil
}

func (testCtx *TestContext) theResponseFieldShouldHaveEntries(field string, n int) error {
	v, err := testCtx.responseField(field)
	if err != nil {
		return err
	}
	list, ok := v.([]any)
	if !ok {
		return fmt.Errorf("field %q is not a list", field)
	}
	if len(list) != n {
		return fmt.Errorf("field %q has %d entries, expected %d", field, len(list), n)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBe(name, expected string) error {
	got := testCtx.LastHTTPHeaders[http.CanonicalHeaderKey(name)]
	if got != expected {
		return fmt.Errorf("header %s is %q, expected %q", name, got, expected)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !bytes.Contains(testCtx.LastHTTPResponse, []byte(text)) {
		return fmt.Errorf("response does not contain %q", text)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldBeAnImageOf(w, h int) error {
	img, _, err := utils.DecodeImage(bytes.NewReader(testCtx.LastHTTPResponse))
	if err != nil {
		return fmt.Errorf("response is not an image: %w", err)
	}
	size := img.Bounds().Size()
	if abs(size.X-w) > sizeTolerance || abs(size.Y-h) > sizeTolerance {
		return fmt.Errorf("response image is %dx%d, expected about %dx%d", size.X, size.Y, w, h)
	}
	return nil
}

// RegisterServerSteps registers HTTP and WebSocket API steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the scan server is running$`, testCtx.theScanServerIsRunning)
	sc.Step(`^the scan server is running with a limit of (\d+) requests? per minute$`, testCtx.theScanServerIsRunningWithLimit)
	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGET)
	sc.Step(`^I send an OPTIONS request to "([^"]*)"$`, testCtx.iSendOPTIONS)
	sc.Step(`^I upload "([^"]*)" to "([^"]*)"$`, testCtx.iUploadTo)
	sc.Step(`^I upload "([^"]*)" to "([^"]*)" with fields:$`, testCtx.iUploadToWithFields)
	sc.Step(`^I upload "([^"]*)" to "([^"]*)" (\d+) times$`, testCtx.iUploadToTimes)
	sc.Step(`^I stream "([^"]*)" over the frames websocket$`, testCtx.iStreamOverTheFramesWebSocket)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response should be valid JSON$`, testCtx.theResponseShouldBeValidJSON)
	sc.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseFieldShouldBe)
	sc.Step(`^the response field "([^"]*)" should have (\d+) entries$`, testCtx.theResponseFieldShouldHaveEntries)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the response should be an image of about (\d+)x(\d+) pixels$`, testCtx.theResponseShouldBeAnImageOf)
}
