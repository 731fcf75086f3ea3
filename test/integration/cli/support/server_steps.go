package support

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/MeKo-Tech/unmark/internal/server"
	"github.com/cucumber/godog"
	"github.com/disintegration/imaging"
)

func (testCtx *TestContext) theAPIServerIsRunning() error {
	return testCtx.StartServer(server.Config{})
}

func (testCtx *TestContext) theAPIServerIsRunningWithRateLimit(perMinute int) error {
	return testCtx.StartServer(server.Config{
		RateLimit: server.RateLimitConfig{Enabled: true, RequestsPerMinute: perMinute},
	})
}

func (testCtx *TestContext) iUploadTo(name, path string) error {
	return testCtx.upload(path, name, nil)
}

func (testCtx *TestContext) iUploadToWith(name, path string, table *godog.Table) error {
	fields := map[string]string{}
	for _, row := range table.Rows {
		if len(row.Cells) != 2 {
			return errors.New("form table rows need two cells")
		}
		fields[row.Cells[0].Value] = row.Cells[1].Value
	}
	return testCtx.upload(path, name, fields)
}

func (testCtx *TestContext) iRequest(method, path string) error {
	if testCtx.HTTPTestServer == nil {
		return errors.New("server is not running")
	}
	req, err := http.NewRequest(method, testCtx.HTTPTestServer.Server.URL+path, nil)
	if err != nil {
		return err
	}
	return testCtx.do(req)
}

func (testCtx *TestContext) theResponseStatusShouldBe(code int) error {
	if testCtx.LastHTTPStatusCode != code {
		return fmt.Errorf("response status is %d, want %d\nBody: %s",
			testCtx.LastHTTPStatusCode, code, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBe(name, want string) error {
	if got := testCtx.LastHTTPHeaders.Get(name); got != want {
		return fmt.Errorf("header %s is %q, want %q", name, got, want)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBeSet(name string) error {
	if testCtx.LastHTTPHeaders.Get(name) == "" {
		return fmt.Errorf("header %s is not set", name)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(string(testCtx.LastHTTPResponse), text) {
		return fmt.Errorf("response does not contain '%s'\nBody: %s", text, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseJSONFieldShouldBe(field, want string) error {
	v, err := lookupJSON(testCtx.LastHTTPResponse, field)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); got != want {
		return fmt.Errorf("response field %s is %q, want %q", field, got, want)
	}
	return nil
}

func (testCtx *TestContext) theResponseImageShouldMatchTheCleanOriginalOf(original string, tolerance int) error {
	want, ok := testCtx.Originals[original]
	if !ok {
		return fmt.Errorf("no clean original recorded for %s", original)
	}
	img, err := imaging.Decode(bytes.NewReader(testCtx.LastHTTPResponse))
	if err != nil {
		return fmt.Errorf("response is not an image: %w", err)
	}
	return compareImages("response", imaging.Clone(img), want, tolerance)
}

// RegisterServerSteps registers steps for the HTTP API.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the API server is running$`, testCtx.theAPIServerIsRunning)
	sc.Step(`^the API server is running with a limit of (\d+) requests? per minute$`, testCtx.theAPIServerIsRunningWithRateLimit)
	sc.Step(`^I upload "([^"]*)" to "([^"]*)"$`, testCtx.iUploadTo)
	sc.Step(`^I upload "([^"]*)" to "([^"]*)" with:$`, testCtx.iUploadToWith)
	sc.Step(`^I request "(GET|POST|OPTIONS)" "([^"]*)"$`, testCtx.iRequest)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
	sc.Step(`^the response header "([^"]*)" should be set$`, testCtx.theResponseHeaderShouldBeSet)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseJSONFieldShouldBe)
	sc.Step(`^the response image should match the clean original of "([^"]*)" within (\d+)$`,
		testCtx.theResponseImageShouldMatchTheCleanOriginalOf)
}
