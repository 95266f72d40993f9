package proxy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/standardbeagle/pagepick/internal/dom"
)

const editFixture = `<html><body>
<h1 id="title">Old title</h1>
<p>Body copy</p>
<img src="/hero.png" alt="Hero">
</body></html>`

func newEditUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone" {
			http.Error(w, "gone", http.StatusGone)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(editFixture))
	}))
	t.Cleanup(upstream.Close)
	return upstream
}

func TestEditPage(t *testing.T) {
	upstream := newEditUpstream(t)
	_, fetcher := newTestHandler(t, nil)

	body, report, err := EditPage(context.Background(), fetcher, upstream.URL+"/page", []dom.Replacement{
		{Selector: "#title", Text: "New title"},
		{Selector: "section", Text: "nothing"},
	}, PrepareOptions{Script: pickerStub})
	if err != nil {
		t.Fatalf("EditPage: %v", err)
	}

	html := string(body)
	if !strings.Contains(html, "New title") || strings.Contains(html, "Old title") {
		t.Errorf("replacement not applied: %s", html)
	}
	if !strings.Contains(html, `src="`+upstream.URL+`/hero.png"`) {
		t.Errorf("image reference not rewritten: %s", html)
	}
	if strings.Count(html, pickerStub) != 1 || !strings.Contains(html, pickerStub+"</body>") {
		t.Errorf("picker must be injected once before </body>: %s", html)
	}
	if report.Applied != 1 || report.Failed != 1 {
		t.Errorf("report = %+v, want 1 applied and 1 failed", report)
	}
}

func TestEditPage_UpstreamFailure(t *testing.T) {
	upstream := newEditUpstream(t)
	_, fetcher := newTestHandler(t, nil)

	_, _, err := EditPage(context.Background(), fetcher, upstream.URL+"/gone", []dom.Replacement{{Selector: "h1", Text: "x"}}, PrepareOptions{})
	if !errors.Is(err, ErrUpstreamStatus) {
		t.Errorf("err = %v, want ErrUpstreamStatus", err)
	}
}

func TestInspectPage(t *testing.T) {
	upstream := newEditUpstream(t)
	_, fetcher := newTestHandler(t, nil)

	page, elements, err := InspectPage(context.Background(), fetcher, upstream.URL+"/page", false, dom.InspectOptions{})
	if err != nil {
		t.Fatalf("InspectPage: %v", err)
	}
	if page.Status != http.StatusOK {
		t.Errorf("status = %d", page.Status)
	}
	if len(elements) != 3 {
		t.Fatalf("got %d elements, want 3: %+v", len(elements), elements)
	}
	if elements[0].Selector != "#title" {
		t.Errorf("first selector = %q, want #title", elements[0].Selector)
	}
	if got := elements[2].Content.Src; got != upstream.URL+"/hero.png" {
		t.Errorf("image src = %q, want absolute", got)
	}
}

const scriptedFixture = `<html><body><script>track()</script><p>first</p><p>second</p></body></html>`

func newScriptedUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(scriptedFixture))
	}))
	t.Cleanup(upstream.Close)
	return upstream
}

func TestEditPage_StripScriptsBeforeApply(t *testing.T) {
	upstream := newScriptedUpstream(t)
	_, fetcher := newTestHandler(t, nil)

	body, report, err := EditPage(context.Background(), fetcher, upstream.URL+"/", []dom.Replacement{
		{Selector: "p:nth-child(2)", Text: "REPLACED"},
	}, PrepareOptions{StripScripts: true})
	if err != nil {
		t.Fatalf("EditPage: %v", err)
	}

	html := string(body)
	if len(report.Results) != 1 || report.Results[0].Before != "second" {
		t.Errorf("results = %+v, want the second paragraph replaced", report.Results)
	}
	if !strings.Contains(html, "<p>first</p>") || !strings.Contains(html, "REPLACED") {
		t.Errorf("wrong element edited: %s", html)
	}
	if strings.Contains(html, "track()") {
		t.Errorf("script not stripped: %s", html)
	}
}

func TestInspectPage_StripScripts(t *testing.T) {
	upstream := newScriptedUpstream(t)
	_, fetcher := newTestHandler(t, nil)

	_, elements, err := InspectPage(context.Background(), fetcher, upstream.URL+"/", true, dom.InspectOptions{Selector: "p"})
	if err != nil {
		t.Fatalf("InspectPage: %v", err)
	}
	if len(elements) != 2 {
		t.Fatalf("got %d elements, want 2", len(elements))
	}
	if got := elements[1].Selector; got != "p:nth-child(2)" {
		t.Errorf("second selector = %q, want p:nth-child(2)", got)
	}
}
