package dom

import (
	"net/url"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/pagepick/internal/protocol"
)

const cardsPage = `<!DOCTYPE html><html><head><title>Cards</title></head><body>` +
	`<div class="card"><h2>One</h2></div>` +
	`<div class="card"><h2>Two</h2></div>` +
	`<h2 id="headline">Hello <b>there</b></h2>` +
	`<img alt="Logo" src="/img.png">` +
	`</body></html>`

func mustDoc(t *testing.T, s string) *goquery.Document {
	t.Helper()
	doc, err := ParseString(s)
	require.NoError(t, err)
	return doc
}

func mustURL(t *testing.T, s string) *url.URL {
	t.Helper()
	u, err := url.Parse(s)
	require.NoError(t, err)
	return u
}

func TestSelectorStructural(t *testing.T) {
	doc := mustDoc(t, cardsPage)
	h2 := doc.Find("h2").Eq(1)
	require.Equal(t, "Two", h2.Text())

	assert.Equal(t, "div.card:nth-child(2) > h2", Selector(h2.Get(0)))
	assert.Equal(t, "div.card:nth-child(1) > h2", Selector(doc.Find("h2").Get(0)))
	assert.Equal(t, "img:nth-child(4)", Selector(doc.Find("img").Get(0)))
}

func TestSelectorIDCollapses(t *testing.T) {
	doc := mustDoc(t, cardsPage)
	assert.Equal(t, "#headline", Selector(doc.Find("h2#headline").Get(0)))
}

func TestSelectorAncestorIDNotCollapsed(t *testing.T) {
	doc := mustDoc(t, `<html><body><section id="hero"><p>a</p><p>b</p></section></body></html>`)
	assert.Equal(t, "section > p:nth-child(2)", Selector(doc.Find("p").Get(1)))
}

func TestSelectorClasses(t *testing.T) {
	doc := mustDoc(t, `<html><body><div class="a  b ">x</div></body></html>`)
	assert.Equal(t, "div.a.b", Selector(doc.Find("div").Get(0)))
}

func TestSelectorNil(t *testing.T) {
	assert.Equal(t, "", Selector(nil))
}

func TestContentImage(t *testing.T) {
	doc := mustDoc(t, cardsPage)
	c := Content(doc.Find("img"), mustURL(t, "https://example.com/landing/page"))

	assert.Equal(t, protocol.ContentImage, c.Type)
	assert.Equal(t, "https://example.com/img.png", c.Src)
	assert.Equal(t, "Logo", c.Alt)
	assert.Equal(t, "Logo", c.Text)
}

func TestContentText(t *testing.T) {
	doc := mustDoc(t, cardsPage)
	c := Content(doc.Find("#headline"), nil)

	assert.Equal(t, protocol.ContentText, c.Type)
	assert.Equal(t, "Hello there", c.Text)
	assert.Equal(t, "Hello <b>there</b>", c.HTML)
}

func TestDescribe(t *testing.T) {
	doc := mustDoc(t, cardsPage)
	data := Describe(doc.Find("#headline"), nil)

	assert.Equal(t, "#headline", data.Selector)
	assert.Equal(t, "h2", data.TagName)
	assert.Equal(t, "headline", data.ID)
	assert.Empty(t, data.ClassName)

	node := DescribeNode(doc.Find("div.card").Get(0), nil)
	assert.Equal(t, "div", node.TagName)
	assert.Equal(t, "card", node.ClassName)
	assert.Equal(t, "div.card:nth-child(1)", node.Selector)
}

func TestResolveRoundTrip(t *testing.T) {
	doc := mustDoc(t, cardsPage)
	doc.Find("h2, img").Each(func(_ int, s *goquery.Selection) {
		sel := Selector(s.Get(0))
		got, err := Resolve(doc, sel)
		require.NoError(t, err, sel)
		assert.Same(t, s.Get(0), got.Get(0), sel)
	})
}

func TestResolveLiteralID(t *testing.T) {
	doc := mustDoc(t, `<html><body><p id="x.y">dotted</p></body></html>`)
	sel, err := Resolve(doc, "#x.y")
	require.NoError(t, err)
	assert.Equal(t, "dotted", sel.Text())
}

func TestResolveErrors(t *testing.T) {
	doc := mustDoc(t, cardsPage)

	_, err := Resolve(doc, "")
	assert.ErrorIs(t, err, ErrNoMatch)

	_, err = Resolve(doc, "#missing")
	assert.ErrorIs(t, err, ErrNoMatch)

	_, err = Resolve(doc, "section > p")
	assert.ErrorIs(t, err, ErrNoMatch)

	_, err = Resolve(doc, "div[")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoMatch)
}

func TestApply(t *testing.T) {
	out, report, err := Apply(cardsPage, []Replacement{
		{Selector: "div.card:nth-child(2) > h2", Text: "Fresh <copy>"},
		{Selector: "#headline", HTML: "<em>Hi</em>"},
		{Selector: "img:nth-child(4)", Text: "Brand"},
		{Selector: "#nope", Text: "x"},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Applied)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Results, 4)
	assert.Equal(t, "Two", report.Results[0].Before)
	assert.Equal(t, "Hello there", report.Results[1].Before)
	assert.Equal(t, "/img.png", report.Results[2].Before)
	assert.False(t, report.Results[3].Applied)
	assert.Contains(t, report.Results[3].Error, "no element")

	doc := mustDoc(t, out)
	assert.Equal(t, "One", doc.Find("div.card h2").Eq(0).Text())
	assert.Equal(t, "Fresh <copy>", doc.Find("div.card h2").Eq(1).Text())
	assert.Contains(t, out, "Fresh &lt;copy&gt;")
	inner, _ := doc.Find("#headline").Html()
	assert.Equal(t, "<em>Hi</em>", inner)
	alt, _ := doc.Find("img").Attr("alt")
	assert.Equal(t, "Brand", alt)
}

func TestApplyImageNeedsValue(t *testing.T) {
	_, report, err := Apply(cardsPage, []Replacement{{Selector: "img:nth-child(4)"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Applied)
	assert.NotEmpty(t, report.Results[0].Error)
}

func TestInspect(t *testing.T) {
	doc := mustDoc(t, cardsPage)
	base := mustURL(t, "https://example.com/")

	all := Inspect(doc, base, InspectOptions{})
	require.Len(t, all, 4)
	assert.Equal(t, "div.card:nth-child(1) > h2", all[0].Selector)
	assert.Equal(t, "#headline", all[2].Selector)
	assert.Equal(t, "https://example.com/img.png", all[3].Content.Src)

	limited := Inspect(doc, base, InspectOptions{Limit: 2})
	assert.Len(t, limited, 2)

	short := Inspect(doc, base, InspectOptions{Selector: "#headline", MaxText: 5})
	require.Len(t, short, 1)
	assert.Equal(t, "Hello...", short[0].Content.Text)
	assert.Empty(t, short[0].Content.HTML)
}

func TestInspectSkipsEmptyAndNestedSpans(t *testing.T) {
	doc := mustDoc(t, `<html><body><p>Hi <span>there</span></p><span>alone</span><h3> </h3></body></html>`)
	got := Inspect(doc, nil, InspectOptions{})
	require.Len(t, got, 2)
	assert.Equal(t, "p", got[0].TagName)
	assert.Equal(t, "span", got[1].TagName)
}
