package scraper

import (
	"context"
	"net/url"
	"testing"

	"recorder-scraper/services/recorder"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const detailPage = `<html><body>
<fieldset>
	<legend><span>Viewing Document</span></legend>
	<table>
		<tr><th><label>Document Number:</label></th><td>2012345678</td></tr>
		<tr><th><label>Date Executed:</label></th><td>01/15/2020</td></tr>
		<tr><th><label>Date Recorded:</label></th><td>02/20/2020</td></tr>
		<tr><th><label># of Pages:</label></th><td>4</td></tr>
		<tr><th><label>Address:</label></th><td>123 W MAIN ST</td></tr>
		<tr><th><label>Document Type:</label></th><td>WARRANTY DEED</td></tr>
		<tr><th><label>Consideration Amount:</label></th><td>$250,000.00</td></tr>
	</table>
</fieldset>
<span class="fs-5">Grantors</span>
<table class="table">
	<thead><tr><th>Name</th><th>Trust #</th></tr></thead>
	<tbody><tr><td><a href="/Search/ByName?x=1">SMITH JOHN</a></td><td></td></tr></tbody>
</table>
<span class="fs-5">Grantees</span>
<table class="table">
	<tbody>
		<tr><td>DOE JANE</td><td>8001</td></tr>
		<tr><td>only one cell</td></tr>
	</tbody>
</table>
<span>Legal Description</span>
<table>
	<tbody>
		<tr><td>17-29-304-002-0000</td><td>LOT 1 IN BLOCK 2</td></tr>
		<tr><td>17-29-304-002-0000</td><td>duplicate token</td></tr>
		<tr><td>SEE ATTACHED</td><td>free text, not a pin</td></tr>
	</tbody>
</table>
<span>Prior Documents</span>
<table>
	<tbody>
		<tr><td>01/01/1999</td><td>99123456</td></tr>
		<tr><td>03/05/2004</td><td>0412398765</td></tr>
	</tbody>
</table>
<a href="/Document/DisplayPdf?id=42">View PDF</a>
</body></html>`

func detailUrl(t *testing.T) *url.URL {
	pageUrl, err := url.Parse("https://crs.example.gov/Document/Detail?id=42")
	require.NoError(t, err)
	return pageUrl
}

func TestExtractDocument(t *testing.T) {
	ctx := context.Background()

	doc, err := ExtractDocument(ctx, []byte(detailPage), "17293040010000", detailUrl(t))
	require.NoError(t, err)

	require.Equal(t, "2012345678", doc.DocNum)
	require.Equal(t, "17293040010000", doc.Pin)
	require.Equal(t, "WARRANTY DEED", doc.DocType)
	require.NotNil(t, doc.DateExecuted)
	require.Equal(t, "2020-01-15", *doc.DateExecuted)
	require.NotNil(t, doc.DateRecorded)
	require.Equal(t, "2020-02-20", *doc.DateRecorded)
	require.NotNil(t, doc.NumPages)
	require.EqualValues(t, 4, *doc.NumPages)
	require.NotNil(t, doc.Address)
	require.Equal(t, "123 W MAIN ST", *doc.Address)
	require.NotNil(t, doc.ConsiderationAmount)
	require.Equal(t, "$250,000.00", *doc.ConsiderationAmount)

	require.Equal(t, []recorder.Entity{
		{Name: "SMITH JOHN", Status: recorder.EntityGrantor},
		{Name: "DOE JANE", Status: recorder.EntityGrantee, TrustNumber: strptr("8001")},
	}, doc.Entities)

	// duplicate and non-pin tokens are dropped
	require.Equal(t, []string{"17293040020000"}, doc.RelatedPins)
	require.Equal(t, []string{"99123456", "0412398765"}, doc.PriorDocs)

	require.NotNil(t, doc.PdfUrl)
	require.Equal(t, "https://crs.example.gov/Document/DisplayPdf?id=42", *doc.PdfUrl)
}

func TestExtractDocumentIsPure(t *testing.T) {
	ctx := context.Background()

	first, err := ExtractDocument(ctx, []byte(detailPage), "17293040010000", detailUrl(t))
	require.NoError(t, err)
	second, err := ExtractDocument(ctx, []byte(detailPage), "17293040010000", detailUrl(t))
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("repeated extraction differs (-first +second):\n%s", diff)
	}
}

func TestExtractDocumentWithoutDocNum(t *testing.T) {
	page := `<html><body>
	<fieldset>
		<legend><span>Viewing Document</span></legend>
		<table>
			<tr><th><label>Document Type:</label></th><td>WARRANTY DEED</td></tr>
		</table>
	</fieldset>
	</body></html>`

	_, err := ExtractDocument(context.Background(), []byte(page), "17293040010000", detailUrl(t))
	require.ErrorIs(t, err, ErrNoDocNum)
}

func TestExtractDocumentDegradesToNull(t *testing.T) {
	page := `<html><body>
	<fieldset>
		<legend><span>Viewing Document</span></legend>
		<table>
			<tr><th><label>Document Number:</label></th><td>2012345678</td></tr>
			<tr><th><label>Date Recorded:</label></th><td>Not Available</td></tr>
			<tr><th><label># of Pages:</label></th><td>n/a</td></tr>
		</table>
	</fieldset>
	</body></html>`

	doc, err := ExtractDocument(context.Background(), []byte(page), "17293040010000", detailUrl(t))
	require.NoError(t, err)
	require.Equal(t, "2012345678", doc.DocNum)
	require.Nil(t, doc.DateRecorded)
	require.Nil(t, doc.DateExecuted)
	require.Nil(t, doc.NumPages)
	require.Nil(t, doc.Address)
	require.Nil(t, doc.PdfUrl)
	require.Empty(t, doc.Entities)
}

func strptr(s string) *string {
	return &s
}
