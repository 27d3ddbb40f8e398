package vschallan

import (
	"errors"
	"reflect"
	"testing"
)

func TestParse_JSONAndXMLNormalizeToSameDocument(t *testing.T) {
	jsonBody := []byte(`{"status_code": 200, "data": {"vat_invoice_id": "V-1", "s_challan_number": "SC-7"}}`)
	xmlBody := []byte(`<response><status_code>200</status_code><data><vat_invoice_id>V-1</vat_invoice_id><s_challan_number>SC-7</s_challan_number></data></response>`)

	fromJSON, err := Parse(jsonBody)
	if err != nil {
		t.Fatalf("Parse(json) error: %v", err)
	}
	fromXML, err := Parse(xmlBody)
	if err != nil {
		t.Fatalf("Parse(xml) error: %v", err)
	}
	if fromJSON.Format != FormatJSON || fromXML.Format != FormatXML {
		t.Fatalf("formats: got %s and %s", fromJSON.Format, fromXML.Format)
	}
	if !reflect.DeepEqual(fromJSON.Document, fromXML.Document) {
		t.Fatalf("documents differ:\njson=%v\nxml=%v", fromJSON.Document, fromXML.Document)
	}
	if got := fromXML.Document.Map("data").String("s_challan_number"); got != "SC-7" {
		t.Fatalf("expected SC-7, got %q", got)
	}
}

func TestParse_ObjectNodeIsHoisted(t *testing.T) {
	body := []byte(`<ObjectNode><access_token>abc</access_token><company_id>12</company_id></ObjectNode>`)
	parsed, err := Parse(body)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if parsed.Document.String("access_token") != "abc" || parsed.Document.String("company_id") != "12" {
		t.Fatalf("unexpected document %v", parsed.Document)
	}

	wrapped := []byte(`<root><ObjectNode><access_token>abc</access_token></ObjectNode></root>`)
	parsed, err = Parse(wrapped)
	if err != nil {
		t.Fatalf("Parse(wrapped) error: %v", err)
	}
	if parsed.Document.String("access_token") != "abc" {
		t.Fatalf("expected hoisted token, got %v", parsed.Document)
	}
}

func TestParse_UnknownFormat(t *testing.T) {
	cases := [][]byte{
		nil,
		[]byte("   "),
		[]byte("plain text"),
		[]byte("<unclosed"),
	}
	for _, body := range cases {
		_, err := Parse(body)
		if !errors.Is(err, ErrUnknownFormat) {
			t.Fatalf("Parse(%q) expected ErrUnknownFormat, got %v", body, err)
		}
	}
}

func TestParse_BareArrayIsWrappedUnderData(t *testing.T) {
	parsed, err := Parse([]byte(`[{"id": 1}, {"id": 2}]`))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	items := parsed.Document.Documents("data")
	if len(items) != 2 || items[1].String("id") != "2" {
		t.Fatalf("unexpected items %v", items)
	}
}

func TestDocument_ListAcceptsSingleElement(t *testing.T) {
	// XML with one repeated element has no sequence.
	parsed, err := Parse([]byte(`<r><zone><id>1</id><name>Dhaka</name></zone></r>`))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	zones := parsed.Document.Documents("zone")
	if len(zones) != 1 || zones[0].String("name") != "Dhaka" {
		t.Fatalf("expected one zone, got %v", zones)
	}
}

func TestDocument_FindStringSearchesNested(t *testing.T) {
	parsed, err := Parse([]byte(`{"data": {"items": [{"x": ""}, {"access_token": "deep"}]}}`))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if got := parsed.Document.FindString("access_token"); got != "deep" {
		t.Fatalf("expected deep, got %q", got)
	}
	if got := parsed.Document.FindString("missing"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
