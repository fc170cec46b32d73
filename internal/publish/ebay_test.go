package publish

import (
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPictureName(t *testing.T) {
	tests := map[string]string{
		"C240509_0001_J1_front.jpg": "C240509_0001_J1_front.jpg",
		"C240509_0001_表 1.png":      "C240509_0001___1.png",
		"  ":                        "CD_Image_From_App",
	}
	for in, expected := range tests {
		if got := PictureName(in); got != expected {
			t.Errorf("PictureName(%q) = %q, want %q", in, got, expected)
		}
	}
}

func TestEbayPublish(t *testing.T) {
	var (
		gotXML   string
		gotImage []byte
		gotCall  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCall = r.Header.Get("X-EBAY-API-CALL-NAME")
		_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil {
			t.Errorf("Bad content type: %v", err)
			return
		}
		mr := multipart.NewReader(r.Body, params["boundary"])
		for {
			p, err := mr.NextPart()
			if err != nil {
				break
			}
			data, _ := io.ReadAll(p)
			if p.FormName() == "XML Payload" {
				gotXML = string(data)
			} else {
				gotImage = data
			}
		}
		io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>
<UploadSiteHostedPicturesResponse xmlns="urn:ebay:apis:eBLBaseComponents">
  <Ack>Success</Ack>
  <SiteHostedPictureDetails>
    <BaseURL>https://i.ebayimg.com/base.jpg</BaseURL>
    <FullURL>https://i.ebayimg.com/full.jpg</FullURL>
  </SiteHostedPictureDetails>
</UploadSiteHostedPicturesResponse>`)
	}))
	defer srv.Close()

	e := &Ebay{URL: srv.URL, Token: "tok", SiteID: "0", HTTPClient: srv.Client()}
	url, err := e.Publish(context.Background(), pngWithTransparency(t), "C240509_0001_J1.png")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if url != "https://i.ebayimg.com/full.jpg" {
		t.Errorf("Expected FullURL, got %s", url)
	}
	if gotCall != "UploadSiteHostedPictures" {
		t.Errorf("Unexpected call name %s", gotCall)
	}
	for _, want := range []string{"<eBayAuthToken>tok</eBayAuthToken>", "<PictureName>C240509_0001_J1.png</PictureName>", "<PictureSystemVersion>2</PictureSystemVersion>"} {
		if !strings.Contains(gotXML, want) {
			t.Errorf("Expected XML to contain %s, got %s", want, gotXML)
		}
	}
	if f, ok := Sniff(gotImage); !ok || f.Name != "jpeg" {
		t.Error("Expected uploaded image to be JPEG")
	}
}

func TestEbayPublishFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<UploadSiteHostedPicturesResponse xmlns="urn:ebay:apis:eBLBaseComponents">
  <Ack>Failure</Ack>
  <Errors><ShortMessage>Bad token</ShortMessage><LongMessage>Auth token is invalid.</LongMessage></Errors>
</UploadSiteHostedPicturesResponse>`)
	}))
	defer srv.Close()

	e := &Ebay{URL: srv.URL, Token: "bad", HTTPClient: srv.Client()}
	_, err := e.Publish(context.Background(), jpegBytes(t), "x.jpg")
	if err == nil || !strings.Contains(err.Error(), "Auth token is invalid.") {
		t.Errorf("Expected eBay error message, got %v", err)
	}
}

func TestEbayRejectsHTMLBeforeUpload(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	e := &Ebay{URL: srv.URL, Token: "tok", HTTPClient: srv.Client()}
	if _, err := e.Publish(context.Background(), []byte("<html><body>login</body></html>"), "x"); err == nil {
		t.Error("Expected an error")
	}
	if called {
		t.Error("HTML payload must not be uploaded")
	}
}

func TestNewEbayFromEnv(t *testing.T) {
	t.Setenv("EBAY_AUTH_TOKEN", "")
	if _, err := NewEbayFromEnv(); err != ErrMissingToken {
		t.Errorf("Expected ErrMissingToken, got %v", err)
	}

	t.Setenv("EBAY_AUTH_TOKEN", "tok")
	t.Setenv("EBAY_SANDBOX", "true")
	e, err := NewEbayFromEnv()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if e.URL != SandboxURL || e.SiteID != "0" {
		t.Errorf("Unexpected config %+v", e)
	}
}
