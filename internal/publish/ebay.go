// Package publish re-hosts item photos on the marketplace picture service.
package publish

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"regexp"
	"strings"
	"time"
)

const (
	ProductionURL = "https://api.ebay.com/ws/api.dll"
	SandboxURL    = "https://api.sandbox.ebay.com/ws/api.dll"

	callName           = "UploadSiteHostedPictures"
	compatibilityLevel = "1271"
	pictureSystem      = 2
	defaultPictureName = "CD_Image_From_App"
)

var ErrMissingToken = errors.New("EBAY_AUTH_TOKEN environment variable not set")

var unsafeName = regexp.MustCompile(`[^\w.-]`)

type Ebay struct {
	URL        string
	Token      string
	AppID      string
	DevID      string
	CertID     string
	SiteID     string
	HTTPClient *http.Client
}

// NewEbayFromEnv configures the uploader from EBAY_* environment variables.
func NewEbayFromEnv() (*Ebay, error) {
	token := os.Getenv("EBAY_AUTH_TOKEN")
	if token == "" {
		return nil, ErrMissingToken
	}

	url := ProductionURL
	if os.Getenv("EBAY_SANDBOX") == "true" {
		url = SandboxURL
	}
	if u := os.Getenv("EBAY_TRADING_URL"); u != "" {
		url = u
	}

	siteID := os.Getenv("EBAY_SITE_ID")
	if siteID == "" {
		siteID = "0"
	}

	return &Ebay{
		URL:    url,
		Token:  token,
		AppID:  os.Getenv("EBAY_APP_ID"),
		DevID:  os.Getenv("EBAY_DEV_ID"),
		CertID: os.Getenv("EBAY_CERT_ID"),
		SiteID: siteID,
		HTTPClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}, nil
}

type uploadRequest struct {
	XMLName              xml.Name `xml:"urn:ebay:apis:eBLBaseComponents UploadSiteHostedPicturesRequest"`
	Token                string   `xml:"RequesterCredentials>eBayAuthToken"`
	PictureName          string   `xml:"PictureName"`
	PictureSystemVersion int      `xml:"PictureSystemVersion"`
}

type uploadResponse struct {
	Ack    string `xml:"Ack"`
	Errors []struct {
		ShortMessage string `xml:"ShortMessage"`
		LongMessage  string `xml:"LongMessage"`
		SeverityCode string `xml:"SeverityCode"`
	} `xml:"Errors"`
	Details struct {
		FullURL string `xml:"FullURL"`
		BaseURL string `xml:"BaseURL"`
	} `xml:"SiteHostedPictureDetails"`
}

// PictureName turns a file name into an accepted picture name.
func PictureName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return defaultPictureName
	}
	return unsafeName.ReplaceAllString(name, "_")
}

// Publish normalizes an image to JPEG, uploads it and returns its hosted URL.
func (e *Ebay) Publish(ctx context.Context, image []byte, name string) (string, error) {
	jpegData, err := NormalizeJPEG(image)
	if err != nil {
		return "", err
	}
	pictureName := PictureName(name)

	body, contentType, err := e.buildRequest(pictureName, jpegData)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.URL, body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-EBAY-API-CALL-NAME", callName)
	req.Header.Set("X-EBAY-API-COMPATIBILITY-LEVEL", compatibilityLevel)
	req.Header.Set("X-EBAY-API-SITEID", e.SiteID)
	if e.AppID != "" {
		req.Header.Set("X-EBAY-API-APP-NAME", e.AppID)
		req.Header.Set("X-EBAY-API-DEV-NAME", e.DevID)
		req.Header.Set("X-EBAY-API-CERT-NAME", e.CertID)
	}

	client := e.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload picture: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read upload response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("picture upload failed with status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed uploadResponse
	if err := xml.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse upload response: %w", err)
	}
	if parsed.Ack == "Failure" {
		msg := "unknown error"
		if len(parsed.Errors) > 0 {
			msg = parsed.Errors[0].LongMessage
			if msg == "" {
				msg = parsed.Errors[0].ShortMessage
			}
		}
		return "", fmt.Errorf("picture upload rejected: %s", msg)
	}

	url := parsed.Details.FullURL
	if url == "" {
		url = parsed.Details.BaseURL
	}
	if url == "" {
		return "", errors.New("picture upload response has no URL")
	}

	slog.Debug("Picture uploaded", "name", pictureName, "bytes", len(jpegData), "ack", parsed.Ack)
	return url, nil
}

func (e *Ebay) buildRequest(pictureName string, jpegData []byte) (io.Reader, string, error) {
	payload, err := xml.Marshal(uploadRequest{
		Token:                e.Token,
		PictureName:          pictureName,
		PictureSystemVersion: pictureSystem,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal upload request: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	xmlHeader := textproto.MIMEHeader{}
	xmlHeader.Set("Content-Disposition", `form-data; name="XML Payload"`)
	xmlHeader.Set("Content-Type", "text/xml;charset=utf-8")
	part, err := mw.CreatePart(xmlHeader)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create xml part: %w", err)
	}
	if _, err := part.Write(append([]byte(xml.Header), payload...)); err != nil {
		return nil, "", fmt.Errorf("failed to write xml part: %w", err)
	}

	imgHeader := textproto.MIMEHeader{}
	imgHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s.jpg"`, pictureName))
	imgHeader.Set("Content-Type", "image/jpeg")
	imgHeader.Set("Content-Transfer-Encoding", "binary")
	part, err = mw.CreatePart(imgHeader)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create image part: %w", err)
	}
	if _, err := part.Write(jpegData); err != nil {
		return nil, "", fmt.Errorf("failed to write image part: %w", err)
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish multipart body: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}
