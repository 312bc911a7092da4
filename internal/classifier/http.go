package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// catLabel is the label name the remote service uses for cats.
const catLabel = "cat"

// DefaultHTTPTimeout bounds a single classification request.
const DefaultHTTPTimeout = 15 * time.Second

// ErrUnexpectedStatus is returned when the service answers with a non-2xx code.
var ErrUnexpectedStatus = errors.New("unexpected classifier response status")

// Label is one label returned by the remote service.
type Label struct {
	Name       string  `json:"name"`
	Confidence float32 `json:"confidence"`
}

// labelResponse is the body returned by POST {endpoint}/labels.
type labelResponse struct {
	Labels []Label `json:"labels"`
}

// HTTP asks a remote labelling service whether the image contains a cat.
type HTTP struct {
	endpoint string
	client   *http.Client
}

// NewHTTP creates a classifier that posts frames to endpoint.
func NewHTTP(endpoint string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}

	return &HTTP{
		endpoint: strings.TrimRight(endpoint, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// ImageContainsCat implements Classifier.
// The frame is sent as a JPEG form file; labels below the threshold are ignored.
func (c *HTTP) ImageContainsCat(ctx context.Context, img image.Image, confidenceThreshold float32) (bool, error) {
	labels, err := c.Labels(ctx, img, confidenceThreshold)
	if err != nil {
		return false, err
	}

	for _, l := range labels {
		if strings.EqualFold(l.Name, catLabel) && l.Confidence >= confidenceThreshold {
			return true, nil
		}
	}

	return false, nil
}

// Labels returns every label the service found with at least minConfidence.
func (c *HTTP) Labels(ctx context.Context, img image.Image, minConfidence float32) ([]Label, error) {
	var body bytes.Buffer

	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("image", "frame.jpg")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}

	if err = jpeg.Encode(part, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	if err = writer.WriteField("min_confidence", strconv.FormatFloat(float64(minConfidence), 'f', 2, 32)); err != nil {
		return nil, fmt.Errorf("write form field: %w", err)
	}

	if err = writer.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/labels", &body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classify request: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

		return nil, fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result labelResponse
	if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode labels: %w", err)
	}

	filtered := result.Labels[:0]

	for _, l := range result.Labels {
		if l.Confidence >= minConfidence {
			filtered = append(filtered, l)
		}
	}

	return filtered, nil
}
