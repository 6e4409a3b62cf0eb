package transfer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

// defaultContentType is applied to raw-body requests whose caller headers
// don't name a content type themselves.
const defaultContentType = "application/x-www-form-urlencoded"

// Descriptor describes one transfer before submission. A descriptor carries
// at most one payload: either Body (raw bytes, sent as a single part) or
// Fields (encoded as multipart/form-data). A nil Body and empty Fields
// describe a request without a payload.
type Descriptor struct {
	// Method is the HTTP method. Empty selects GET for payload-less
	// requests and POST otherwise.
	Method string

	// URL is the absolute request URL. Required.
	URL string

	// Header holds single-valued request headers. A caller-supplied
	// Content-Type suppresses the raw-body default; multipart requests
	// always use the encoder's boundary type.
	Header map[string]string

	// Body is the raw request payload. Non-nil means a payload is present,
	// even when empty.
	Body []byte

	// Fields holds multipart form fields, encoded in order.
	Fields []FormField

	// Sink, when set, receives response body chunks as they arrive instead
	// of the accumulator buffering them.
	Sink io.Writer
}

// FormField is a single multipart form entry: a plain name/value pair, or a
// file upload when File is set.
type FormField struct {
	Name  string
	Value string
	File  *FileUpload
}

// FileUpload carries a file field's filename and contents.
type FileUpload struct {
	Filename string
	Data     []byte
}

// Validate reports whether the descriptor can be materialized into a
// request. All violations are caller mistakes, detected before any
// transfer work starts.
func (d *Descriptor) Validate() error {
	if d.URL == "" {
		return ErrMissingURL
	}
	if d.Body != nil && len(d.Fields) > 0 {
		return fmt.Errorf("%w: %w", ErrMalformedBody, ErrBodyConflict)
	}
	for _, f := range d.Fields {
		if f.Name == "" {
			return fmt.Errorf("%w: %w", ErrMalformedBody, ErrMissingFieldName)
		}
		if f.File != nil {
			if f.Value != "" {
				return fmt.Errorf("%w: field %q: %w", ErrMalformedBody, f.Name, ErrAmbiguousField)
			}
			if f.File.Filename == "" {
				return fmt.Errorf("%w: field %q: %w", ErrMalformedBody, f.Name, ErrMissingFilename)
			}
		}
	}
	return nil
}

// HTTPRequest validates the descriptor and materializes it into an
// *http.Request bound to ctx.
func (d *Descriptor) HTTPRequest(ctx context.Context) (*http.Request, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	var (
		body        io.Reader
		contentType string
	)
	switch {
	case len(d.Fields) > 0:
		buf, ct, err := encodeMultipart(d.Fields)
		if err != nil {
			return nil, fmt.Errorf("encoding multipart body: %w", err)
		}
		body, contentType = buf, ct
	case d.Body != nil:
		body = bytes.NewReader(d.Body)
		if !d.hasContentType() {
			contentType = defaultContentType
		}
	}

	req, err := http.NewRequestWithContext(ctx, d.method(), d.URL, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	for k, v := range d.Header {
		req.Header.Set(k, v)
	}
	if contentType != "" {
		// Set after the caller's headers: the multipart boundary type must
		// survive, and the raw-body default only applies when hasContentType
		// already reported no caller value.
		req.Header.Set("Content-Type", contentType)
	}

	return req, nil
}

func (d *Descriptor) method() string {
	if d.Method != "" {
		return d.Method
	}
	if d.Body != nil || len(d.Fields) > 0 {
		return http.MethodPost
	}
	return http.MethodGet
}

func (d *Descriptor) hasContentType() bool {
	for k := range d.Header {
		if strings.EqualFold(k, "Content-Type") {
			return true
		}
	}
	return false
}

func encodeMultipart(fields []FormField) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range fields {
		if f.File == nil {
			if err := w.WriteField(f.Name, f.Value); err != nil {
				return nil, "", fmt.Errorf("writing field %q: %w", f.Name, err)
			}
			continue
		}
		fw, err := w.CreateFormFile(f.Name, f.File.Filename)
		if err != nil {
			return nil, "", fmt.Errorf("creating file field %q: %w", f.Name, err)
		}
		if _, err := fw.Write(f.File.Data); err != nil {
			return nil, "", fmt.Errorf("writing file field %q: %w", f.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart writer: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
