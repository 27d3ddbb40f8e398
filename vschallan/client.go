package vschallan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"sort"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/invento-software-limited/Smart-Vat-Challan/utils"
)

var tracer = otel.Tracer("github.com/invento-software-limited/Smart-Vat-Challan/vschallan")

type apiRequest struct {
	method  string
	path    string
	query   url.Values
	payload any
	fields  map[string]string
	file    *utils.UploadedFile
}

// Call sends an authenticated JSON request to path under the configured base
// URL and returns the normalized answer. A 401 triggers one forced token
// refresh and one retry.
func (s *Service) Call(ctx context.Context, method, path string, payload any, query url.Values) (Document, error) {
	return s.do(ctx, apiRequest{method: method, path: path, query: query, payload: payload})
}

// Upload posts fields and file as multipart/form-data with the same
// authentication and retry rules as Call.
func (s *Service) Upload(ctx context.Context, path string, fields map[string]string, file *utils.UploadedFile) (Document, error) {
	return s.do(ctx, apiRequest{method: http.MethodPost, path: path, fields: fields, file: file})
}

func (s *Service) do(ctx context.Context, r apiRequest) (Document, error) {
	const op = "Call"
	ctx, span := tracer.Start(ctx, "vschallan "+r.method+" "+r.path, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", r.method),
		attribute.String("vschallan.path", r.path),
	)

	fail := func(err error) (Document, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	token, err := s.GetAccessToken(ctx, false)
	if err != nil {
		return fail(err)
	}

	for attempt := 1; ; attempt++ {
		status, body, err := s.send(ctx, r, token)
		if err != nil {
			return fail(newError(ErrRequest, op, r.path, err))
		}
		span.SetAttributes(attribute.Int("http.status_code", status), attribute.Int("vschallan.attempt", attempt))

		if status == http.StatusUnauthorized && attempt == 1 {
			invoiceNumber, _ := utils.GetInvoiceNumberFromContext(ctx)
			s.logger.WithFields(logrus.Fields{
				"module":         moduleName,
				"func":           op,
				"path":           r.path,
				"invoice_number": invoiceNumber,
			}).Warn("unauthorized, refreshing token and retrying once")
			token, err = s.GetAccessToken(ctx, true)
			if err != nil {
				return fail(err)
			}
			continue
		}
		if status < 200 || status >= 300 {
			return fail(newError(ErrRequest, op, r.path, &HTTPError{StatusCode: status, Body: string(body)}))
		}

		parsed, err := Parse(body)
		if err != nil {
			return fail(newError(ErrUnknownFormat, op, r.path, err))
		}
		span.SetAttributes(attribute.String("vschallan.format", string(parsed.Format)))
		return parsed.Document, nil
	}
}

// send builds a fresh request from r so the body can be replayed after a
// token refresh.
func (s *Service) send(ctx context.Context, r apiRequest, token Token) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	endpoint := s.baseURL + r.path
	if len(r.query) > 0 {
		endpoint = endpoint + "?" + r.query.Encode()
	}

	body, contentType, err := encodeBody(r)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, r.method, endpoint, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Token "+token.AccessToken)
	req.Header.Set("companyID", token.CompanyID)
	req.Header.Set("Accept", "application/json, application/xml")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

func encodeBody(r apiRequest) (io.Reader, string, error) {
	if r.file != nil || len(r.fields) > 0 {
		return encodeMultipart(r.fields, r.file)
	}
	if r.payload == nil {
		if r.method == http.MethodGet {
			return nil, "", nil
		}
		return nil, "application/json", nil
	}
	var raw []byte
	switch p := r.payload.(type) {
	case json.RawMessage:
		raw = p
	case []byte:
		raw = p
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, "", fmt.Errorf("encode payload: %w", err)
		}
		raw = b
	}
	return bytes.NewReader(raw), "application/json", nil
}

func encodeMultipart(fields map[string]string, file *utils.UploadedFile) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.WriteField(k, fields[k]); err != nil {
			return nil, "", err
		}
	}

	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Name))
		if file.ContentType != "" {
			h.Set("Content-Type", file.ContentType)
		}
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(file.Data); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
