package crawler

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/ysmood/gson"
)

// Image is an img element on the page
type Image struct {
	el *rod.Element
}

// Style returns the style attribute, or "" when absent
func (i *Image) Style(ctx context.Context) (string, error) {
	return i.attribute(ctx, "style")
}

// Source returns the src attribute, or "" while the page has not set it
func (i *Image) Source(ctx context.Context) (string, error) {
	return i.attribute(ctx, "src")
}

func (i *Image) attribute(ctx context.Context, name string) (string, error) {
	v, err := i.el.Context(ctx).Attribute(name)
	if err != nil {
		return "", fmt.Errorf("browser: read %s: %w", name, err)
	}
	if v == nil {
		return "", nil
	}
	return *v, nil
}

// StatusError is a failed in-page fetch
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// StatusCode returns the HTTP status, 0 for network errors
func (e *StatusError) StatusCode() int {
	return e.Status
}

// retrieveJS resolves to {status, data} with base64 data on success,
// or {status, error} otherwise.
const retrieveJS = `async (uri) => {
	try {
		const resp = await fetch(uri);
		if (!resp.ok) return { status: resp.status };
		const blob = await resp.blob();
		const url = await new Promise((resolve, reject) => {
			const reader = new FileReader();
			reader.onload = () => resolve(reader.result);
			reader.onerror = () => reject(reader.error);
			reader.readAsDataURL(blob);
		});
		return { status: resp.status, data: url.slice(url.indexOf(',') + 1) };
	} catch (e) {
		return { status: 0, error: String(e) };
	}
}`

func decodePayload(v gson.JSON) ([]byte, error) {
	data, ok := v.Gets("data")
	if !ok {
		return nil, &StatusError{Status: v.Get("status").Int(), Message: v.Get("error").Str()}
	}

	raw, err := base64.StdEncoding.DecodeString(data.Str())
	if err != nil {
		return nil, fmt.Errorf("browser: decode payload: %w", err)
	}
	return raw, nil
}
