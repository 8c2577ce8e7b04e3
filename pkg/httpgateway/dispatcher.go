package httpgateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/url"
)

// httpDispatcher is the real-transport Dispatcher backed by net/http.
type httpDispatcher struct {
	client *http.Client
}

func (d *httpDispatcher) Dispatch(
	ctx context.Context, method, fullURL string, query, headers []Pair, body []byte,
) (int, []byte, error) {
	u, err := url.Parse(fullURL)
	if err != nil {
		return 0, nil, err
	}
	if len(query) > 0 {
		q := u.Query()
		for _, p := range query {
			q.Add(p.Name, p.Value)
		}
		u.RawQuery = q.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return 0, nil, err
	}
	for _, h := range headers {
		req.Header.Set(h.Name, h.Value)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, respBody, nil
}

func basicAuth(user, pass string) string {
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
}
