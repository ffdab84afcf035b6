package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, retries uint) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{APIKey: "test-key", BaseURL: srv.URL, MaxRetries: retries})
}

func TestGenerateContent_SendsKeyAndDecodes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		var req GenerateContentRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Contents, 1)
		assert.Equal(t, "hello", req.Contents[0].Parts[0].Text)

		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"thinking","thought":true},{"text":"hi "},{"text":"there"}]}}]}`))
	}, 0)

	res, err := client.GenerateContent(context.Background(), "gemini-2.5-flash", &GenerateContentRequest{
		Contents: []*Content{NewTextContent(RoleUser, "hello")},
	})
	require.NoError(t, err)
	assert.Equal(t, "hi there", res.Text())
}

func TestGenerateContent_NonRetryableStatus(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad"}`))
	}, 3)

	_, err := client.GenerateContent(context.Background(), "m", &GenerateContentRequest{})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGenerateContent_RetriesServerErrors(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
	}, 2)

	res, err := client.GenerateContent(context.Background(), "m", &GenerateContentRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Text())
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGenerateContent_SingleAttemptByDefault(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}, 0)

	_, err := client.GenerateContent(context.Background(), "m", &GenerateContentRequest{})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGenerateContent_MalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}, 0)

	_, err := client.GenerateContent(context.Background(), "m", &GenerateContentRequest{})
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestGenerateImages_SkipsEmptyPredictions(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/imagen:predict", r.URL.Path)

		var req predictRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "a room", req.Instances[0].Prompt)
		assert.Equal(t, 1, req.Parameters.SampleCount)
		assert.Equal(t, "16:9", req.Parameters.AspectRatio)

		w.Write([]byte(`{"predictions":[{"bytesBase64Encoded":""},{"bytesBase64Encoded":"QUJD","mimeType":"image/png"}]}`))
	}, 0)

	images, err := client.GenerateImages(context.Background(), "imagen", "a room", ImageParameters{AspectRatio: "16:9"})
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "QUJD", images[0].BytesBase64Encoded)
}

func TestResponseHelpers(t *testing.T) {
	res := &GenerateContentResponse{Candidates: []*Candidate{{
		Content: &Content{Parts: []*Part{
			{Text: "here you go"},
			{InlineData: &Blob{MimeType: "image/png", Data: "AAAA"}},
		}},
		GroundingMetadata: &GroundingMetadata{GroundingChunks: []*GroundingChunk{
			{Web: &GroundingSource{Uri: "https://a.com"}},
		}},
	}}}

	blob, ok := res.InlineImage()
	require.True(t, ok)
	assert.Equal(t, "AAAA", blob.Data)
	assert.Len(t, res.GroundingChunks(), 1)

	empty := &GenerateContentResponse{}
	_, ok = empty.InlineImage()
	assert.False(t, ok)
	assert.Empty(t, empty.Text())
	assert.Nil(t, empty.GroundingChunks())
}

func TestChat_KeepsHistory(t *testing.T) {
	var seen [][]*Content
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req GenerateContentRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		seen = append(seen, req.Contents)
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"reply"}]}}]}`))
	}, 0)

	chat := client.NewChat("m", []*Content{NewTextContent(RoleModel, "greeting")})

	reply, err := chat.SendMessage(context.Background(), "first")
	require.NoError(t, err)
	assert.Equal(t, "reply", reply)

	_, err = chat.SendMessage(context.Background(), "second")
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.Len(t, seen[0], 2)
	assert.Len(t, seen[1], 4)
	assert.Equal(t, "second", seen[1][3].Parts[0].Text)
	assert.Len(t, chat.History(), 5)
}

func TestChat_FailureDoesNotRecordTurn(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}, 0)

	chat := client.NewChat("m", nil)
	_, err := chat.SendMessage(context.Background(), "hello")
	require.Error(t, err)
	assert.Empty(t, chat.History())
}
