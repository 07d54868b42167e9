package responseformat

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

type payload struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

func TestRequested(t *testing.T) {
	tests := []struct {
		name   string
		target string
		accept string
		want   string
	}{
		{"default", "/x", "", FormatJSON},
		{"query msgpack", "/x?format=msgpack", "", FormatMsgPack},
		{"query csv", "/x?format=CSV", "", FormatCSV},
		{"query wins over accept", "/x?format=json", ContentTypeMsgPack, FormatJSON},
		{"accept msgpack", "/x", ContentTypeMsgPack, FormatMsgPack},
		{"accept csv", "/x", "text/csv", FormatCSV},
		{"unknown query falls back to accept", "/x?format=xml", "text/csv", FormatCSV},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			assert.Equal(t, tt.want, Requested(req))
		})
	}
}

func TestWriteResponseJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)

	require.NoError(t, NewFormatter().WriteResponse(rec, req, http.StatusCreated, payload{"wel", 1.5}))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, ContentTypeJSON, rec.Header().Get("Content-Type"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.JSONEq(t, `{"name":"wel","value":1.5}`, rec.Body.String())
}

func TestWriteResponseMsgPack(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x?format=msgpack", nil)

	require.NoError(t, NewFormatter().WriteResponse(rec, req, http.StatusOK, payload{"wel", 1.5}))
	assert.Equal(t, ContentTypeMsgPack, rec.Header().Get("Content-Type"))

	var got map[string]any
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "wel", got["name"])
	assert.Equal(t, 1.5, got["value"])
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/x", nil)

	require.NoError(t, NewFormatter().WriteError(rec, req, http.StatusBadRequest, errors.New("bad panel")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "bad panel", body.Error)
}

func TestWriteCSV(t *testing.T) {
	rec := httptest.NewRecorder()
	err := NewFormatter().WriteCSV(rec, "forecast.csv", func(w io.Writer) error {
		_, err := io.WriteString(w, "HR,Wel\n12,236.4\n")
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ContentTypeCSV, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "forecast.csv")
	assert.Equal(t, "HR,Wel\n12,236.4\n", rec.Body.String())
}

func TestWriteCSVEncodeFailureWritesNothing(t *testing.T) {
	rec := httptest.NewRecorder()
	err := NewFormatter().WriteCSV(rec, "", func(w io.Writer) error {
		io.WriteString(w, "partial")
		return errors.New("boom")
	})
	assert.Error(t, err)
	assert.Empty(t, rec.Body.String())
	assert.Empty(t, rec.Header().Get("Content-Type"))
}
