package transcript

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	lang "thirdcoast.systems/haul/pkg/utils/language"
)

func TestFetch_SendsURLAndLanguage(t *testing.T) {
	var gotURL, gotLang, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transcript", r.URL.Path)
		gotURL = r.URL.Query().Get("url")
		gotLang = r.URL.Query().Get("lang")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"text":"this serum","offset":0,"duration":1.2},{"text":"changed my skin","offset":1.2,"duration":2}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "secret", WithDefaultLanguage(lang.Tag(language.English)))
	text, err := c.Fetch(context.Background(), Request{
		VideoURL: "https://tiktok.com/@a/video/1",
		Language: lang.Tag(language.BrazilianPortuguese),
	})
	require.NoError(t, err)
	require.Equal(t, "this serum changed my skin", text)
	require.Equal(t, "https://tiktok.com/@a/video/1", gotURL)
	require.Equal(t, "pt", gotLang)
	require.Equal(t, "Bearer secret", gotAuth)
}

func TestFetch_DefaultLanguage(t *testing.T) {
	var gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLang = r.URL.Query().Get("lang")
		_, _ = w.Write([]byte(`{"transcript":"hello"}`))
	}))
	defer srv.Close()

	text, err := NewClient(srv.URL, "", WithDefaultLanguage(lang.Tag(language.English))).
		Fetch(context.Background(), Request{VideoURL: "https://video/1"})
	require.NoError(t, err)
	require.Equal(t, "hello", text)
	require.Equal(t, "en", gotLang)
}

func TestFetch_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "not found",
			status: http.StatusNotFound,
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, ErrNoTranscript)
			},
		},
		{
			name:   "upstream failure",
			status: http.StatusBadGateway,
			body:   "captions backend down\n",
			check: func(t *testing.T, err error) {
				var se *StatusError
				require.True(t, errors.As(err, &se))
				require.Equal(t, http.StatusBadGateway, se.StatusCode)
				require.Equal(t, "captions backend down", se.Body)
			},
		},
		{
			name:   "empty transcript",
			status: http.StatusOK,
			body:   `{"segments":[]}`,
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, ErrNoTranscript)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, "").Fetch(context.Background(), Request{VideoURL: "https://video/1"})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestFetch_RequiresURL(t *testing.T) {
	_, err := NewClient("http://127.0.0.1:1", "").Fetch(context.Background(), Request{})
	require.Error(t, err)
}
