package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skwatch/internal/config"
)

func solverConfig(baseURL string) config.CaptchaConfig {
	cfg := config.NewDefaultCaptchaConfig()
	cfg.APIKey = "test-key"
	cfg.APIBaseURL = baseURL
	cfg.PollIntervalSecs = 1
	cfg.MaxPolls = 3
	return cfg
}

func TestTwoCaptchaSolver_NilWithoutAPIKey(t *testing.T) {
	cfg := config.NewDefaultCaptchaConfig()
	assert.Nil(t, NewTwoCaptchaSolver(cfg, zerolog.Nop()))
}

func TestTwoCaptchaSolver_SubmitAndPoll(t *testing.T) {
	var polls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/in.php":
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "test-key", r.PostFormValue("key"))
			assert.Equal(t, "userrecaptcha", r.PostFormValue("method"))
			assert.Equal(t, "site-key-1", r.PostFormValue("googlekey"))
			w.Write([]byte(`{"status":1,"request":"task-42"}`))
		case "/res.php":
			assert.Equal(t, "task-42", r.URL.Query().Get("id"))
			if atomic.AddInt32(&polls, 1) < 2 {
				w.Write([]byte(`{"status":0,"request":"CAPCHA_NOT_READY"}`))
				return
			}
			w.Write([]byte(`{"status":1,"request":"solved-token"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	solver := NewTwoCaptchaSolver(solverConfig(server.URL), zerolog.Nop())
	require.NotNil(t, solver)

	token, err := solver.Solve(context.Background(), "site-key-1", "https://portal.example/login")
	require.NoError(t, err)
	assert.Equal(t, "solved-token", token)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&polls), int32(2))
}

func TestTwoCaptchaSolver_RejectedTask(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":0,"request":"ERROR_WRONG_USER_KEY"}`))
	}))
	defer server.Close()

	solver := NewTwoCaptchaSolver(solverConfig(server.URL), zerolog.Nop())
	_, err := solver.Solve(context.Background(), "site-key-1", "https://portal.example/login")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERROR_WRONG_USER_KEY")
}

func TestTwoCaptchaSolver_SolverErrorDuringPoll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/in.php" {
			w.Write([]byte(`{"status":1,"request":"task-1"}`))
			return
		}
		w.Write([]byte(`{"status":0,"request":"ERROR_CAPTCHA_UNSOLVABLE"}`))
	}))
	defer server.Close()

	solver := NewTwoCaptchaSolver(solverConfig(server.URL), zerolog.Nop())
	_, err := solver.Solve(context.Background(), "site-key-1", "https://portal.example/login")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERROR_CAPTCHA_UNSOLVABLE")
}
