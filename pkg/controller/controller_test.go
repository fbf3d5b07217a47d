package controller

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shouni/gemini-style-fusion/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTimeout = 2 * time.Second

func await(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(testTimeout):
		t.Fatal("generation did not resolve in time")
	}
}

func readyController(t *testing.T, gen *mockGenerator, opts ...Option) *Controller {
	t.Helper()
	c, err := New(gen, opts...)
	require.NoError(t, err)
	c.Select(subjectImage("s1"))
	c.Select(styleImage("t1"))
	c.SetPrompt("A cat in Van Gogh's style")
	return c
}

func TestNew(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	c, err := New(&mockGenerator{})
	require.NoError(t, err)
	v := c.Snapshot()
	assert.Equal(t, DefaultPrompt, v.Prompt)
	assert.Equal(t, domain.PhaseIdle, v.State.Phase)
	assert.False(t, v.CanSubmit)
}

func TestController_SubmitValidation(t *testing.T) {
	tests := []struct {
		name    string
		subject bool
		style   bool
		prompt  string
	}{
		{"被写体なし", false, true, "prompt"},
		{"スタイルなし", true, false, "prompt"},
		{"プロンプトなし", true, true, ""},
		{"空白だけのプロンプト", true, true, "   \n"},
		{"何もなし", false, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &mockGenerator{}
			c, _ := New(gen)
			if tt.subject {
				c.Select(subjectImage("s"))
			}
			if tt.style {
				c.Select(styleImage("t"))
			}
			c.SetPrompt(tt.prompt)

			done, err := c.Submit(context.Background())

			assert.Nil(t, done)
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, domain.MissingInputMessage, verr.Message)

			v := c.Snapshot()
			assert.Equal(t, domain.PhaseIdle, v.State.Phase, "Loading に遷移してはいけない")
			assert.Equal(t, domain.MissingInputMessage, v.Notice)
			assert.Empty(t, gen.calls())
		})
	}
}

func TestController_SubmitSuccess(t *testing.T) {
	t.Run("Submit は同期的に Loading に入り、解決までトリガーを無効にする", func(t *testing.T) {
		gen := &mockGenerator{release: make(chan struct{})}
		obs := &mockObserver{}
		c := readyController(t, gen, WithObserver(obs))
		c.Notify("old notice")

		done, err := c.Submit(context.Background())
		require.NoError(t, err)

		v := c.Snapshot()
		assert.Equal(t, domain.PhaseLoading, v.State.Phase)
		assert.False(t, v.CanSubmit)
		assert.Empty(t, v.Notice)

		_, err = c.Submit(context.Background())
		assert.ErrorIs(t, err, domain.ErrGenerationInFlight)

		close(gen.release)
		await(t, done)

		v = c.Snapshot()
		assert.Equal(t, domain.PhaseSucceeded, v.State.Phase)
		assert.True(t, v.CanSubmit)
		assert.Equal(t, 1, obs.started)
		assert.Equal(t, []string{OutcomeSucceeded}, obs.outcomes)
	})

	t.Run("結果画像は返却ペイロードそのものから作られる", func(t *testing.T) {
		payload := []byte{0x89, 'P', 'N', 'G', 1, 2, 3}
		gen := &mockGenerator{generate: func(req domain.GenerationRequest) (*domain.ImageResponse, error) {
			return &domain.ImageResponse{Data: payload, MimeType: "image/png"}, nil
		}}
		c := readyController(t, gen)

		done, err := c.Submit(context.Background())
		require.NoError(t, err)
		await(t, done)

		res, ok := c.Result()
		require.True(t, ok)
		assert.Equal(t, payload, res.Data)

		uri := res.DataURI()
		encoded := strings.TrimPrefix(uri, "data:image/png;base64,")
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		require.NoError(t, err)
		assert.Equal(t, payload, decoded)
	})

	t.Run("被写体とスタイルがエンコードされてプロンプトと共に渡る", func(t *testing.T) {
		gen := &mockGenerator{}
		c := readyController(t, gen)
		seed := int64(9)
		c.SetOptions(" 4:3 ", &seed)

		done, err := c.Submit(context.Background())
		require.NoError(t, err)
		await(t, done)

		calls := gen.calls()
		require.Len(t, calls, 1)
		req := calls[0]
		assert.Equal(t, "A cat in Van Gogh's style", req.Prompt)
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("subject-bytes")), req.Subject.Data)
		assert.Equal(t, "image/png", req.Subject.MimeType)
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("style-bytes")), req.Style.Data)
		assert.Equal(t, "image/jpeg", req.Style.MimeType)
		assert.Equal(t, "4:3", req.AspectRatio)
		require.NotNil(t, req.Seed)
		assert.Equal(t, seed, *req.Seed)
	})

	t.Run("HTTP リクエストのキャンセルは生成を止めない", func(t *testing.T) {
		gen := &mockGenerator{release: make(chan struct{})}
		c := readyController(t, gen)
		ctx, cancel := context.WithCancel(context.Background())

		done, err := c.Submit(ctx)
		require.NoError(t, err)
		cancel()
		close(gen.release)
		await(t, done)

		assert.Equal(t, domain.PhaseSucceeded, c.State().Phase)
	})

	t.Run("同じ送信を2回繰り返すと独立した2つの成功状態になる", func(t *testing.T) {
		n := 0
		gen := &mockGenerator{generate: func(req domain.GenerationRequest) (*domain.ImageResponse, error) {
			n++
			return &domain.ImageResponse{Data: []byte{byte(n)}, MimeType: "image/png"}, nil
		}}
		c := readyController(t, gen)

		done, err := c.Submit(context.Background())
		require.NoError(t, err)
		await(t, done)
		first, _ := c.Result()

		done, err = c.Submit(context.Background())
		require.NoError(t, err)
		await(t, done)
		second, _ := c.Result()

		assert.Len(t, gen.calls(), 2, "結果はキャッシュされない")
		assert.Equal(t, []byte{1}, first.Data)
		assert.Equal(t, []byte{2}, second.Data)
		assert.NotSame(t, first, second)
	})
}

func TestController_SubmitFailure(t *testing.T) {
	t.Run("rate limit exceeded がそのまま表示される", func(t *testing.T) {
		obs := &mockObserver{}
		gen := &mockGenerator{generate: func(req domain.GenerationRequest) (*domain.ImageResponse, error) {
			return nil, &domain.RemoteError{Message: "rate limit exceeded"}
		}}
		c := readyController(t, gen, WithObserver(obs))

		done, err := c.Submit(context.Background())
		require.NoError(t, err)
		await(t, done)

		st := c.State()
		assert.Equal(t, domain.PhaseFailed, st.Phase)
		assert.Equal(t, "rate limit exceeded", st.Message)
		assert.Nil(t, st.Result)
		assert.Equal(t, []string{OutcomeFailed}, obs.outcomes)
	})

	t.Run("認識できないエラーは汎用メッセージ", func(t *testing.T) {
		gen := &mockGenerator{generate: func(req domain.GenerationRequest) (*domain.ImageResponse, error) {
			return nil, errors.New("socket closed")
		}}
		c := readyController(t, gen)

		done, _ := c.Submit(context.Background())
		await(t, done)

		assert.Equal(t, domain.UnknownFailureMessage, c.State().Message)
	})

	t.Run("空の結果は失敗として扱う", func(t *testing.T) {
		gen := &mockGenerator{generate: func(req domain.GenerationRequest) (*domain.ImageResponse, error) {
			return &domain.ImageResponse{}, nil
		}}
		c := readyController(t, gen)

		done, _ := c.Submit(context.Background())
		await(t, done)

		st := c.State()
		assert.Equal(t, domain.PhaseFailed, st.Phase)
		assert.NotEmpty(t, st.Message)
	})

	t.Run("空ファイルはエンコードエラーになり生成は呼ばれない", func(t *testing.T) {
		gen := &mockGenerator{}
		c := readyController(t, gen)
		empty := subjectImage("s2")
		empty.Data = nil
		c.Select(empty)

		done, err := c.Submit(context.Background())
		require.NoError(t, err)
		await(t, done)

		st := c.State()
		assert.Equal(t, domain.PhaseFailed, st.Phase)
		assert.Equal(t, "Failed to convert file to base64.", st.Message)
		assert.Empty(t, gen.calls())
	})

	t.Run("パニックしても Failed に落ちる", func(t *testing.T) {
		gen := &mockGenerator{generate: func(req domain.GenerationRequest) (*domain.ImageResponse, error) {
			panic("boom")
		}}
		c := readyController(t, gen)

		done, _ := c.Submit(context.Background())
		await(t, done)

		assert.Equal(t, domain.PhaseFailed, c.State().Phase)
		assert.Equal(t, domain.UnknownFailureMessage, c.State().Message)
	})

	t.Run("失敗後の再送信は Loading に入り直し、前の結果とエラーを消す", func(t *testing.T) {
		fail := true
		gen := &mockGenerator{generate: func(req domain.GenerationRequest) (*domain.ImageResponse, error) {
			if fail {
				return nil, &domain.RemoteError{Message: "temporary"}
			}
			return &domain.ImageResponse{Data: []byte("ok")}, nil
		}}
		c := readyController(t, gen)

		done, _ := c.Submit(context.Background())
		await(t, done)
		require.Equal(t, domain.PhaseFailed, c.State().Phase)

		fail = false
		gen.release = make(chan struct{})
		done, err := c.Submit(context.Background())
		require.NoError(t, err)
		st := c.State()
		assert.Equal(t, domain.PhaseLoading, st.Phase)
		assert.Empty(t, st.Message)
		assert.Nil(t, st.Result)

		close(gen.release)
		await(t, done)
		assert.Equal(t, domain.PhaseSucceeded, c.State().Phase)
	})
}

func TestController_SubmitValidationAfterTerminal(t *testing.T) {
	t.Run("失敗後に入力不足で送信すると前のエラーは消えて通知だけ残る", func(t *testing.T) {
		gen := &mockGenerator{generate: func(req domain.GenerationRequest) (*domain.ImageResponse, error) {
			return nil, &domain.RemoteError{Message: "rate limit exceeded"}
		}}
		c := readyController(t, gen)
		done, _ := c.Submit(context.Background())
		await(t, done)
		require.Equal(t, "rate limit exceeded", c.State().Message)

		c.SetPrompt("   ")
		_, err := c.Submit(context.Background())

		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		v := c.Snapshot()
		assert.Equal(t, domain.PhaseIdle, v.State.Phase)
		assert.Empty(t, v.State.Message)
		assert.Equal(t, domain.MissingInputMessage, v.Notice)
		assert.Equal(t, 1, gen.calls())
	})

	t.Run("成功後に入力不足で送信すると結果は消える", func(t *testing.T) {
		c := readyController(t, &mockGenerator{})
		done, _ := c.Submit(context.Background())
		await(t, done)
		require.Equal(t, domain.PhaseSucceeded, c.State().Phase)

		c.SetPrompt("")
		_, err := c.Submit(context.Background())

		require.Error(t, err)
		st := c.State()
		assert.Equal(t, domain.PhaseIdle, st.Phase)
		assert.Nil(t, st.Result)
	})
}

func TestController_SelectAndPreview(t *testing.T) {
	obs := &mockObserver{}
	c, _ := New(&mockGenerator{}, WithObserver(obs))
	c.Select(subjectImage("old"))

	data, mime, ok := c.Preview(domain.SlotSubject, "old")
	require.True(t, ok)
	assert.Equal(t, []byte("subject-bytes"), data)
	assert.Equal(t, "image/png", mime)

	replacement := subjectImage("new")
	replacement.Data = []byte("new-bytes")
	c.Select(replacement)

	_, _, ok = c.Preview(domain.SlotSubject, "old")
	assert.False(t, ok, "置き換えられたプレビュー参照は解放される")

	data, _, ok = c.Preview(domain.SlotSubject, "new")
	require.True(t, ok)
	assert.Equal(t, []byte("new-bytes"), data)

	_, _, ok = c.Preview(domain.SlotStyle, "new")
	assert.False(t, ok)

	v := c.Snapshot()
	require.NotNil(t, v.Image(domain.SlotSubject))
	assert.Equal(t, "new", v.Image(domain.SlotSubject).PreviewID)
	assert.Nil(t, v.Image(domain.SlotStyle))
	assert.Equal(t, []domain.Slot{domain.SlotSubject, domain.SlotSubject}, obs.selected)
}

func TestController_Reset(t *testing.T) {
	t.Run("確定状態から Idle に戻る", func(t *testing.T) {
		c := readyController(t, &mockGenerator{})
		done, _ := c.Submit(context.Background())
		await(t, done)
		require.Equal(t, domain.PhaseSucceeded, c.State().Phase)

		c.Reset()

		assert.Equal(t, domain.PhaseIdle, c.State().Phase)
		_, ok := c.Result()
		assert.False(t, ok)
	})

	t.Run("生成中の Reset は無視される", func(t *testing.T) {
		gen := &mockGenerator{release: make(chan struct{})}
		c := readyController(t, gen)
		done, _ := c.Submit(context.Background())

		c.Reset()
		assert.Equal(t, domain.PhaseLoading, c.State().Phase)

		close(gen.release)
		await(t, done)
	})
}
