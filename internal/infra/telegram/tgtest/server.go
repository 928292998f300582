// Package tgtest поддельный Bot API для тестов: отвечает на методы
// заготовленным JSON и запоминает вызовы.
package tgtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"strconv"
	"sync"
	"testing"
)

type Call struct {
	Method string
	Params url.Values
}

type Server struct {
	*httptest.Server

	mu        sync.Mutex
	calls     []Call
	responses map[string]string
	failures  map[string]string
	messageID int
}

const defaultMessage = `{"message_id":%d,"date":0,"chat":{"id":1,"type":"private"}}`

// New стартует сервер; getMe отвечает ботом с id=botID.
func New(t *testing.T, botID int64) *Server {
	t.Helper()
	s := &Server{
		responses: map[string]string{
			"getMe":               `{"id":` + strconv.FormatInt(botID, 10) + `,"is_bot":true,"first_name":"test","username":"test_bot"}`,
			"banChatMember":       `true`,
			"unbanChatMember":     `true`,
			"answerCallbackQuery": `true`,
			"deleteMessage":       `true`,
		},
		failures: map[string]string{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// Endpoint формат для tgbotapi.NewBotAPIWithClient.
func (s *Server) Endpoint() string {
	return s.URL + "/bot%s/%s"
}

// Respond задаёт result для метода.
func (s *Server) Respond(method, resultJSON string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[method] = resultJSON
	delete(s.failures, method)
}

// Fail метод будет отвечать ok=false с описанием.
func (s *Server) Fail(method, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = description
}

func (s *Server) Calls(method string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Call
	for _, c := range s.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Methods имена вызванных методов по порядку, без getMe.
func (s *Server) Methods() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, c := range s.calls {
		if c.Method != "getMe" {
			out = append(out, c.Method)
		}
	}
	return out
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseMultipartForm(10 << 20)
	_ = r.ParseForm()
	method := path.Base(r.URL.Path)

	s.mu.Lock()
	s.calls = append(s.calls, Call{Method: method, Params: r.Form})
	desc, failed := s.failures[method]
	result, ok := s.responses[method]
	if !ok {
		s.messageID++
		result = fmt.Sprintf(defaultMessage, s.messageID)
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if failed {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error_code": 400, "description": desc})
		return
	}
	_, _ = w.Write([]byte(`{"ok":true,"result":` + result + `}`))
}
