package emailsvc

import (
	"io"
	"log"
	"net/http"
	"net/mail"
	"testing"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/services/logger"
)

func newTestSendgrid(t *testing.T, responses ...interface{}) (*sendgridService, *int) {
	t.Helper()
	conf := core.NewTestConfig()
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)

	svc := NewSendgridService(conf, logger).(*sendgridService)
	calls := new(int)
	svc.send = func(*sgmail.SGMailV3) (*rest.Response, error) {
		r := responses[*calls]
		*calls++
		if err, ok := r.(error); ok {
			return nil, err
		}
		return &rest.Response{StatusCode: r.(int)}, nil
	}
	return svc, calls
}

func TestSendgridService_compose(t *testing.T) {
	svc, _ := newTestSendgrid(t)
	m := svc.compose(core.EmailMessage{
		To:           []mail.Address{{Address: "mum@test.in"}, {Name: "Dad", Address: "dad@test.in"}},
		Bcc:          []mail.Address{{Address: "office@test.in"}},
		Subject:      "Your login code",
		TemplateName: "login_otp",
		TextContent:  "123456",
	})

	assert.Equal(t, svc.subjPrefix+"Your login code", m.Subject)
	assert.Equal(t, []string{"login_otp"}, m.Categories)
	require.Len(t, m.Personalizations, 2)
	for i, want := range []string{"mum@test.in", "dad@test.in"} {
		p := m.Personalizations[i]
		require.Len(t, p.To, 1)
		assert.Equal(t, want, p.To[0].Address)
		require.Len(t, p.BCC, 1)
		assert.Equal(t, "office@test.in", p.BCC[0].Address)
	}
	require.Len(t, m.Content, 1)
	assert.Equal(t, "text/plain", m.Content[0].Type)
}

func TestSendgridService_deliver(t *testing.T) {
	delay := retryDelay
	retryDelay = 0
	defer func() { retryDelay = delay }()

	tests := []struct {
		name      string
		responses []interface{}
		want      bool
		wantCalls int
	}{
		{name: "accepted", responses: []interface{}{http.StatusAccepted}, want: true, wantCalls: 1},
		{name: "rejected", responses: []interface{}{http.StatusBadRequest}, wantCalls: 1},
		{name: "throttled then accepted", responses: []interface{}{http.StatusTooManyRequests, http.StatusAccepted}, want: true, wantCalls: 2},
		{name: "transport error then accepted", responses: []interface{}{errors.New("connection reset"), http.StatusAccepted}, want: true, wantCalls: 2},
		{
			name:      "server errors until giving up",
			responses: []interface{}{http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusInternalServerError},
			wantCalls: maxAttempts,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, calls := newTestSendgrid(t, tt.responses...)
			got := svc.deliver(svc.compose(core.EmailMessage{To: []mail.Address{{Address: "a@test.in"}}, TextContent: "hi"}))
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantCalls, *calls)
		})
	}
}
