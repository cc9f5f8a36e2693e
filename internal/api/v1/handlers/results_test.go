package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"wwcp-server/internal/logger"
	"wwcp-server/internal/results"
)

func TestStatusCode(t *testing.T) {
	tests := map[results.ResultCode]int{
		results.CodeSuccess:         http.StatusOK,
		results.CodeEnqueued:        http.StatusAccepted,
		results.CodePartial:         http.StatusMultiStatus,
		results.CodeArgumentError:   http.StatusBadRequest,
		results.CodeCanNotBeRemoved: http.StatusConflict,
		results.CodeLockTimeout:     http.StatusLocked,
		results.CodeOutOfService:    http.StatusServiceUnavailable,
		results.CodeTimeout:         http.StatusGatewayTimeout,
		results.CodeFailed:          http.StatusUnprocessableEntity,
		results.CodeError:           http.StatusInternalServerError,
	}

	for code, want := range tests {
		t.Run(code.String(), func(t *testing.T) {
			assert.Equal(t, want, statusCode(code))
		})
	}
}

func TestResponder_LogsEncodingErrorsOnItsOwnLogger(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	broken := newResponder(&logger.Logger{SugaredLogger: zap.New(core).Sugar()}, "status")
	quiet := newResponder(nil, "health")

	rr := httptest.NewRecorder()
	broken.sendJSON(rr, http.StatusOK, map[string]interface{}{"ch": make(chan int)})
	assert.Equal(t, http.StatusOK, rr.Code)

	quiet.sendJSON(httptest.NewRecorder(), http.StatusOK, map[string]interface{}{"ch": make(chan int)})

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "failed to write response", entries[0].Message)
		assert.Equal(t, "status", entries[0].ContextMap()["handler"])
	}
}
