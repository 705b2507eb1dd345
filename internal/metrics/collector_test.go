package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/modulebot/module"
	"github.com/BaSui01/modulebot/module/catalog"
)

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

type stubModule struct{ stopErr error }

func (m stubModule) Stop(context.Context) error { return m.stopErr }

func TestCollector_RecordHTTPRequest(t *testing.T) {
	c := NewCollector("test", zap.NewNop())

	c.RecordHTTPRequest("GET", "/v1/modules", 200, 10*time.Millisecond, 512)
	c.RecordHTTPRequest("GET", "/v1/modules", 204, 5*time.Millisecond, 0)
	c.RecordHTTPRequest("POST", "/v1/modules/{name}/enable", 404, time.Millisecond, 64)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("GET", "/v1/modules", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("POST", "/v1/modules/{name}/enable", "4xx")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.httpRequestDuration))
}

func TestCollector_Observer(t *testing.T) {
	ctx := context.Background()
	c := NewCollector("test", nil)
	cat := catalog.NewStatic(
		module.Descriptor{Name: "ok", Factory: func(context.Context, module.Host) (module.Module, error) {
			return stubModule{}, nil
		}},
		module.Descriptor{Name: "flaky", Factory: func(context.Context, module.Host) (module.Module, error) {
			return stubModule{stopErr: errors.New("stuck")}, nil
		}},
	)
	m := module.NewManager(ctx, cat, nil, module.WithObserver(c))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.modulesAvailable))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.modulesEnabled))

	require.True(t, m.Enable(ctx, "ok").OK())
	require.True(t, m.Enable(ctx, "flaky").OK())
	assert.Equal(t, 2.0, testutil.ToFloat64(c.modulesEnabled))

	m.Enable(ctx, "ok")
	require.Equal(t, module.StatusDisabled, m.Disable(ctx, "flaky").Status)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.moduleOperationsTotal.WithLabelValues("enable", "enabled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.moduleOperationsTotal.WithLabelValues("enable", "already_enabled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.moduleTeardownFailures.WithLabelValues("flaky")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.modulesEnabled))

	m.Unload(ctx)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.modulesAvailable))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("modulebot", nil)
	c.RegistryChanged(3, 1)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "modulebot_modules_available 3"), body)
	assert.Contains(t, body, "modulebot_modules_enabled 1")
	assert.Contains(t, body, "go_goroutines")
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "2xx"}, {301, "3xx"}, {404, "4xx"}, {503, "5xx"}, {100, "100"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusCode(tt.code))
	}
}
