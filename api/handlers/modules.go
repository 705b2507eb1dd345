package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/modulebot/internal/ctxkeys"
	"github.com/BaSui01/modulebot/module"
)

// =============================================================================
// 🧩 模块管理 Handler
// =============================================================================

// ModuleManager is the subset of *module.Manager the admin surface drives.
type ModuleManager interface {
	Modules() []module.Info
	Info(name string) (module.Info, bool)
	Add(ctx context.Context, name string) module.Result
	Remove(ctx context.Context, name string) module.Result
	Enable(ctx context.Context, name string) module.Result
	Disable(ctx context.Context, name string) module.Result
	Restart(ctx context.Context, name string) module.Result
	Reload(ctx context.Context, name string) module.Result
	Resync(ctx context.Context) module.ResyncReport
}

var _ ModuleManager = (*module.Manager)(nil)

// ModuleHandler 模块管理处理器
type ModuleHandler struct {
	manager ModuleManager
	logger  *zap.Logger
}

// NewModuleHandler 创建模块管理处理器
func NewModuleHandler(manager ModuleManager, logger *zap.Logger) *ModuleHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModuleHandler{
		manager: manager,
		logger:  logger.With(zap.String("component", "module_handler")),
	}
}

// ResultView is the JSON rendering of a module.Result.
type ResultView struct {
	Op       module.Op     `json:"op"`
	Module   string        `json:"module"`
	Status   module.Status `json:"status"`
	State    module.State  `json:"state"`
	Message  string        `json:"message"`
	Error    string        `json:"error,omitempty"`
	Teardown string        `json:"teardown_error,omitempty"`
	Steps    []ResultView  `json:"steps,omitempty"`
}

// NewResultView renders res.
func NewResultView(res module.Result) ResultView {
	v := ResultView{
		Op:      res.Op,
		Module:  res.Module,
		Status:  res.Status,
		State:   res.State,
		Message: res.String(),
	}
	if err := res.Err(); err != nil {
		v.Error = err.Error()
	}
	if res.Teardown != nil {
		v.Teardown = res.Teardown.Error()
	}
	for _, s := range res.Steps {
		v.Steps = append(v.Steps, NewResultView(s))
	}
	return v
}

// ResyncView is the JSON rendering of a module.ResyncReport.
type ResyncView struct {
	Removed  []ResultView `json:"removed"`
	Reloaded []ResultView `json:"reloaded"`
	Added    []ResultView `json:"added"`
	Failed   int          `json:"failed"`
}

func newResyncView(report module.ResyncReport) ResyncView {
	render := func(rs []module.Result) []ResultView {
		out := make([]ResultView, 0, len(rs))
		for _, r := range rs {
			out = append(out, NewResultView(r))
		}
		return out
	}
	return ResyncView{
		Removed:  render(report.Removed),
		Reloaded: render(report.Reloaded),
		Added:    render(report.Added),
		Failed:   len(report.Failed()),
	}
}

// =============================================================================
// 🎯 HTTP 处理程序
// =============================================================================

// HandleList 处理 GET /v1/modules
func (h *ModuleHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, h.manager.Modules())
}

// HandleGet 处理 GET /v1/modules/{name}
func (h *ModuleHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	info, ok := h.manager.Info(name)
	if !ok {
		WriteError(w, r, http.StatusNotFound, ErrNotFound, "module "+name+" is not registered", nil)
		return
	}
	WriteSuccess(w, r, info)
}

// HandleOperation 处理 POST /v1/modules/{name}/{op}
func (h *ModuleHandler) HandleOperation(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	op, ok := module.ParseOp(r.PathValue("op"))
	if !ok {
		WriteError(w, r, http.StatusBadRequest, ErrInvalidRequest, "unknown operation "+r.PathValue("op"), h.logger)
		return
	}
	if name == "" {
		WriteError(w, r, http.StatusBadRequest, ErrInvalidRequest, "module name is required", h.logger)
		return
	}

	ctx := apiContext(r.Context())
	var res module.Result
	switch op {
	case module.OpAdd:
		res = h.manager.Add(ctx, name)
	case module.OpRemove:
		res = h.manager.Remove(ctx, name)
	case module.OpEnable:
		res = h.manager.Enable(ctx, name)
	case module.OpDisable:
		res = h.manager.Disable(ctx, name)
	case module.OpRestart:
		res = h.manager.Restart(ctx, name)
	case module.OpReload:
		res = h.manager.Reload(ctx, name)
	}

	status, info := resultStatus(res)
	WriteResult(w, r, status, NewResultView(res), info)
}

// HandleResync 处理 POST /v1/modules:resync
func (h *ModuleHandler) HandleResync(w http.ResponseWriter, r *http.Request) {
	report := h.manager.Resync(apiContext(r.Context()))
	if report.Err != nil {
		WriteError(w, r, http.StatusServiceUnavailable, ErrOperationFailed, report.Err.Error(), h.logger)
		return
	}
	view := newResyncView(report)
	if view.Failed > 0 {
		WriteResult(w, r, http.StatusMultiStatus, view, &ErrorInfo{
			Code:    ErrOperationFailed,
			Message: "some modules failed to resync",
		})
		return
	}
	WriteSuccess(w, r, view)
}

// apiContext tags ctx with the "api" source unless auth already named one.
func apiContext(ctx context.Context) context.Context {
	if _, ok := ctxkeys.Source(ctx); ok {
		return ctx
	}
	return ctxkeys.WithSource(ctx, "api")
}

// resultStatus maps a lifecycle outcome onto an HTTP status.
func resultStatus(res module.Result) (int, *ErrorInfo) {
	err := res.Err()
	if err == nil {
		return http.StatusOK, nil
	}
	info := &ErrorInfo{Message: res.String(), Details: err.Error()}
	switch {
	case errors.Is(err, module.ErrNotFound), errors.Is(err, module.ErrNotAvailable), errors.Is(err, module.ErrNotEnabled):
		info.Code = ErrNotFound
		return http.StatusNotFound, info
	case errors.Is(err, module.ErrAlreadyAvailable), errors.Is(err, module.ErrAlreadyEnabled):
		info.Code = ErrConflict
		return http.StatusConflict, info
	default:
		info.Code = ErrOperationFailed
		return http.StatusUnprocessableEntity, info
	}
}
