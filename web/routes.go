package web

import (
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/gocrud/container/di"
	"github.com/samber/lo"
)

// serviceSummary 服务列表中的一项
type serviceSummary struct {
	Name         string `json:"name"`
	Kind         string `json:"kind"`
	Singleton    bool   `json:"singleton"`
	Private      bool   `json:"private"`
	Instantiated bool   `json:"instantiated"`
}

type callView struct {
	Method    string `json:"method"`
	Arguments []any  `json:"arguments"`
}

type notificationView struct {
	Sender    string `json:"sender"`
	Target    string `json:"target"`
	Method    string `json:"method"`
	Arguments []any  `json:"arguments"`
}

// serviceView 单个服务的完整定义
type serviceView struct {
	serviceSummary
	Class            string             `json:"class,omitempty"`
	Extends          string             `json:"extends,omitempty"`
	FactoryService   string             `json:"factory_service,omitempty"`
	FactoryMethod    string             `json:"factory_method,omitempty"`
	FactoryArguments []any              `json:"factory_arguments,omitempty"`
	Arguments        []any              `json:"arguments"`
	Calls            []callView         `json:"calls"`
	Notify           []notificationView `json:"notify"`
	Abstract         bool               `json:"abstract"`
	ReadOnly         bool               `json:"read_only"`
	Aliases          []string           `json:"aliases"`
}

func (h *Host) mountRoutes(router gin.IRouter) {
	router.GET("/services", h.guard(h.listServices))
	router.GET("/services/:name", h.guard(h.getService))
	router.GET("/parameters", h.guard(h.listParameters))
	router.GET("/parameters/:name", h.guard(h.getParameter))
	router.GET("/notifications", h.guard(h.listNotifications))
	router.GET("/validate", h.guard(h.validate))
}

// guard 在持有锁的情况下执行处理函数
func (h *Host) guard(handler gin.HandlerFunc) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		h.lock.Lock()
		defer h.lock.Unlock()
		handler(ctx)
	}
}

func (h *Host) listServices(ctx *gin.Context) {
	items := lo.FilterMap(h.container.ServiceNames(), func(name string, _ int) (serviceSummary, bool) {
		def, err := h.container.GetDefinition(name)
		if err != nil {
			return serviceSummary{}, false
		}
		return summarize(def), true
	})
	ctx.JSON(http.StatusOK, gin.H{"services": items, "aliases": h.container.Aliases()})
}

func (h *Host) getService(ctx *gin.Context) {
	def, err := h.container.GetDefinition(ctx.Param("name"))
	if err != nil {
		abortWithError(ctx, err)
		return
	}

	aliases := lo.Keys(lo.PickByValues(h.container.Aliases(), []string{def.Name}))
	slices.Sort(aliases)

	ctx.JSON(http.StatusOK, serviceView{
		serviceSummary:   summarize(def),
		Class:            def.Class,
		Extends:          def.Extends,
		FactoryService:   def.FactoryService,
		FactoryMethod:    def.FactoryMethod,
		FactoryArguments: plainList(def.FactoryArguments),
		Arguments:        plainList(def.Arguments),
		Calls: lo.Map(def.Calls, func(call di.MethodCall, _ int) callView {
			return callView{Method: call.Method, Arguments: plainList(call.Arguments)}
		}),
		Notify:   lo.Map(def.Notify, func(n di.Notification, _ int) notificationView { return viewNotification(n) }),
		Abstract: def.Abstract,
		ReadOnly: def.ReadOnly,
		Aliases:  aliases,
	})
}

func (h *Host) listParameters(ctx *gin.Context) {
	params, err := h.container.DumpParameters()
	if err != nil {
		abortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"parameters": plainValue(params)})
}

func (h *Host) getParameter(ctx *gin.Context) {
	name := ctx.Param("name")
	value, err := h.container.GetParameter(name)
	if err != nil {
		abortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"name": name, "value": plainValue(value)})
}

func (h *Host) listNotifications(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"pending":   viewNotifications(h.container.PendingNotifications()),
		"delivered": viewNotifications(h.container.DeliveredNotifications()),
	})
}

func (h *Host) validate(ctx *gin.Context) {
	err := h.container.Validate()
	if err == nil {
		ctx.JSON(http.StatusOK, gin.H{"valid": true, "errors": []string{}})
		return
	}

	var messages []string
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		messages = lo.Map(joined.Unwrap(), func(e error, _ int) string { return e.Error() })
	} else {
		messages = []string{err.Error()}
	}
	ctx.JSON(http.StatusConflict, gin.H{"valid": false, "errors": messages})
}

// abortWithError 把容器错误映射为 HTTP 状态码
func abortWithError(ctx *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, di.ErrServiceNotFound), errors.Is(err, di.ErrParameterNotFound):
		status = http.StatusNotFound
	case errors.Is(err, di.ErrInvalidParameter):
		status = http.StatusUnprocessableEntity
	}
	ctx.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func summarize(def *di.ServiceDefinition) serviceSummary {
	return serviceSummary{
		Name:         def.Name,
		Kind:         def.Kind.String(),
		Singleton:    def.Singleton,
		Private:      def.Private,
		Instantiated: def.IsInstantiated(),
	}
}

func viewNotification(n di.Notification) notificationView {
	return notificationView{
		Sender:    n.Sender,
		Target:    n.Target,
		Method:    n.Method,
		Arguments: plainList(n.Arguments),
	}
}

func viewNotifications(src map[string][]di.Notification) map[string][]notificationView {
	return lo.MapValues(src, func(list []di.Notification, _ string) []notificationView {
		return lo.Map(list, func(n di.Notification, _ int) notificationView { return viewNotification(n) })
	})
}

func plainList(values []any) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = plainValue(v)
	}
	return out
}

// plainValue 把不能序列化的值替换为类型描述
func plainValue(value any) any {
	switch v := value.(type) {
	case nil, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v
	case []any:
		return plainList(v)
	case map[string]any:
		return lo.MapValues(v, func(item any, _ string) any { return plainValue(item) })
	case di.Options:
		return lo.MapValues(v, func(item any, _ string) any { return plainValue(item) })
	default:
		return fmt.Sprintf("<%T>", v)
	}
}
