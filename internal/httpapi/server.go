// Package httpapi exposes the execute/status/cancel HTTP adapter for running
// flows, plus a websocket push variant of status polling.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/r3e-network/flowengine/internal/audit"
	"github.com/r3e-network/flowengine/internal/flow"
	"github.com/r3e-network/flowengine/internal/flow/bridge"
	"github.com/r3e-network/flowengine/internal/flowerr"
	"github.com/r3e-network/flowengine/internal/metrics"
	"github.com/r3e-network/flowengine/pkg/auth"
	"github.com/r3e-network/flowengine/pkg/gml/value"
	"github.com/r3e-network/flowengine/pkg/logger"
)

// Server bundles the execution API's dependencies.
type Server struct {
	flows   *FlowRegistry
	track   *Tracker
	tools   flow.ToolDispatcher
	auditor *audit.Logger
	authSvc *auth.Service
	log     *logger.Logger

	upgrader websocket.Upgrader
}

// NewServer builds a Server. auditor/authSvc may be nil.
func NewServer(flows *FlowRegistry, tools flow.ToolDispatcher, auditor *audit.Logger, authSvc *auth.Service) *Server {
	return &Server{
		flows:   flows,
		track:   NewTracker(),
		tools:   tools,
		auditor: auditor,
		authSvc: authSvc,
		log:     logger.NewDefault("httpapi"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Router builds the gin engine exposing the execution API.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		metrics.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	})

	v1 := r.Group("/v1/tenants/:tenantId")
	v1.POST("/flows/:flowId", s.saveFlow)
	v1.POST("/execute", s.execute)
	v1.GET("/executions/:id/status", s.status)
	v1.POST("/executions/:id/cancel", s.cancel)
	v1.GET("/executions/:id/stream", s.statusStream)

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	return r
}

type executeRequest struct {
	FlowID string          `json:"flow_id"`
	Flow   json.RawMessage `json:"flow"`
	Graph  json.RawMessage `json:"graph"`
	Inputs json.RawMessage `json:"inputs"`
}

type executeResponse struct {
	ExecutionID string `json:"execution_id"`
	Result      any    `json:"result,omitempty"`
	Error       string `json:"error,omitempty"`
}

// execute runs a flow asynchronously so status/cancel have something to
// observe. The flow is supplied inline (as a raw internal/flow.Flow
// definition or a UI graph), or by id against the tenant's FlowRegistry.
func (s *Server) execute(c *gin.Context) {
	tenantID := c.Param("tenantId")
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	f, err := s.resolveFlow(tenantID, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var inputsAny any
	if len(req.Inputs) > 0 {
		if err := json.Unmarshal(req.Inputs, &inputsAny); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid inputs: " + err.Error()})
			return
		}
	}
	inputs := value.FromAny(inputsAny)

	rec := s.track.Begin(tenantID)
	sched := flow.New(s.log, metrics.SchedulerMetrics(tenantID))
	tc := flow.ToolContext{TenantID: tenantID}
	auditCtx := c.Copy().Request.Context() // c itself is reused after the handler returns; never pass it into a goroutine

	go func() {
		started := time.Now()
		s.track.MarkRunning(rec.ID)
		result, err := sched.Execute(f, inputs, s.tools, tc)
		s.track.Complete(rec.ID, result, err)

		status := "completed"
		if err != nil {
			status = "failed"
		}
		metrics.RecordExecution(tenantID, status, time.Since(started))

		if s.auditor != nil {
			evt := audit.EventExecutionCompleted
			if err != nil {
				evt = audit.EventExecutionFailed
			}
			s.auditor.Log(auditCtx, audit.Entry{
				TenantID:   tenantID,
				EventType:  evt,
				Action:     "execute",
				Success:    err == nil,
				ResourceID: rec.ID,
			})
		}
	}()

	c.JSON(http.StatusAccepted, executeResponse{ExecutionID: rec.ID})
}

func (s *Server) resolveFlow(tenantID string, req executeRequest) (*flow.Flow, error) {
	switch {
	case len(req.Flow) > 0:
		var f flow.Flow
		if err := json.Unmarshal(req.Flow, &f); err != nil {
			return nil, err
		}
		return &f, nil
	case len(req.Graph) > 0:
		var g bridge.Graph
		if err := json.Unmarshal(req.Graph, &g); err != nil {
			return nil, err
		}
		return bridge.ToFlow(g), nil
	case req.FlowID != "":
		f := s.flows.Get(tenantID, req.FlowID)
		if f == nil {
			return nil, flowerr.New(flowerr.CodeToolNotFound, "flow not found: "+req.FlowID)
		}
		return f, nil
	default:
		return nil, flowerr.New(flowerr.CodeToolInvalidArg, "one of flow_id, flow, or graph is required")
	}
}

// saveFlow registers a flow definition under flowId, for later execute-by-id
// calls and for trigger dispatch.
func (s *Server) saveFlow(c *gin.Context) {
	tenantID := c.Param("tenantId")
	flowID := c.Param("flowId")

	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	f, err := s.resolveFlow(tenantID, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.flows.Save(tenantID, flowID, f)
	c.Status(http.StatusNoContent)
}

type statusResponse struct {
	Status      string  `json:"status"`
	Progress    float64 `json:"progress"`
	CurrentNode string  `json:"current_node,omitempty"`
	StartedAt   string  `json:"started_at"`
	CompletedAt string  `json:"completed_at,omitempty"`
	Error       string  `json:"error,omitempty"`
}

func toStatusResponse(rec *ExecutionRecord) statusResponse {
	resp := statusResponse{
		Status:      rec.Status.String(),
		Progress:    rec.Progress,
		CurrentNode: rec.CurrentNode,
		StartedAt:   rec.StartedAt.Format(time.RFC3339),
		Error:       rec.Error,
	}
	if !rec.CompletedAt.IsZero() {
		resp.CompletedAt = rec.CompletedAt.Format(time.RFC3339)
	}
	return resp
}

// status reports an execution's current state.
func (s *Server) status(c *gin.Context) {
	rec := s.track.Get(c.Param("tenantId"), c.Param("id"))
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "execution not found"})
		return
	}
	c.JSON(http.StatusOK, toStatusResponse(rec))
}

// cancel performs a soft cancel of a running execution.
func (s *Server) cancel(c *gin.Context) {
	if !s.track.Cancel(c.Param("tenantId"), c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "execution not found"})
		return
	}
	if s.auditor != nil {
		s.auditor.Log(c.Request.Context(), audit.Entry{
			TenantID:   c.Param("tenantId"),
			EventType:  audit.EventExecutionCancelled,
			Action:     "cancel",
			Success:    true,
			ResourceID: c.Param("id"),
		})
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// statusStream pushes status snapshots over a websocket until the
// execution reaches a terminal state, complementing the polling status
// route.
func (s *Server) statusStream(c *gin.Context) {
	tenantID := c.Param("tenantId")
	id := c.Param("id")

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		rec := s.track.Get(tenantID, id)
		if rec == nil {
			_ = conn.WriteJSON(gin.H{"error": "execution not found"})
			return
		}
		if err := conn.WriteJSON(toStatusResponse(rec)); err != nil {
			return
		}
		if rec.Status == 2 || rec.Status == 3 || rec.Status == 4 { // completed, failed, cancelled
			return
		}
		<-ticker.C
	}
}
