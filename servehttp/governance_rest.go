package servehttp

import (
	"fmt"
	"net/http"

	"steward/bizerror"
	"steward/governance"
	"steward/initiative"
	"steward/misc"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

type WorkflowQuery struct {
	InitiativeID types.ID `form:"initiativeId" validate:"required,min=1"`
}

// RegisterGovernanceHandler mounts the workflow, stage and approval routes.
// The initiatives repository may be nil, in which case initiative existence
// is not checked on workflow creation.
func RegisterGovernanceHandler(r *gin.Engine, engine governance.EngineTraits,
	initiatives initiative.Repository, middleWares ...gin.HandlerFunc) {
	handler := &governanceHandler{
		engine:      engine,
		initiatives: initiatives,
		validator:   validator.New(),
	}

	w := r.Group("/v1/workflows", middleWares...)
	w.POST("", handler.handleInitializeWorkflow)
	w.GET("", handler.handleQueryWorkflowByInitiative)
	w.GET(":workflowId", handler.handleDetailWorkflow)
	w.POST(":workflowId/advance", handler.handleAdvance)
	w.GET(":workflowId/stages", handler.handleListStages)

	s := r.Group("/v1/stages", middleWares...)
	s.POST(":stageId/approvals", handler.handleOpenApproval)
	s.GET(":stageId/approvals", handler.handleListApprovals)
	s.POST(":stageId/approvals/:approvalId/decision", handler.handleSubmitDecision)
}

type governanceHandler struct {
	engine      governance.EngineTraits
	initiatives initiative.Repository
	validator   *validator.Validate
}

func (h *governanceHandler) handleInitializeWorkflow(c *gin.Context) {
	creation := governance.WorkflowCreation{}
	err := c.ShouldBindBodyWith(&creation, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(creation); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	if h.initiatives != nil {
		found, err := h.initiatives.Exists(c.Request.Context(), creation.InitiativeID)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		if !found {
			panic(&bizerror.ErrBadParam{Cause: fmt.Errorf("initiative '%s' not found", creation.InitiativeID)})
		}
	}

	detail, err := h.engine.InitializeWorkflow(c.Request.Context(), &creation)
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusCreated, detail)
}

func (h *governanceHandler) handleQueryWorkflowByInitiative(c *gin.Context) {
	query := WorkflowQuery{}
	_ = c.MustBindWith(&query, binding.Query)
	if err := h.validator.Struct(query); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	detail, err := h.engine.DetailWorkflowByInitiative(c.Request.Context(), query.InitiativeID)
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *governanceHandler) handleDetailWorkflow(c *gin.Context) {
	id, ok := parseIDParam(c, "workflowId")
	if !ok {
		return
	}

	detail, err := h.engine.DetailWorkflow(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *governanceHandler) handleAdvance(c *gin.Context) {
	id, ok := parseIDParam(c, "workflowId")
	if !ok {
		return
	}

	workflow, err := h.engine.Advance(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, workflow)
}

func (h *governanceHandler) handleListStages(c *gin.Context) {
	id, ok := parseIDParam(c, "workflowId")
	if !ok {
		return
	}

	stages, err := h.engine.ListStages(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, stages)
}

func (h *governanceHandler) handleOpenApproval(c *gin.Context) {
	stageID, ok := parseIDParam(c, "stageId")
	if !ok {
		return
	}

	creation := governance.ApprovalCreation{}
	err := c.ShouldBindBodyWith(&creation, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(creation); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	approval, err := h.engine.OpenApproval(c.Request.Context(), stageID, &creation)
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusCreated, approval)
}

func (h *governanceHandler) handleListApprovals(c *gin.Context) {
	stageID, ok := parseIDParam(c, "stageId")
	if !ok {
		return
	}

	approvals, err := h.engine.ListApprovals(c.Request.Context(), stageID)
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, approvals)
}

func (h *governanceHandler) handleSubmitDecision(c *gin.Context) {
	stageID, ok := parseIDParam(c, "stageId")
	if !ok {
		return
	}
	approvalID, ok := parseIDParam(c, "approvalId")
	if !ok {
		return
	}

	submission := governance.DecisionSubmission{}
	err := c.ShouldBindBodyWith(&submission, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err = h.validator.Struct(submission); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	stage, err := h.engine.SubmitApprovalDecision(c.Request.Context(), stageID, approvalID, &submission)
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, stage)
}

func parseIDParam(c *gin.Context, name string) (types.ID, bool) {
	id, err := types.ParseID(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, &misc.ErrorBody{Code: "common.bad_param",
			Message: "invalid id '" + c.Param(name) + "'"})
		return 0, false
	}
	return id, true
}
