package servehttp

import (
	"io/ioutil"
	"net/http"

	"steward/advisory"
	"steward/bizerror"
	"steward/domain"

	"github.com/gin-gonic/gin"
)

// RegisterAdvisoryHandler mounts the advisory routes. The request body, when
// present, is the initiative snapshot forwarded verbatim to the advisory
// service.
func RegisterAdvisoryHandler(r *gin.Engine, service advisory.ServiceTraits, middleWares ...gin.HandlerFunc) {
	handler := &advisoryHandler{service: service}

	g := r.Group("/v1/workflows", middleWares...)
	g.POST(":workflowId/advisories/:kind", handler.handleRequestAdvisory)
	g.GET(":workflowId/advisories", handler.handleListAnnotations)
}

type advisoryHandler struct {
	service advisory.ServiceTraits
}

func (h *advisoryHandler) handleRequestAdvisory(c *gin.Context) {
	workflowID, ok := parseIDParam(c, "workflowId")
	if !ok {
		return
	}

	snapshot, err := ioutil.ReadAll(c.Request.Body)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	annotation, err := h.service.RequestAdvisory(c.Request.Context(), workflowID,
		c.Param("kind"), domain.JSONDocument(snapshot))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	if annotation == nil {
		// advisory unavailable, the workflow proceeds without it
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusCreated, annotation)
}

func (h *advisoryHandler) handleListAnnotations(c *gin.Context) {
	workflowID, ok := parseIDParam(c, "workflowId")
	if !ok {
		return
	}

	annotations, err := h.service.ListAnnotations(c.Request.Context(), workflowID)
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, annotations)
}
