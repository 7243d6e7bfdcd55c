package servehttp

import (
	"net/http"

	"steward/domain"
	"steward/domain/tier"

	"github.com/gin-gonic/gin"
)

type RiskTierDetail struct {
	RiskTier domain.RiskTier      `json:"riskTier"`
	Stages   []tier.StageTemplate `json:"stages"`
}

// RegisterTierHandler exposes the read-only risk tier catalog.
func RegisterTierHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/risk-tiers", middleWares...)
	g.GET("", handleListRiskTiers)
}

func handleListRiskTiers(c *gin.Context) {
	tiers := tier.Tiers()
	details := make([]RiskTierDetail, 0, len(tiers))
	for _, t := range tiers {
		templates, err := tier.TemplatesFor(t)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		details = append(details, RiskTierDetail{RiskTier: t, Stages: templates})
	}
	c.JSON(http.StatusOK, details)
}
