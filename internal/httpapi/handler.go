// Package httpapi exposes the drip ledger and its two protocols over a gin
// REST surface. The caller's account identity arrives in the X-Account-ID
// header; owner-gated routes compare it against the configured owner.
package httpapi

import (
	"net/http"

	"drip-controlplane/pkg/config"
	"drip-controlplane/pkg/db/pagination"
	"drip-controlplane/pkg/errutil"
	"drip-controlplane/pkg/health"
	"drip-controlplane/pkg/middleware"
	"drip-controlplane/services/authz"
	"drip-controlplane/services/collect"
	"drip-controlplane/services/ledger"
	"drip-controlplane/services/redeem"
	"drip-controlplane/services/weighting"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

const accountHeader = "X-Account-ID"

var Module = fx.Module("httpapi",
	fx.Provide(ProvideRouter),
)

type RouterParams struct {
	fx.In
	Config    *config.Config
	Health    health.HealthService
	Ledger    *ledger.Service
	Collect   *collect.Service
	Redeem    *redeem.Service
	Authz     *authz.Service
	Weighting *weighting.Service
}

type handler struct {
	ledger    *ledger.Service
	collect   *collect.Service
	redeem    *redeem.Service
	authz     *authz.Service
	weighting *weighting.Service
}

func ProvideRouter(p RouterParams) *gin.Engine {
	if p.Config.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.Error())

	r.GET("/healthz", p.Health.Liveness)
	r.GET("/readyz", p.Health.Readiness)

	h := &handler{
		ledger:    p.Ledger,
		collect:   p.Collect,
		redeem:    p.Redeem,
		authz:     p.Authz,
		weighting: p.Weighting,
	}

	v1 := r.Group("/v1")
	{
		v1.POST("/collect", h.collectDrips)
		v1.POST("/redeem", h.redeemDrips)
		v1.GET("/accounts/:id/balance", h.balance)
		v1.GET("/accounts/:id/journal", h.journal)
		v1.GET("/supply", h.supply)
		v1.POST("/storage/deposit", h.storageDeposit)
		v1.GET("/coefficients", h.coefficients)
		v1.PUT("/coefficients", h.setCoefficient)
		v1.GET("/allowlist", h.allowList)
		v1.POST("/allowlist", h.addAllowedSource)
		v1.POST("/allowlist/challenge", h.challengeAllowedSource)
		v1.DELETE("/allowlist/:source", h.removeAllowedSource)
	}

	return r
}

func requireCaller(c *gin.Context) (string, bool) {
	account := c.GetHeader(accountHeader)
	if account == "" {
		_ = c.Error(errutil.BadRequest("missing " + accountHeader + " header"))
		return "", false
	}
	return account, true
}

func (h *handler) collectDrips(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var body struct {
		Sources []string `json:"sources" binding:"required"`
		Deposit uint64   `json:"deposit"`
		Budget  uint64   `json:"budget"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		_ = c.Error(errutil.BadRequest(err.Error()))
		return
	}

	result, err := h.collect.Collect(c.Request.Context(), collect.CollectRequest{
		Caller:  caller,
		Sources: body.Sources,
		Deposit: body.Deposit,
		Budget:  body.Budget,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *handler) redeemDrips(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var body struct {
		Source  string `json:"source" binding:"required"`
		Amount  uint64 `json:"amount"`
		Msg     string `json:"msg"`
		Deposit uint64 `json:"deposit"`
		Budget  uint64 `json:"budget"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		_ = c.Error(errutil.BadRequest(err.Error()))
		return
	}

	result, err := h.redeem.Redeem(c.Request.Context(), redeem.RedeemRequest{
		Caller:  caller,
		Source:  body.Source,
		Amount:  body.Amount,
		Msg:     body.Msg,
		Deposit: body.Deposit,
		Budget:  body.Budget,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *handler) balance(c *gin.Context) {
	account := c.Param("id")
	if !h.ledger.Registered(account) {
		_ = c.Error(errutil.NotRegistered("account " + account + " is not registered"))
		return
	}

	if source, ok := c.GetQuery("source"); ok {
		c.JSON(http.StatusOK, gin.H{
			"account_id": account,
			"source_id":  source,
			"balance":    h.ledger.SourceBalanceOf(account, source),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"account_id": account,
		"balance":    h.ledger.BalanceOf(account),
		"balances":   h.ledger.Balances(account),
	})
}

func (h *handler) journal(c *gin.Context) {
	account := c.Param("id")
	if !h.ledger.Registered(account) {
		_ = c.Error(errutil.NotRegistered("account " + account + " is not registered"))
		return
	}

	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		_ = c.Error(errutil.BadRequest(err.Error()))
		return
	}

	entries, info, err := h.ledger.Journal(c.Request.Context(), account, page)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"account_id": account,
		"entries":    entries,
		"page_info":  info,
	})
}

func (h *handler) supply(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"total_supply": h.ledger.TotalSupply()})
}

func (h *handler) storageDeposit(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var body struct {
		Amount uint64 `json:"amount"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		_ = c.Error(errutil.BadRequest(err.Error()))
		return
	}

	credit, err := h.ledger.StorageDeposit(c.Request.Context(), caller, body.Amount)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"account_id": caller, "credit": credit})
}

func (h *handler) coefficients(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"coefficients": h.weighting.Coefficients()})
}

func (h *handler) setCoefficient(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var body struct {
		Metric string `json:"metric" binding:"required"`
		Weight uint64 `json:"weight"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		_ = c.Error(errutil.BadRequest(err.Error()))
		return
	}

	if err := h.weighting.SetCoefficient(c.Request.Context(), caller, body.Metric, body.Weight); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"metric": body.Metric, "weight": body.Weight})
}

func (h *handler) allowList(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sources": h.authz.AllowList()})
}

func (h *handler) addAllowedSource(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var body struct {
		Source           string `json:"source" binding:"required"`
		VerificationCode string `json:"verification_code"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		_ = c.Error(errutil.BadRequest(err.Error()))
		return
	}

	if err := h.authz.Add(c.Request.Context(), caller, body.Source, body.VerificationCode); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"source_id": body.Source})
}

func (h *handler) challengeAllowedSource(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var body struct {
		Source string `json:"source" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		_ = c.Error(errutil.BadRequest(err.Error()))
		return
	}

	code, err := h.authz.Challenge(c.Request.Context(), caller, body.Source)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"source_id": body.Source, "verification_code": code})
}

func (h *handler) removeAllowedSource(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	if err := h.authz.Remove(c.Request.Context(), caller, c.Param("source")); err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}
