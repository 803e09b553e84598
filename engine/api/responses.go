package api

import (
	"fmt"
	"net/http"

	"github.com/autonomiq/kaizen/anomaly"
	"github.com/autonomiq/kaizen/engine"
	"github.com/autonomiq/kaizen/federation"
	"github.com/autonomiq/kaizen/pkg/api"
	"github.com/autonomiq/kaizen/privacy"
	"github.com/autonomiq/kaizen/remediation"
	"github.com/autonomiq/kaizen/rules"
)

var (
	_ api.Response = (*updateResponse)(nil)
	_ api.Response = (*modelResponse)(nil)
	_ api.Response = (*listModelResponse)(nil)
	_ api.Response = (*roundStatusResponse)(nil)
	_ api.Response = (*budgetResponse)(nil)
	_ api.Response = (*listBudgetResponse)(nil)
	_ api.Response = (*sampleResponse)(nil)
	_ api.Response = (*anomalyResponse)(nil)
	_ api.Response = (*listAnomalyResponse)(nil)
	_ api.Response = (*actionResponse)(nil)
	_ api.Response = (*listActionResponse)(nil)
	_ api.Response = (*listRuleResponse)(nil)
	_ api.Response = (*emptyResponse)(nil)
)

type updateResponse struct {
	Round uint64 `json:"round"`
}

func (u updateResponse) Code() int {
	return http.StatusAccepted
}

func (u updateResponse) Headers() map[string]string {
	return map[string]string{}
}

func (u updateResponse) Empty() bool {
	return false
}

type modelResponse struct {
	federation.GlobalModel
	published bool
}

func (m modelResponse) Code() int {
	if m.published {
		return http.StatusCreated
	}

	return http.StatusOK
}

func (m modelResponse) Headers() map[string]string {
	if m.published {
		return map[string]string{
			"Location": fmt.Sprintf("/models/%d", m.Version),
		}
	}

	return map[string]string{}
}

func (m modelResponse) Empty() bool {
	return false
}

type listModelResponse struct {
	engine.ModelPage
}

func (l listModelResponse) Code() int {
	return http.StatusOK
}

func (l listModelResponse) Headers() map[string]string {
	return map[string]string{}
}

func (l listModelResponse) Empty() bool {
	return false
}

type roundStatusResponse struct {
	federation.RoundStatus
}

func (r roundStatusResponse) Code() int {
	return http.StatusOK
}

func (r roundStatusResponse) Headers() map[string]string {
	return map[string]string{}
}

func (r roundStatusResponse) Empty() bool {
	return false
}

type budgetResponse struct {
	privacy.Budget
}

func (b budgetResponse) Code() int {
	return http.StatusOK
}

func (b budgetResponse) Headers() map[string]string {
	return map[string]string{}
}

func (b budgetResponse) Empty() bool {
	return false
}

type listBudgetResponse struct {
	engine.BudgetPage
}

func (l listBudgetResponse) Code() int {
	return http.StatusOK
}

func (l listBudgetResponse) Headers() map[string]string {
	return map[string]string{}
}

func (l listBudgetResponse) Empty() bool {
	return false
}

type sampleResponse struct{}

func (s sampleResponse) Code() int {
	return http.StatusAccepted
}

func (s sampleResponse) Headers() map[string]string {
	return map[string]string{}
}

func (s sampleResponse) Empty() bool {
	return true
}

type anomalyResponse struct {
	anomaly.Anomaly
}

func (a anomalyResponse) Code() int {
	return http.StatusOK
}

func (a anomalyResponse) Headers() map[string]string {
	return map[string]string{}
}

func (a anomalyResponse) Empty() bool {
	return false
}

type listAnomalyResponse struct {
	engine.AnomalyPage
}

func (l listAnomalyResponse) Code() int {
	return http.StatusOK
}

func (l listAnomalyResponse) Headers() map[string]string {
	return map[string]string{}
}

func (l listAnomalyResponse) Empty() bool {
	return false
}

type actionResponse struct {
	remediation.Action
	canceled bool
}

func (a actionResponse) Code() int {
	if a.canceled {
		return http.StatusNoContent
	}

	return http.StatusOK
}

func (a actionResponse) Headers() map[string]string {
	return map[string]string{}
}

func (a actionResponse) Empty() bool {
	return a.canceled
}

type listActionResponse struct {
	engine.ActionPage
}

func (l listActionResponse) Code() int {
	return http.StatusOK
}

func (l listActionResponse) Headers() map[string]string {
	return map[string]string{}
}

func (l listActionResponse) Empty() bool {
	return false
}

type listRuleResponse struct {
	Rules []rules.Rule `json:"rules"`
}

func (l listRuleResponse) Code() int {
	return http.StatusOK
}

func (l listRuleResponse) Headers() map[string]string {
	return map[string]string{}
}

func (l listRuleResponse) Empty() bool {
	return false
}

type emptyResponse struct{}

func (e emptyResponse) Code() int {
	return http.StatusNoContent
}

func (e emptyResponse) Headers() map[string]string {
	return map[string]string{}
}

func (e emptyResponse) Empty() bool {
	return true
}
