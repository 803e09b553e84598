package api

import (
	"context"
	"errors"

	"github.com/go-kit/kit/endpoint"

	"github.com/autonomiq/kaizen/engine"
	"github.com/autonomiq/kaizen/pkg/api"
	pkgerrors "github.com/autonomiq/kaizen/pkg/errors"
)

func submitUpdateEndpoint(svc engine.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(updateReq)
		if !ok {
			return updateResponse{}, errors.Join(api.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return updateResponse{}, errors.Join(api.ErrValidation, err)
		}

		if err := svc.SubmitUpdate(ctx, req.ModelUpdate); err != nil {
			return updateResponse{}, err
		}

		return updateResponse{
			Round: req.Round,
		}, nil
	}
}

func closeRoundEndpoint(svc engine.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		if _, ok := request.(emptyReq); !ok {
			return modelResponse{}, errors.Join(api.ErrValidation, pkgerrors.ErrInvalidData)
		}

		model, err := svc.CloseRound(ctx)
		if err != nil {
			return modelResponse{}, err
		}

		return modelResponse{
			GlobalModel: model,
			published:   true,
		}, nil
	}
}

func roundStatusEndpoint(svc engine.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		if _, ok := request.(emptyReq); !ok {
			return roundStatusResponse{}, errors.Join(api.ErrValidation, pkgerrors.ErrInvalidData)
		}

		status, err := svc.RoundStatus(ctx)
		if err != nil {
			return roundStatusResponse{}, err
		}

		return roundStatusResponse{
			RoundStatus: status,
		}, nil
	}
}

func getModelEndpoint(svc engine.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(versionReq)
		if !ok {
			return modelResponse{}, errors.Join(api.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return modelResponse{}, errors.Join(api.ErrValidation, err)
		}

		model, err := svc.GetModel(ctx, req.version)
		if err != nil {
			return modelResponse{}, err
		}

		return modelResponse{
			GlobalModel: model,
		}, nil
	}
}

func listModelsEndpoint(svc engine.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listEntityReq)
		if !ok {
			return listModelResponse{}, errors.Join(api.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listModelResponse{}, errors.Join(api.ErrValidation, err)
		}

		models, err := svc.ListModels(ctx, req.offset, req.limit)
		if err != nil {
			return listModelResponse{}, err
		}

		return listModelResponse{
			ModelPage: models,
		}, nil
	}
}

func getBudgetEndpoint(svc engine.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return budgetResponse{}, errors.Join(api.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return budgetResponse{}, errors.Join(api.ErrValidation, err)
		}

		budget, err := svc.CohortBudget(ctx, req.id)
		if err != nil {
			return budgetResponse{}, err
		}

		return budgetResponse{
			Budget: budget,
		}, nil
	}
}

func listBudgetsEndpoint(svc engine.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listEntityReq)
		if !ok {
			return listBudgetResponse{}, errors.Join(api.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listBudgetResponse{}, errors.Join(api.ErrValidation, err)
		}

		budgets, err := svc.ListBudgets(ctx, req.offset, req.limit)
		if err != nil {
			return listBudgetResponse{}, err
		}

		return listBudgetResponse{
			BudgetPage: budgets,
		}, nil
	}
}

func ingestEndpoint(svc engine.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(sampleReq)
		if !ok {
			return sampleResponse{}, errors.Join(api.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return sampleResponse{}, errors.Join(api.ErrValidation, err)
		}

		if err := svc.Ingest(ctx, req.Sample); err != nil {
			return sampleResponse{}, err
		}

		return sampleResponse{}, nil
	}
}

func getAnomalyEndpoint(svc engine.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return anomalyResponse{}, errors.Join(api.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return anomalyResponse{}, errors.Join(api.ErrValidation, err)
		}

		record, err := svc.GetAnomaly(ctx, req.id)
		if err != nil {
			return anomalyResponse{}, err
		}

		return anomalyResponse{
			Anomaly: record,
		}, nil
	}
}

func listAnomaliesEndpoint(svc engine.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listEntityReq)
		if !ok {
			return listAnomalyResponse{}, errors.Join(api.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listAnomalyResponse{}, errors.Join(api.ErrValidation, err)
		}

		anomalies, err := svc.ListAnomalies(ctx, req.offset, req.limit)
		if err != nil {
			return listAnomalyResponse{}, err
		}

		return listAnomalyResponse{
			AnomalyPage: anomalies,
		}, nil
	}
}

func getActionEndpoint(svc engine.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return actionResponse{}, errors.Join(api.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return actionResponse{}, errors.Join(api.ErrValidation, err)
		}

		action, err := svc.GetAction(ctx, req.id)
		if err != nil {
			return actionResponse{}, err
		}

		return actionResponse{
			Action: action,
		}, nil
	}
}

func listActionsEndpoint(svc engine.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listEntityReq)
		if !ok {
			return listActionResponse{}, errors.Join(api.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listActionResponse{}, errors.Join(api.ErrValidation, err)
		}

		actions, err := svc.ListActions(ctx, req.offset, req.limit)
		if err != nil {
			return listActionResponse{}, err
		}

		return listActionResponse{
			ActionPage: actions,
		}, nil
	}
}

func cancelActionEndpoint(svc engine.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return actionResponse{}, errors.Join(api.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return actionResponse{}, errors.Join(api.ErrValidation, err)
		}

		if err := svc.CancelAction(ctx, req.id); err != nil {
			return actionResponse{}, err
		}

		return actionResponse{
			canceled: true,
		}, nil
	}
}

func listRulesEndpoint(svc engine.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		if _, ok := request.(emptyReq); !ok {
			return listRuleResponse{}, errors.Join(api.ErrValidation, pkgerrors.ErrInvalidData)
		}

		res, err := svc.ListRules(ctx)
		if err != nil {
			return listRuleResponse{}, err
		}

		return listRuleResponse{
			Rules: res,
		}, nil
	}
}

func enableRuleEndpoint(svc engine.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return emptyResponse{}, errors.Join(api.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return emptyResponse{}, errors.Join(api.ErrValidation, err)
		}

		if err := svc.EnableRule(ctx, req.id); err != nil {
			return emptyResponse{}, err
		}

		return emptyResponse{}, nil
	}
}

func disableRuleEndpoint(svc engine.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return emptyResponse{}, errors.Join(api.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return emptyResponse{}, errors.Join(api.ErrValidation, err)
		}

		if err := svc.DisableRule(ctx, req.id); err != nil {
			return emptyResponse{}, err
		}

		return emptyResponse{}, nil
	}
}

func reloadPolicyEndpoint(svc engine.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(policyReq)
		if !ok {
			return emptyResponse{}, errors.Join(api.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return emptyResponse{}, errors.Join(api.ErrValidation, err)
		}

		if err := svc.ReloadPolicy(ctx, req.policy); err != nil {
			return emptyResponse{}, err
		}

		return emptyResponse{}, nil
	}
}
