package api

import (
	"github.com/autonomiq/kaizen/federation"
	"github.com/autonomiq/kaizen/pkg/api"
	"github.com/autonomiq/kaizen/policy"
	"github.com/autonomiq/kaizen/telemetry"
)

type updateReq struct {
	federation.ModelUpdate `json:",inline"`
}

func (u *updateReq) validate() error {
	if u.ParticipantID == "" {
		return api.ErrMissingID
	}

	return nil
}

type sampleReq struct {
	telemetry.Sample `json:",inline"`
}

func (s *sampleReq) validate() error {
	if s.Metric == "" {
		return api.ErrValidation
	}

	return nil
}

type entityReq struct {
	id string
}

func (e *entityReq) validate() error {
	if e.id == "" {
		return api.ErrMissingID
	}

	return nil
}

type versionReq struct {
	version uint64
}

func (v *versionReq) validate() error {
	return nil
}

type listEntityReq struct {
	offset, limit uint64
}

func (e *listEntityReq) validate() error {
	return nil
}

type policyReq struct {
	policy *policy.Policy
}

func (p *policyReq) validate() error {
	if p.policy == nil {
		return api.ErrValidation
	}

	return nil
}

type emptyReq struct{}
