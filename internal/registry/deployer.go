package registry

import (
	"context"

	"examledger/internal/exam"
)

// Deployer is the deployment primitive: it produces a fresh, independently
// addressed exam instance whose state stays uninitialized until the registry
// calls Initialize exactly once.
type Deployer interface {
	Deploy(ctx context.Context) (*exam.Instance, error)
}

// TemplateDeployer clones instances from a shared template descriptor.
type TemplateDeployer struct {
	template exam.Template
}

func NewTemplateDeployer(template exam.Template) *TemplateDeployer {
	return &TemplateDeployer{template: template}
}

func (d *TemplateDeployer) Deploy(_ context.Context) (*exam.Instance, error) {
	return exam.NewFromTemplate(d.template), nil
}
