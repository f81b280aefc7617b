package modules

import (
	"github.com/pactline/pactline/modules/commitments"
	"github.com/pactline/pactline/pkg/application"
)

var BuiltInModules = []application.Module{
	commitments.NewModule(),
}

func Load(app application.Application, externalModules ...application.Module) error {
	for _, module := range externalModules {
		if err := module.Register(app); err != nil {
			return err
		}
	}
	return nil
}
