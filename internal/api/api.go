package api

import (
	"clinica-cloud/internal/auth"
	"clinica-cloud/internal/cache"
	"clinica-cloud/internal/config"
	"clinica-cloud/internal/directory"
	"clinica-cloud/internal/events"
	"clinica-cloud/internal/factory"
	"clinica-cloud/internal/provision"
)

type API struct {
	Factory     *factory.ConnectionFactory
	Cache       *cache.ConnectionCache
	Directory   *directory.Client
	Provisioner *provision.Provisioner
	Events      *events.Client
	Tokens      *auth.TokenService
	Cfg         *config.Config
}

func NewAPI(
	f *factory.ConnectionFactory,
	c *cache.ConnectionCache,
	dir *directory.Client,
	p *provision.Provisioner,
	ev *events.Client,
	tokens *auth.TokenService,
	cfg *config.Config,
) *API {
	return &API{
		Factory:     f,
		Cache:       c,
		Directory:   dir,
		Provisioner: p,
		Events:      ev,
		Tokens:      tokens,
		Cfg:         cfg,
	}
}
