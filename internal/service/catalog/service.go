package catalog

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/open-apime/evomanager/internal/apperr"
	"github.com/open-apime/evomanager/internal/storage"
	"github.com/open-apime/evomanager/internal/storage/model"
)

// BackendSetter recebe a URL e a chave do backend Evolution sempre que a
// entrada do catálogo muda.
type BackendSetter interface {
	SetBackend(baseURL, apiKey string)
}

type Service struct {
	repo    storage.GlobalIntegrationRepository
	backend BackendSetter
	log     *zap.Logger
}

func NewService(repo storage.GlobalIntegrationRepository, backend BackendSetter, log *zap.Logger) *Service {
	return &Service{repo: repo, backend: backend, log: log}
}

type CreateInput struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description"`
	BackendURL  string `json:"backendUrl"`
	APIKey      string `json:"apiKey"`
	IsActive    *bool  `json:"isActive"`
}

type UpdateInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	BackendURL  *string `json:"backendUrl"`
	APIKey      *string `json:"apiKey"`
	IsActive    *bool   `json:"isActive"`
}

func validBackendURL(raw string) bool {
	if raw == "" {
		return true
	}
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (s *Service) Create(ctx context.Context, in CreateInput) (model.GlobalIntegration, error) {
	t := strings.ToUpper(strings.TrimSpace(in.Type))
	if t == "" || strings.TrimSpace(in.Name) == "" {
		return model.GlobalIntegration{}, apperr.BadRequest("type e name são obrigatórios")
	}
	if !validBackendURL(in.BackendURL) {
		return model.GlobalIntegration{}, apperr.BadRequest("backendUrl inválida")
	}

	gi := model.GlobalIntegration{
		Type:        model.IntegrationType(t),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		BackendURL:  strings.TrimRight(in.BackendURL, "/"),
		APIKey:      in.APIKey,
		IsActive:    true,
	}
	if in.IsActive != nil {
		gi.IsActive = *in.IsActive
	}

	created, err := s.repo.Create(ctx, gi)
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return model.GlobalIntegration{}, apperr.Wrap(apperr.KindConflict, "integração "+t+" já existe no catálogo", err)
		}
		return model.GlobalIntegration{}, apperr.Internal("criar integração no catálogo", err)
	}
	s.log.Info("integração adicionada ao catálogo", zap.String("type", t))
	s.notify(created)
	return created, nil
}

func (s *Service) List(ctx context.Context) ([]model.GlobalIntegration, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.Internal("listar catálogo", err)
	}
	if list == nil {
		list = []model.GlobalIntegration{}
	}
	return list, nil
}

func (s *Service) Get(ctx context.Context, t model.IntegrationType) (model.GlobalIntegration, error) {
	gi, err := s.repo.GetByType(ctx, t)
	if err != nil {
		return model.GlobalIntegration{}, storage.AppError("integração "+string(t), err)
	}
	return gi, nil
}

func (s *Service) Update(ctx context.Context, t model.IntegrationType, in UpdateInput) (model.GlobalIntegration, error) {
	gi, err := s.Get(ctx, t)
	if err != nil {
		return model.GlobalIntegration{}, err
	}

	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return model.GlobalIntegration{}, apperr.BadRequest("name não pode ser vazio")
		}
		gi.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		gi.Description = *in.Description
	}
	if in.BackendURL != nil {
		if !validBackendURL(*in.BackendURL) {
			return model.GlobalIntegration{}, apperr.BadRequest("backendUrl inválida")
		}
		gi.BackendURL = strings.TrimRight(*in.BackendURL, "/")
	}
	if in.APIKey != nil {
		gi.APIKey = *in.APIKey
	}
	if in.IsActive != nil {
		gi.IsActive = *in.IsActive
	}

	updated, err := s.repo.Update(ctx, gi)
	if err != nil {
		return model.GlobalIntegration{}, storage.AppError("atualizar integração "+string(t), err)
	}
	s.log.Info("catálogo atualizado", zap.String("type", string(t)))
	s.notify(updated)
	return updated, nil
}

// notify propaga a configuração do backend Evolution para o gateway.
func (s *Service) notify(gi model.GlobalIntegration) {
	if s.backend == nil || gi.Type != model.IntegrationTypeEvolutionAPI || gi.BackendURL == "" {
		return
	}
	s.backend.SetBackend(gi.BackendURL, gi.APIKey)
}
