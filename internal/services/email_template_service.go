package services

import (
	"context"
	"fmt"

	"github.com/zsleinadg/WebCarros/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const emailTemplatesCollection = "email_templates"

// Built-in templates used when the database has no row for the ID.
// Keeps transactional mail working on a fresh deployment.
var defaultEmailTemplates = map[string]models.EmailTemplate{
	"welcome": {
		TemplateID: "welcome",
		Locale:     "pt-BR",
		Subject:    "Bem-vindo ao WebCarros, {{.name}}!",
		Body:       "Olá {{.name}},\n\nSua conta foi criada com sucesso. Acesse o painel para cadastrar seu primeiro carro.\n\nEquipe WebCarros",
	},
	"car_published": {
		TemplateID: "car_published",
		Locale:     "pt-BR",
		Subject:    "Seu carro {{.car_name}} foi publicado",
		Body:       "Olá {{.name}},\n\nSeu anúncio {{.car_name}} já está visível para todos os visitantes.\n\nEquipe WebCarros",
	},
}

// IEmailTemplateService resolves templates for outgoing mail.
type IEmailTemplateService interface {
	GetTemplate(ctx context.Context, templateID, locale string) (*models.EmailTemplate, error)
}

// EmailTemplateService stores templates in Mongo with built-in fallbacks.
type EmailTemplateService struct {
	db *mongo.Database
}

func NewEmailTemplateService(db *mongo.Database) *EmailTemplateService {
	return &EmailTemplateService{db: db}
}

// GetTemplate looks up a template by ID and locale, falling back to the
// built-in defaults when the database has none.
func (s *EmailTemplateService) GetTemplate(ctx context.Context, templateID string, locale string) (*models.EmailTemplate, error) {
	filter := bson.M{"template_id": templateID, "locale": locale}

	var template models.EmailTemplate
	err := s.db.Collection(emailTemplatesCollection).FindOne(ctx, filter).Decode(&template)
	if err == nil {
		return &template, nil
	}
	if err == mongo.ErrNoDocuments {
		if defaultTemplate, ok := defaultEmailTemplates[templateID]; ok {
			return &defaultTemplate, nil
		}
		return nil, fmt.Errorf("template not found: %s (locale: %s)", templateID, locale)
	}
	return nil, fmt.Errorf("error retrieving template: %w", err)
}

// SaveTemplate upserts a template keyed by ID and locale.
func (s *EmailTemplateService) SaveTemplate(ctx context.Context, template *models.EmailTemplate) error {
	filter := bson.M{"template_id": template.TemplateID, "locale": template.Locale}
	_, err := s.db.Collection(emailTemplatesCollection).UpdateOne(
		ctx, filter, bson.M{"$set": template}, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("error saving template: %w", err)
	}
	return nil
}

func (s *EmailTemplateService) DeleteTemplate(ctx context.Context, templateID string, locale string) error {
	filter := bson.M{"template_id": templateID, "locale": locale}
	if _, err := s.db.Collection(emailTemplatesCollection).DeleteOne(ctx, filter); err != nil {
		return fmt.Errorf("error deleting template: %w", err)
	}
	return nil
}
