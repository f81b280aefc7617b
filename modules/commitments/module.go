package commitments

import (
	"embed"

	"github.com/pactline/pactline/modules/commitments/infrastructure/persistence"
	"github.com/pactline/pactline/modules/commitments/infrastructure/tokens"
	"github.com/pactline/pactline/modules/commitments/presentation/controllers"
	"github.com/pactline/pactline/modules/commitments/services"
	"github.com/pactline/pactline/pkg/application"
	"github.com/pactline/pactline/pkg/configuration"
)

//go:embed infrastructure/persistence/schema/commitments-schema.sql
var MigrationFiles embed.FS

func NewModule() application.Module {
	return &Module{}
}

type Module struct{}

func (m *Module) Register(app application.Application) error {
	conf := configuration.Use()
	app.Migrations().RegisterSchema(&MigrationFiles)

	commitmentRepo := persistence.NewCommitmentRepository()
	changeRequestRepo := persistence.NewChangeRequestRepository()
	historyRepo := persistence.NewHistoryRepository()
	tokenService := tokens.NewJWTService(
		conf.Tokens.Secret,
		conf.Tokens.ApprovalTTL,
		conf.Tokens.AcceptanceTTL,
	)

	commitmentService := services.NewCommitmentService(
		commitmentRepo,
		changeRequestRepo,
		historyRepo,
		tokenService,
		app.EventPublisher(),
		conf.Origin,
	)
	resolutionService := services.NewResolutionService(
		commitmentRepo,
		changeRequestRepo,
		historyRepo,
		tokenService,
		app.EventPublisher(),
		conf.ResolutionStatus,
		conf.Origin,
	)
	linkService := services.NewLinkService(tokenService, commitmentRepo, commitmentService)
	timelineService := services.NewTimelineService(commitmentRepo, historyRepo, changeRequestRepo)

	app.RegisterServices(
		commitmentService,
		resolutionService,
		linkService,
		timelineService,
	)

	app.RegisterControllers(
		controllers.NewCommitmentAPIController(app),
		controllers.NewPublicLinkController(app),
	)

	services.RegisterNotificationRelay(
		app.EventPublisher(),
		services.NewLogDispatcher(app.Logger()),
		app.Logger(),
	)

	return nil
}

func (m *Module) Name() string {
	return "commitments"
}
