package app

import (
	"tripdesk/internal/auth"
	"tripdesk/internal/discussions"
	"tripdesk/internal/repo"

	"gorm.io/gorm"
)

// Services holds all application services
type Services struct {
	DB                *gorm.DB
	AuthService       *auth.Service
	UserRepo          *repo.UserRepository
	TenantRepo        *repo.TenantRepository
	ProgramRepo       *repo.ProgramRepository
	DiscussionRepo    *repo.DiscussionRepository
	DiscussionService *discussions.Service
}

// NewServices creates a new services container
func NewServices(db *gorm.DB) *Services {
	userRepo := repo.NewUserRepository(db)
	tenantRepo := repo.NewTenantRepository(db)
	programRepo := repo.NewProgramRepository(db)
	discussionRepo := repo.NewDiscussionRepository(db)

	authService := auth.NewService(userRepo)
	discussionService := discussions.NewService(discussionRepo)

	return &Services{
		DB:                db,
		AuthService:       authService,
		UserRepo:          userRepo,
		TenantRepo:        tenantRepo,
		ProgramRepo:       programRepo,
		DiscussionRepo:    discussionRepo,
		DiscussionService: discussionService,
	}
}
