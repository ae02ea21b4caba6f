package history_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/yashrajoria/catalog-seeder/database"
	"github.com/yashrajoria/catalog-seeder/history"
	"github.com/yashrajoria/catalog-seeder/models"
)

// GormRepositorySuite runs against a real Postgres named by POSTGRES_TEST_HOST.
type GormRepositorySuite struct {
	suite.Suite
	db   *gorm.DB
	tx   *gorm.DB
	repo *history.GormRepository
}

func (s *GormRepositorySuite) SetupSuite() {
	_ = godotenv.Load("../.env.test")

	host := os.Getenv("POSTGRES_TEST_HOST")
	if host == "" {
		s.T().Skip("POSTGRES_TEST_HOST not set")
	}
	db, err := database.ConnectPostgres(database.PostgresConfig{
		Host:     host,
		Port:     os.Getenv("POSTGRES_TEST_PORT"),
		User:     os.Getenv("POSTGRES_TEST_USER"),
		Password: os.Getenv("POSTGRES_TEST_PASSWORD"),
		DBName:   os.Getenv("POSTGRES_TEST_DB"),
	}, zap.NewNop())
	s.Require().NoError(err)
	s.Require().NoError(history.NewGormRepository(db).Migrate())
	s.db = db
}

func (s *GormRepositorySuite) TearDownSuite() {
	if s.db != nil {
		_ = database.ClosePostgres(s.db)
	}
}

// Each test runs in a transaction that is rolled back afterwards.
func (s *GormRepositorySuite) BeforeTest(_, _ string) {
	s.tx = s.db.Begin()
	s.repo = history.NewGormRepository(s.tx)
}

func (s *GormRepositorySuite) AfterTest(_, _ string) {
	s.tx.Rollback()
}

func TestGormRepositorySuite(t *testing.T) {
	suite.Run(t, new(GormRepositorySuite))
}

func (s *GormRepositorySuite) TestCreateFindAndList() {
	ctx := context.Background()
	report := &models.DryRunReport{Sections: []models.SectionResult{{Name: models.SectionBrands, WillCreate: 2, TotalJSON: 2}}}
	rec := &models.RunRecord{
		ID:          uuid.New(),
		Trigger:     "test",
		State:       models.RunStateDone,
		SeedVersion: 1,
		ReportJSON:  `{"sections":[{"name":"brands","will_create":2,"will_update":0,"will_skip":0,"will_delete":0,"total_json":2}]}`,
		OutcomeJSON: `{"sections":{"brands":{"upserted":2,"deleted":0}}}`,
		Upserted:    2,
	}

	s.NoError(s.repo.Create(ctx, rec))

	found, err := s.repo.FindByID(ctx, rec.ID)
	s.Require().NoError(err)
	s.Equal(report, found.Report)
	s.Equal(2, found.Outcome.Get(models.SectionBrands).Upserted)

	runs, total, err := s.repo.List(ctx, 1, 10)
	s.Require().NoError(err)
	s.GreaterOrEqual(total, int64(1))
	s.NotEmpty(runs)
}
