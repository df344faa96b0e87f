package auth

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/zfogg/clipstream/backend/internal/database"
	"github.com/zfogg/clipstream/backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type AuthServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	service *Service
}

func (suite *AuthServiceTestSuite) SetupSuite() {
	host := envOrDefault("POSTGRES_HOST", "localhost")
	port := envOrDefault("POSTGRES_PORT", "5432")
	user := envOrDefault("POSTGRES_USER", "postgres")
	password := os.Getenv("POSTGRES_PASSWORD")
	dbname := envOrDefault("POSTGRES_DB", "clipstream_test")

	dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable", host, port, user, dbname)
	if password != "" {
		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", host, port, user, password, dbname)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		suite.T().Skipf("Skipping: test database not available (%v)", err)
		return
	}

	suite.db = db
	database.DB = db

	var count int64
	db.Raw("SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = 'public' AND table_name = 'users'").Scan(&count)
	if count == 0 {
		require.NoError(suite.T(), db.AutoMigrate(
			&models.User{},
			&models.Session{},
			&models.PasswordReset{},
			&models.Video{},
			&models.Reaction{},
			&models.WatchlistItem{},
			&models.Comment{},
		))
	}

	suite.service = NewService([]byte("test-secret-do-not-use-in-prod"), "", "")
}

func (suite *AuthServiceTestSuite) TearDownSuite() {
	if suite.db != nil {
		sqlDB, _ := suite.db.DB()
		sqlDB.Close()
	}
}

func (suite *AuthServiceTestSuite) SetupTest() {
	suite.db.Exec("TRUNCATE TABLE password_resets, sessions RESTART IDENTITY CASCADE")
	suite.db.Exec("TRUNCATE TABLE reactions, watchlist_items, comments, videos RESTART IDENTITY CASCADE")
	suite.db.Exec("TRUNCATE TABLE users RESTART IDENTITY CASCADE")
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func (suite *AuthServiceTestSuite) register(email, username string) *AuthResponse {
	resp, err := suite.service.RegisterUser(RegisterRequest{
		Email:       email,
		Username:    username,
		Password:    "password123",
		DisplayName: "Test User",
	}, ClientInfo{UserAgent: "go-test", IPAddress: "127.0.0.1"})
	require.NoError(suite.T(), err)
	return resp
}

func (suite *AuthServiceTestSuite) TestRegisterIssuesWorkingToken() {
	t := suite.T()

	resp := suite.register("alice@example.com", "alice")
	assert.NotEmpty(t, resp.Token)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), resp.ExpiresAt, time.Minute)

	user, sessionID, err := suite.service.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, user.ID)
	assert.NotEmpty(t, sessionID)
}

func (suite *AuthServiceTestSuite) TestRegisterDuplicateEmail() {
	t := suite.T()

	suite.register("alice@example.com", "alice")

	_, err := suite.service.RegisterUser(RegisterRequest{
		Email:       "ALICE@example.com",
		Username:    "alice2",
		Password:    "password123",
		DisplayName: "Alice Again",
	}, ClientInfo{})
	assert.ErrorIs(t, err, ErrUserExists)
}

func (suite *AuthServiceTestSuite) TestRegisterDuplicateUsername() {
	t := suite.T()

	suite.register("alice@example.com", "alice")

	_, err := suite.service.RegisterUser(RegisterRequest{
		Email:       "other@example.com",
		Username:    "Alice",
		Password:    "password123",
		DisplayName: "Impostor",
	}, ClientInfo{})
	assert.ErrorIs(t, err, ErrUsernameExists)
}

func (suite *AuthServiceTestSuite) TestLoginWrongPassword() {
	t := suite.T()

	suite.register("alice@example.com", "alice")

	_, err := suite.service.LoginUser(LoginRequest{
		Email:    "alice@example.com",
		Password: "not-the-password",
	}, ClientInfo{})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func (suite *AuthServiceTestSuite) TestLoginUnknownEmail() {
	t := suite.T()

	_, err := suite.service.LoginUser(LoginRequest{
		Email:    "nobody@example.com",
		Password: "password123",
	}, ClientInfo{})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func (suite *AuthServiceTestSuite) TestLoginBannedUser() {
	t := suite.T()

	resp := suite.register("alice@example.com", "alice")
	suite.db.Model(&models.User{}).Where("id = ?", resp.User.ID).
		UpdateColumn("is_banned", true)

	_, err := suite.service.LoginUser(LoginRequest{
		Email:    "alice@example.com",
		Password: "password123",
	}, ClientInfo{})
	assert.ErrorIs(t, err, ErrUserBanned)
}

func (suite *AuthServiceTestSuite) TestRevokedSessionRejected() {
	t := suite.T()

	resp := suite.register("alice@example.com", "alice")
	_, sessionID, err := suite.service.ValidateToken(resp.Token)
	require.NoError(t, err)

	require.NoError(t, suite.service.RevokeSession(sessionID))

	_, _, err = suite.service.ValidateToken(resp.Token)
	assert.ErrorIs(t, err, ErrSessionRevoked)
}

func (suite *AuthServiceTestSuite) TestTamperedTokenRejected() {
	t := suite.T()

	resp := suite.register("alice@example.com", "alice")
	otherService := NewService([]byte("a-different-secret"), "", "")

	_, _, err := otherService.ValidateToken(resp.Token)
	assert.Error(t, err)
}

func (suite *AuthServiceTestSuite) TestVerifyEmail() {
	t := suite.T()

	resp := suite.register("alice@example.com", "alice")

	var user models.User
	suite.db.First(&user, "id = ?", resp.User.ID)
	require.NotNil(t, user.EmailVerifyToken)

	require.NoError(t, suite.service.VerifyEmail(*user.EmailVerifyToken))

	suite.db.First(&user, "id = ?", resp.User.ID)
	assert.True(t, user.EmailVerified)
	assert.Nil(t, user.EmailVerifyToken)
}

func (suite *AuthServiceTestSuite) TestPasswordResetFlow() {
	t := suite.T()

	resp := suite.register("alice@example.com", "alice")

	reset, err := suite.service.RequestPasswordReset("alice@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, reset.Token)

	require.NoError(t, suite.service.ResetPassword(reset.Token, "brand-new-pass"))

	// Old password no longer works, new one does
	_, err = suite.service.LoginUser(LoginRequest{Email: "alice@example.com", Password: "password123"}, ClientInfo{})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = suite.service.LoginUser(LoginRequest{Email: "alice@example.com", Password: "brand-new-pass"}, ClientInfo{})
	assert.NoError(t, err)

	// Sessions issued before the reset are dead
	_, _, err = suite.service.ValidateToken(resp.Token)
	assert.ErrorIs(t, err, ErrSessionRevoked)

	// Token is single-use
	err = suite.service.ResetPassword(reset.Token, "yet-another-pass")
	assert.Error(t, err)
}

func TestAuthServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceTestSuite))
}

func TestGenerateUsernameFromName(t *testing.T) {
	assert.Equal(t, "janedoe", generateUsernameFromName("Jane Doe"))
	assert.Equal(t, "user42", generateUsernameFromName("User 42!"))

	// Non-latin names fall back to a generated handle
	generated := generateUsernameFromName("日本語")
	assert.NotEmpty(t, generated)
	assert.Contains(t, generated, "user")
}

func TestRandomTokenLengthAndUniqueness(t *testing.T) {
	a := randomToken()
	b := randomToken()
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}
