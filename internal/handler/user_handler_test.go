package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/aslanbek/account-service/internal/auth"
	"github.com/aslanbek/account-service/internal/config"
	"github.com/aslanbek/account-service/internal/entity"
	"github.com/aslanbek/account-service/internal/handler"
	"github.com/aslanbek/account-service/internal/middleware"
	"github.com/aslanbek/account-service/internal/repository"
	"github.com/aslanbek/account-service/internal/router"
	"github.com/aslanbek/account-service/internal/usecase"
)

type MockUserRepository struct{ mock.Mock }

func (m *MockUserRepository) CreateUser(ctx context.Context, user *entity.User) (primitive.ObjectID, error) {
	args := m.Called(ctx, user)
	return args.Get(0).(primitive.ObjectID), args.Error(1)
}
func (m *MockUserRepository) GetUserByEmail(ctx context.Context, email string, includePassword bool) (*entity.User, error) {
	args := m.Called(ctx, email, includePassword)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}
func (m *MockUserRepository) GetUserByID(ctx context.Context, id string) (*entity.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}
func (m *MockUserRepository) UpdateUser(ctx context.Context, id string, update repository.UserUpdate) error {
	args := m.Called(ctx, id, update)
	return args.Error(0)
}
func (m *MockUserRepository) SetPasswordReset(ctx context.Context, id string, tokenHash string, expiresAt time.Time) error {
	args := m.Called(ctx, id, tokenHash, expiresAt)
	return args.Error(0)
}
func (m *MockUserRepository) ClearPasswordReset(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type testApp struct {
	repo   *MockUserRepository
	router http.Handler
	tokens *auth.TokenManager
}

func newTestApp(t *testing.T, mode string) *testApp {
	t.Helper()

	cfg := &config.Config{
		Mode:       mode,
		JWTSecret:  "test-secret",
		JWTExpiry:  time.Hour,
		CORSOrigin: "http://localhost:5173",
	}
	logger, _ := zap.NewDevelopment()
	mockRepo := new(MockUserRepository)

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTExpiry)
	uc := usecase.NewUserUsecase(mockRepo, tokens, nil, nil, logger)
	userHandler := handler.NewUserHandler(uc, cfg, logger)
	authMiddleware := middleware.Auth(tokens, uc, logger)

	return &testApp{
		repo:   mockRepo,
		router: router.New(cfg, userHandler, authMiddleware, logger),
		tokens: tokens,
	}
}

type envelopeBody struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	User    map[string]string `json:"user"`
	Token   string            `json:"token"`
	Error   string            `json:"error"`
}

func doJSON(t *testing.T, app *testApp, method, path, body string, cookies ...*http.Cookie) (*httptest.ResponseRecorder, envelopeBody) {
	t.Helper()

	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)

	var parsed envelopeBody
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	return rec, parsed
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			return c
		}
	}
	return nil
}

const registerBody = `{"fullName":"Alice Jones","email":"a@b.com","password":"secret123","phoneNumber":"9876543210"}`

func hashedUser(t *testing.T, password string) *entity.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	assert.NoError(t, err)
	return &entity.User{
		ID:           primitive.NewObjectID(),
		FullName:     "alice jones",
		Email:        "a@b.com",
		PasswordHash: string(hash),
		PhoneNumber:  "9876543210",
	}
}

func TestRegister(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		app := newTestApp(t, config.ModeDevelopment)
		userID := primitive.NewObjectID()
		app.repo.On("CreateUser", mock.Anything, mock.AnythingOfType("*entity.User")).
			Run(func(args mock.Arguments) {
				args.Get(1).(*entity.User).ID = userID
			}).
			Return(userID, nil).Once()

		rec, body := doJSON(t, app, http.MethodPost, "/api/v1/user/register", registerBody)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.True(t, body.Success)
		assert.Equal(t, "alice jones", body.User["fullName"])
		assert.Equal(t, "a@b.com", body.User["email"])
		assert.Equal(t, "9876543210", body.User["phoneNumber"])

		// No password field of any kind may appear in the response
		assert.NotContains(t, strings.ToLower(rec.Body.String()), "password")

		cookie := sessionCookie(rec)
		assert.NotNil(t, cookie)
		assert.True(t, cookie.HttpOnly)
		assert.False(t, cookie.Secure) // development mode
		assert.Equal(t, int((7 * 24 * time.Hour).Seconds()), cookie.MaxAge)

		gotID, err := app.tokens.Verify(cookie.Value)
		assert.NoError(t, err)
		assert.Equal(t, userID.Hex(), gotID)
	})

	t.Run("MissingFields", func(t *testing.T) {
		app := newTestApp(t, config.ModeDevelopment)

		rec, body := doJSON(t, app, http.MethodPost, "/api/v1/user/register",
			`{"email":"a@b.com","password":"secret123"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.False(t, body.Success)
		app.repo.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		app := newTestApp(t, config.ModeDevelopment)
		app.repo.On("CreateUser", mock.Anything, mock.Anything).
			Return(primitive.NilObjectID, repository.ErrDuplicateEmail).Once()

		rec, body := doJSON(t, app, http.MethodPost, "/api/v1/user/register", registerBody)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "Email already exists", body.Message)
	})

	t.Run("MalformedBody", func(t *testing.T) {
		app := newTestApp(t, config.ModeDevelopment)

		rec, body := doJSON(t, app, http.MethodPost, "/api/v1/user/register", "{not json")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.False(t, body.Success)
	})
}

func TestLogin(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		app := newTestApp(t, config.ModeDevelopment)
		user := hashedUser(t, "secret123")
		app.repo.On("GetUserByEmail", mock.Anything, "a@b.com", true).Return(user, nil).Once()

		rec, body := doJSON(t, app, http.MethodPost, "/api/v1/user/login",
			`{"email":"a@b.com","password":"secret123"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, body.Success)
		assert.NotEmpty(t, body.Token)
		assert.Equal(t, user.ID.Hex(), body.User["id"])

		cookie := sessionCookie(rec)
		assert.NotNil(t, cookie)
		assert.Equal(t, body.Token, cookie.Value)
	})

	t.Run("GenericFailureForWrongPasswordAndUnknownEmail", func(t *testing.T) {
		app := newTestApp(t, config.ModeDevelopment)
		user := hashedUser(t, "secret123")
		app.repo.On("GetUserByEmail", mock.Anything, "a@b.com", true).Return(user, nil).Once()
		app.repo.On("GetUserByEmail", mock.Anything, "ghost@b.com", true).
			Return(nil, repository.ErrUserNotFound).Once()

		recWrong, bodyWrong := doJSON(t, app, http.MethodPost, "/api/v1/user/login",
			`{"email":"a@b.com","password":"bad-password"}`)
		recGhost, bodyGhost := doJSON(t, app, http.MethodPost, "/api/v1/user/login",
			`{"email":"ghost@b.com","password":"whatever"}`)

		assert.Equal(t, http.StatusUnauthorized, recWrong.Code)
		assert.Equal(t, http.StatusUnauthorized, recGhost.Code)
		assert.Equal(t, bodyWrong.Message, bodyGhost.Message)
	})

	t.Run("MissingFields", func(t *testing.T) {
		app := newTestApp(t, config.ModeDevelopment)

		rec, _ := doJSON(t, app, http.MethodPost, "/api/v1/user/login", `{"email":"a@b.com"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestLogout(t *testing.T) {
	app := newTestApp(t, config.ModeDevelopment)

	rec, body := doJSON(t, app, http.MethodPost, "/api/v1/user/logout", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, body.Success)

	cookie := sessionCookie(rec)
	assert.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.Less(t, cookie.MaxAge, 0) // instructs the client to drop the cookie

	// Logout with no session is just as fine
	rec2, body2 := doJSON(t, app, http.MethodPost, "/api/v1/user/logout", "")
	assert.Equal(t, http.StatusOK, rec2.Code)
	assert.True(t, body2.Success)
}

func TestMe(t *testing.T) {
	t.Run("WithValidSession", func(t *testing.T) {
		app := newTestApp(t, config.ModeDevelopment)
		user := hashedUser(t, "secret123")
		app.repo.On("GetUserByID", mock.Anything, user.ID.Hex()).Return(user, nil).Once()

		token, err := app.tokens.Issue(user.ID.Hex())
		assert.NoError(t, err)

		rec, body := doJSON(t, app, http.MethodGet, "/api/v1/user/me", "",
			&http.Cookie{Name: middleware.SessionCookieName, Value: token})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, user.ID.Hex(), body.User["id"])
		assert.Equal(t, "alice jones", body.User["fullName"])
		assert.Equal(t, "a@b.com", body.User["email"])
		assert.Equal(t, "9876543210", body.User["phoneNumber"])
	})

	t.Run("WithoutCookie", func(t *testing.T) {
		app := newTestApp(t, config.ModeDevelopment)

		rec, body := doJSON(t, app, http.MethodGet, "/api/v1/user/me", "")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, body.Success)
	})
}

func TestRegisterLoginMeFlow(t *testing.T) {
	app := newTestApp(t, config.ModeDevelopment)
	userID := primitive.NewObjectID()
	var stored entity.User

	app.repo.On("CreateUser", mock.Anything, mock.AnythingOfType("*entity.User")).
		Run(func(args mock.Arguments) {
			stored = *args.Get(1).(*entity.User)
			stored.ID = userID
			args.Get(1).(*entity.User).ID = userID
		}).
		Return(userID, nil).Once()

	recRegister, _ := doJSON(t, app, http.MethodPost, "/api/v1/user/register", registerBody)
	assert.Equal(t, http.StatusCreated, recRegister.Code)

	app.repo.On("GetUserByEmail", mock.Anything, "a@b.com", true).Return(&stored, nil).Once()
	recLogin, loginBody := doJSON(t, app, http.MethodPost, "/api/v1/user/login",
		`{"email":"a@b.com","password":"secret123"}`)
	assert.Equal(t, http.StatusOK, recLogin.Code)
	assert.NotEmpty(t, loginBody.Token)

	app.repo.On("GetUserByID", mock.Anything, userID.Hex()).Return(&stored, nil).Once()
	recMe, meBody := doJSON(t, app, http.MethodGet, "/api/v1/user/me", "", sessionCookie(recLogin))
	assert.Equal(t, http.StatusOK, recMe.Code)
	assert.Equal(t, "alice jones", meBody.User["fullName"])
	assert.Equal(t, "a@b.com", meBody.User["email"])
	assert.Equal(t, "9876543210", meBody.User["phoneNumber"])
}

func TestUpdate(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		app := newTestApp(t, config.ModeDevelopment)
		sessionUser := hashedUser(t, "secret123")
		target := primitive.NewObjectID().Hex()

		app.repo.On("GetUserByID", mock.Anything, sessionUser.ID.Hex()).Return(sessionUser, nil).Once()
		app.repo.On("UpdateUser", mock.Anything, target, mock.Anything).Return(nil).Once()

		token, _ := app.tokens.Issue(sessionUser.ID.Hex())
		rec, body := doJSON(t, app, http.MethodPost, "/api/v1/user/update/"+target,
			`{"phoneNumber":"9123456789"}`,
			&http.Cookie{Name: middleware.SessionCookieName, Value: token})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, body.Success)
	})

	t.Run("UnknownTarget", func(t *testing.T) {
		app := newTestApp(t, config.ModeDevelopment)
		sessionUser := hashedUser(t, "secret123")
		target := primitive.NewObjectID().Hex()

		app.repo.On("GetUserByID", mock.Anything, sessionUser.ID.Hex()).Return(sessionUser, nil).Once()
		app.repo.On("UpdateUser", mock.Anything, target, mock.Anything).
			Return(repository.ErrUserNotFound).Once()

		token, _ := app.tokens.Issue(sessionUser.ID.Hex())
		rec, body := doJSON(t, app, http.MethodPost, "/api/v1/user/update/"+target,
			`{"phoneNumber":"9123456789"}`,
			&http.Cookie{Name: middleware.SessionCookieName, Value: token})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid user id or user does not exist", body.Message)
	})

	t.Run("RequiresSession", func(t *testing.T) {
		app := newTestApp(t, config.ModeDevelopment)

		rec, _ := doJSON(t, app, http.MethodPost, "/api/v1/user/update/someid",
			`{"phoneNumber":"9123456789"}`)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		app.repo.AssertNotCalled(t, "UpdateUser", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestNotFoundCatchAll(t *testing.T) {
	app := newTestApp(t, config.ModeDevelopment)

	rec, body := doJSON(t, app, http.MethodGet, "/no/such/route", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, body.Success)
	assert.Equal(t, "Page not found", body.Message)
}

func TestErrorDetailSuppressedInProduction(t *testing.T) {
	appProd := newTestApp(t, config.ModeProduction)
	appProd.repo.On("CreateUser", mock.Anything, mock.Anything).
		Return(primitive.NilObjectID, repository.ErrDuplicateEmail).Once()

	_, bodyProd := doJSON(t, appProd, http.MethodPost, "/api/v1/user/register", registerBody)
	assert.Empty(t, bodyProd.Error)

	appDev := newTestApp(t, config.ModeDevelopment)
	appDev.repo.On("CreateUser", mock.Anything, mock.Anything).
		Return(primitive.NilObjectID, repository.ErrDuplicateEmail).Once()

	_, bodyDev := doJSON(t, appDev, http.MethodPost, "/api/v1/user/register", registerBody)
	assert.NotEmpty(t, bodyDev.Error)
}

func TestSecureCookieInProduction(t *testing.T) {
	app := newTestApp(t, config.ModeProduction)
	userID := primitive.NewObjectID()
	app.repo.On("CreateUser", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			args.Get(1).(*entity.User).ID = userID
		}).
		Return(userID, nil).Once()

	rec, _ := doJSON(t, app, http.MethodPost, "/api/v1/user/register", registerBody)

	cookie := sessionCookie(rec)
	assert.NotNil(t, cookie)
	assert.True(t, cookie.Secure)
}
