package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"complaint-service/internal/account"
	"complaint-service/internal/auth"
	"complaint-service/internal/metrics"
	"complaint-service/internal/testdb"
	"complaint-service/internal/token"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

const testBaseURL = "http://localhost:8080"

// captureSender records the last mail instead of delivering it.
type captureSender struct {
	to      string
	subject string
	text    string
}

func (c *captureSender) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	c.to = to
	c.subject = subject
	c.text = textBody
	return nil
}

// extractLink pulls the action URL out of a captured text body and returns
// its path relative to the base URL.
func extractLink(t *testing.T, textBody string) string {
	t.Helper()
	idx := strings.Index(textBody, testBaseURL)
	require.GreaterOrEqual(t, idx, 0, "mail body should contain an action link")
	link := textBody[idx:]
	if end := strings.IndexAny(link, " \n\r\t"); end >= 0 {
		link = link[:end]
	}
	return strings.TrimPrefix(link, testBaseURL)
}

func seedAccount(t *testing.T, db *bun.DB, username, email, password string, active bool, createdAt time.Time) *account.Account {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	acct := &account.Account{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		IsActive:     active,
		CreatedAt:    createdAt,
	}
	_, err = db.NewInsert().Model(acct).Exec(context.Background())
	require.NoError(t, err)
	return acct
}

func seedProfile(t *testing.T, db *bun.DB, accountID int64, role account.Role, verified bool) *account.Profile {
	t.Helper()
	profile := &account.Profile{
		AccountID:     accountID,
		FullName:      "Seeded User",
		Role:          role,
		EmailVerified: verified,
	}
	_, err := db.NewInsert().Model(profile).Exec(context.Background())
	require.NoError(t, err)
	return profile
}

func postJSON(t *testing.T, router chi.Router, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthHandler(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret-key-for-testing")
	defer os.Unsetenv("JWT_SECRET")

	db := testdb.New(t)

	mockMetrics := metrics.NewMock()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	sender := &captureSender{}

	accountRepo := account.NewRepository(db, mockMetrics)
	verifyTokens := token.NewGenerator("test-token-secret", token.PurposeEmailVerification, 72*time.Hour)
	resetTokens := token.NewGenerator("test-token-secret", token.PurposePasswordReset, 72*time.Hour)
	authService := auth.NewService(accountRepo, verifyTokens, resetTokens, sender, nil, testBaseURL, logger)
	authHandler := auth.NewHandler(authService, logger, mockMetrics)

	router := chi.NewRouter()
	authHandler.RegisterRoutes(router)

	register := func(username, email, studentID string) *httptest.ResponseRecorder {
		return postJSON(t, router, "/auth/register", map[string]interface{}{
			"username":        username,
			"email":           email,
			"fullName":        "Test User",
			"studentId":       studentID,
			"password":        "password123",
			"confirmPassword": "password123",
		})
	}

	login := func(identifier, password string) *httptest.ResponseRecorder {
		return postJSON(t, router, "/auth/login", map[string]interface{}{
			"identifier": identifier,
			"password":   password,
		})
	}

	t.Run("Register_Success", func(t *testing.T) {
		testdb.CleanupTables(t, db, "complaints", "profiles", "accounts")

		w := register("alice", "alice@example.com", "S1001")
		assert.Equal(t, http.StatusCreated, w.Code)

		var response auth.RegisterResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "alice", response.Username)
		assert.Contains(t, response.Message, "verify")

		// Verification mail went to the new address
		assert.Equal(t, "alice@example.com", sender.to)
		assert.Contains(t, sender.text, "/auth/verify-email/")
	})

	t.Run("Register_DuplicateUsername", func(t *testing.T) {
		testdb.CleanupTables(t, db, "complaints", "profiles", "accounts")

		require.Equal(t, http.StatusCreated, register("bob", "bob@example.com", "").Code)

		w := register("bob", "other@example.com", "")
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "username already exists")
	})

	t.Run("Register_DuplicateEmail", func(t *testing.T) {
		testdb.CleanupTables(t, db, "complaints", "profiles", "accounts")

		require.Equal(t, http.StatusCreated, register("carol", "carol@example.com", "").Code)

		w := register("carol2", "carol@example.com", "")
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "email address already exists")
	})

	t.Run("Register_DuplicateStudentID", func(t *testing.T) {
		testdb.CleanupTables(t, db, "complaints", "profiles", "accounts")

		require.Equal(t, http.StatusCreated, register("dave", "dave@example.com", "S2001").Code)

		w := register("dave2", "dave2@example.com", "S2001")
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "student ID already exists")
	})

	t.Run("Register_PasswordMismatch", func(t *testing.T) {
		testdb.CleanupTables(t, db, "complaints", "profiles", "accounts")

		w := postJSON(t, router, "/auth/register", map[string]interface{}{
			"username":        "eve",
			"email":           "eve@example.com",
			"fullName":        "Eve",
			"password":        "password123",
			"confirmPassword": "different456",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Login_UnverifiedRejected", func(t *testing.T) {
		testdb.CleanupTables(t, db, "complaints", "profiles", "accounts")

		require.Equal(t, http.StatusCreated, register("frank", "frank@example.com", "").Code)

		w := login("frank", "password123")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "verify your email")
	})

	t.Run("VerifyEmail_ThenLogin", func(t *testing.T) {
		testdb.CleanupTables(t, db, "complaints", "profiles", "accounts")

		require.Equal(t, http.StatusCreated, register("grace", "grace@example.com", "").Code)
		path := extractLink(t, sender.text)

		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "verified successfully")

		w = login("grace", "password123")
		assert.Equal(t, http.StatusOK, w.Code)

		var response auth.LoginResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, account.RoleStudent, response.Role)
		require.NotNil(t, response.Account)
		assert.Equal(t, "grace", response.Account.Username)

		var foundAuthCookie bool
		for _, cookie := range w.Result().Cookies() {
			if cookie.Name == "token" {
				foundAuthCookie = true
				assert.NotEmpty(t, cookie.Value)
			}
		}
		assert.True(t, foundAuthCookie, "token cookie should be set")
	})

	t.Run("VerifyEmail_InvalidToken", func(t *testing.T) {
		testdb.CleanupTables(t, db, "complaints", "profiles", "accounts")

		require.Equal(t, http.StatusCreated, register("henry", "henry@example.com", "").Code)
		path := extractLink(t, sender.text)

		req := httptest.NewRequest(http.MethodGet, path+"tampered", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid or expired link")
	})

	t.Run("Login_EmailIdentifier", func(t *testing.T) {
		testdb.CleanupTables(t, db, "complaints", "profiles", "accounts")

		acct := seedAccount(t, db, "iris", "iris@example.com", "password123", true, time.Now())
		seedProfile(t, db, acct.ID, account.RoleStudent, true)

		w := login("iris@example.com", "password123")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Login_FailureTaxonomy", func(t *testing.T) {
		testdb.CleanupTables(t, db, "complaints", "profiles", "accounts")

		acct := seedAccount(t, db, "judy", "judy@example.com", "password123", true, time.Now())
		seedProfile(t, db, acct.ID, account.RoleStudent, true)

		w := login("", "password123")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "email address or username")

		w = login("judy", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "enter your password")

		w = login("nobody", "password123")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "No account found")

		w = login("judy", "wrongpassword")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid password")
	})

	t.Run("Login_DuplicateEmailTieBreak", func(t *testing.T) {
		testdb.CleanupTables(t, db, "complaints", "profiles", "accounts")

		// Three accounts share an email: the newest active one wins.
		old := seedAccount(t, db, "kate_old", "kate@example.com", "oldpass123", true, time.Now().Add(-48*time.Hour))
		seedProfile(t, db, old.ID, account.RoleStudent, true)
		inactive := seedAccount(t, db, "kate_inactive", "kate@example.com", "inactpass1", false, time.Now().Add(-time.Hour))
		seedProfile(t, db, inactive.ID, account.RoleStudent, true)
		newest := seedAccount(t, db, "kate_new", "kate@example.com", "newpass123", true, time.Now().Add(-24*time.Hour))
		seedProfile(t, db, newest.ID, account.RoleStudent, true)

		// The identifier resolves to kate_new, so only its password works.
		w := login("kate@example.com", "newpass123")
		assert.Equal(t, http.StatusOK, w.Code)

		var response auth.LoginResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "kate_new", response.Account.Username)

		w = login("kate@example.com", "oldpass123")
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		// The older account is still reachable by username.
		w = login("kate_old", "oldpass123")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Login_AllInactiveFallsBackToNewest", func(t *testing.T) {
		testdb.CleanupTables(t, db, "complaints", "profiles", "accounts")

		seedAccount(t, db, "liam_old", "liam@example.com", "password123", false, time.Now().Add(-48*time.Hour))
		newest := seedAccount(t, db, "liam_new", "liam@example.com", "password123", false, time.Now())
		seedProfile(t, db, newest.ID, account.RoleStudent, true)

		// Resolution picks liam_new; the account is inactive so login fails
		// with the credential message rather than "no account".
		w := login("liam@example.com", "password123")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid password")
	})

	t.Run("Login_ProvisionsMissingProfile", func(t *testing.T) {
		testdb.CleanupTables(t, db, "complaints", "profiles", "accounts")

		seedAccount(t, db, "mallory", "mallory@example.com", "password123", true, time.Now())

		w := login("mallory", "password123")
		assert.Equal(t, http.StatusOK, w.Code)

		var response auth.LoginResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, account.RoleStudent, response.Role)
	})

	t.Run("Login_SuperuserProvisionedAsAdmin", func(t *testing.T) {
		testdb.CleanupTables(t, db, "complaints", "profiles", "accounts")

		acct := seedAccount(t, db, "root", "root@example.com", "password123", true, time.Now())
		acct.IsSuperuser = true
		_, err := db.NewUpdate().Model(acct).WherePK().Exec(context.Background())
		require.NoError(t, err)

		w := login("root", "password123")
		assert.Equal(t, http.StatusOK, w.Code)

		var response auth.LoginResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, account.RoleAdmin, response.Role)
	})

	t.Run("PasswordReset_Flow", func(t *testing.T) {
		testdb.CleanupTables(t, db, "complaints", "profiles", "accounts")

		acct := seedAccount(t, db, "nancy", "nancy@example.com", "password123", true, time.Now())
		seedProfile(t, db, acct.ID, account.RoleStudent, true)

		w := postJSON(t, router, "/auth/password-reset", map[string]interface{}{
			"email": "nancy@example.com",
		})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "nancy@example.com", sender.to)

		path := extractLink(t, sender.text)
		w = postJSON(t, router, path, map[string]interface{}{
			"password":        "newpassword456",
			"confirmPassword": "newpassword456",
		})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "reset successfully")

		// Old password no longer works, new one does.
		assert.Equal(t, http.StatusUnauthorized, login("nancy", "password123").Code)
		assert.Equal(t, http.StatusOK, login("nancy", "newpassword456").Code)

		// The consumed link cannot be replayed: the password change rotated
		// the account fingerprint.
		w = postJSON(t, router, path, map[string]interface{}{
			"password":        "thirdpassword7",
			"confirmPassword": "thirdpassword7",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid or expired link")
	})

	t.Run("PasswordReset_UnknownEmail", func(t *testing.T) {
		testdb.CleanupTables(t, db, "complaints", "profiles", "accounts")

		w := postJSON(t, router, "/auth/password-reset", map[string]interface{}{
			"email": "unknown@example.com",
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "No account found")
	})

	t.Run("PasswordReset_AmbiguousEmail", func(t *testing.T) {
		testdb.CleanupTables(t, db, "complaints", "profiles", "accounts")

		seedAccount(t, db, "olga1", "olga@example.com", "password123", true, time.Now().Add(-time.Hour))
		seedAccount(t, db, "olga2", "olga@example.com", "password123", true, time.Now())

		w := postJSON(t, router, "/auth/password-reset", map[string]interface{}{
			"email": "olga@example.com",
		})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "use your username")
	})

	t.Run("Logout", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		var cleared bool
		for _, cookie := range w.Result().Cookies() {
			if cookie.Name == "token" && cookie.MaxAge < 0 {
				cleared = true
			}
		}
		assert.True(t, cleared, "token cookie should be cleared")
	})
}
